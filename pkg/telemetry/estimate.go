package telemetry

import (
	"fmt"
	"time"
)

const (
	// efficiencyFactor is the assumed charge/discharge efficiency.
	efficiencyFactor = 0.85
	// dischargeDrawWatts is a fixed average system draw. It is not measured.
	dischargeDrawWatts = 4.0
)

// EstimateInput is what the estimator needs from one tick.
type EstimateInput struct {
	BatteryPct       float64
	VoltageVolts     float64
	AvgCurrentAmps   float64
	IsCharging       bool
	ChargeCounterRaw float64
}

// Estimate is a time-to-full (charging) or time-to-empty estimate.
type Estimate struct {
	Minutes       int  `json:"minutes"`
	Charging      bool `json:"charging"`
	Indeterminate bool `json:"indeterminate"`
}

// Indeterminate is returned when there is not enough data yet.
var Indeterminate = Estimate{Indeterminate: true}

// EstimateRemaining never fails. Missing inputs give Indeterminate.
func EstimateRemaining(in EstimateInput) Estimate {
	if in.ChargeCounterRaw <= 0 || in.BatteryPct <= 0 {
		return Indeterminate
	}

	chargeCounter := NormalizeChargeCounter(in.ChargeCounterRaw)
	capacityMah := chargeCounter / (in.BatteryPct / 100)
	capacityWh := capacityMah * in.VoltageVolts / 1000

	avgPower := in.VoltageVolts * in.AvgCurrentAmps * efficiencyFactor
	if avgPower <= 0 {
		return Indeterminate
	}

	var minutes float64
	if in.IsCharging {
		minutes = ((100 - in.BatteryPct) / 100 * capacityWh / avgPower) * 60
	} else {
		minutes = (in.BatteryPct * capacityWh) / dischargeDrawWatts
	}

	return Estimate{
		Minutes:  int(minutes),
		Charging: in.IsCharging,
	}
}

// Duration returns the estimate as a duration, or 0 if indeterminate.
func (e Estimate) Duration() time.Duration {
	if e.Indeterminate {
		return 0
	}
	return time.Duration(e.Minutes) * time.Minute
}

func (e Estimate) String() string {
	if e.Indeterminate {
		return "Calculating..."
	}

	var s string
	switch {
	case e.Minutes < 1:
		return "less than a minute"
	case e.Minutes < 60:
		s = fmt.Sprintf("%d minutes left", e.Minutes)
	default:
		s = fmt.Sprintf("%dh %dm left", e.Minutes/60, e.Minutes%60)
	}

	if !e.Charging {
		s = "Discharging: " + s
	}
	return s
}
