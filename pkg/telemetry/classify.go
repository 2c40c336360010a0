package telemetry

import (
	"fmt"

	"github.com/charlie0129/battwatt/pkg/reading"
)

// ChargingSpeed is a coarse label for the charging power.
type ChargingSpeed string

const (
	SpeedNone      ChargingSpeed = "discharging"
	SpeedSlow      ChargingSpeed = "slow"
	SpeedNormal    ChargingSpeed = "normal"
	SpeedFast      ChargingSpeed = "fast"
	SpeedSuperFast ChargingSpeed = "superFast"
)

// Bands are the lower bounds (W) of the normal, fast and super fast speeds.
// A power equal to a bound belongs to the lower band, except Normal.
type Bands struct {
	Normal    float64 `json:"normal"`
	Fast      float64 `json:"fast"`
	SuperFast float64 `json:"superFast"`
}

// The dashboard and the widget have always used different bands. Both are
// kept so each surface renders the same labels it always did.
var (
	ActivityBands = Bands{Normal: 4, Fast: 12, SuperFast: 20}
	WidgetBands   = Bands{Normal: 4, Fast: 10, SuperFast: 18}
)

// Classify maps a charging power to a speed using bands.
func Classify(powerWatts float64, b Bands) ChargingSpeed {
	switch {
	case powerWatts > b.SuperFast:
		return SpeedSuperFast
	case powerWatts >= b.Fast:
		return SpeedFast
	case powerWatts >= b.Normal:
		return SpeedNormal
	default:
		return SpeedSlow
	}
}

// Label is the human readable form of a speed.
func (s ChargingSpeed) Label() string {
	switch s {
	case SpeedSuperFast:
		return "Super Fast Charging"
	case SpeedFast:
		return "Fast Charging"
	case SpeedNormal:
		return "Normal Charging"
	case SpeedSlow:
		return "Slow Charging"
	default:
		return "Discharging"
	}
}

// SourceLabel describes where the charge comes from.
func SourceLabel(p reading.PlugSource) string {
	switch p {
	case reading.PlugAC:
		return "(AC Charging)"
	case reading.PlugUSB:
		return "(USB Charging)"
	case reading.PlugWireless:
		return "(Wireless Charging)"
	default:
		return ""
	}
}

// ChargingLabel renders the status line shown on the dashboard and widget.
func ChargingLabel(powerWatts float64, charging bool, plugged reading.PlugSource, b Bands) string {
	if !charging {
		return SpeedNone.Label()
	}
	label := Classify(powerWatts, b).Label()
	if src := SourceLabel(plugged); src != "" {
		label = fmt.Sprintf("%s %s", label, src)
	}
	return label
}
