package reading

import (
	"context"
	"math"
	"time"
)

// CurrentUnavailable is reported by the kernel (and by our readers) when
// current_now cannot be read. It must never be normalized.
const CurrentUnavailable int64 = math.MinInt32

// Status is the charging status reported by the power supply.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusCharging    Status = "charging"
	StatusFull        Status = "full"
	StatusDischarging Status = "discharging"
	StatusNotCharging Status = "notCharging"
)

// IsCharging reports whether the battery is actively drawing charge.
func (s Status) IsCharging() bool {
	return s == StatusCharging
}

// IsPluggedState reports whether the status implies a charger is attached.
func (s Status) IsPluggedState() bool {
	return s == StatusCharging || s == StatusFull
}

// PlugSource is the kind of charger attached.
type PlugSource string

const (
	PlugNone     PlugSource = "none"
	PlugAC       PlugSource = "ac"
	PlugUSB      PlugSource = "usb"
	PlugWireless PlugSource = "wireless"
)

// RawReading is one snapshot of the battery as reported by the OS.
// Units are ambiguous on purpose: devices disagree on them.
type RawReading struct {
	// CurrentRaw is in µA or mA, signed. CurrentUnavailable if missing.
	CurrentRaw int64 `json:"currentRaw"`
	// VoltageRaw is in V or mV.
	VoltageRaw int64 `json:"voltageRaw"`
	Level      int   `json:"level"`
	Scale      int   `json:"scale"`
	// TemperatureTenthsC is in 0.1 °C.
	TemperatureTenthsC int        `json:"temperatureTenthsC"`
	Status             Status     `json:"status"`
	Plugged            PlugSource `json:"plugged"`
	// ChargeCounterRaw is in µAh or mAh. 0 means absent.
	ChargeCounterRaw float64   `json:"chargeCounterRaw"`
	Time             time.Time `json:"time"`
}

// Percent returns the charge level in percent, or 0 if the scale is unknown.
func (r RawReading) Percent() float64 {
	if r.Scale <= 0 || r.Level < 0 {
		return 0
	}
	return float64(r.Level) * 100 / float64(r.Scale)
}

// TemperatureC returns the temperature in °C.
func (r RawReading) TemperatureC() float64 {
	return float64(r.TemperatureTenthsC) / 10
}

// HasCurrent reports whether CurrentRaw carries a real reading.
func (r RawReading) HasCurrent() bool {
	return r.CurrentRaw != CurrentUnavailable
}

// Reader reads battery snapshots from the OS.
type Reader interface {
	Read(ctx context.Context) (RawReading, error)
}

// CapacityProber detects the design capacity of the battery in mAh.
// ok is false when the platform does not expose it.
type CapacityProber interface {
	DesignCapacityMah() (mah int, ok bool)
}
