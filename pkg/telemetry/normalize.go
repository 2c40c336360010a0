package telemetry

import "math"

const (
	// Readings above these magnitudes are in micro (current, charge) or
	// milli (voltage) units. No phone battery sustains 10 A or runs at 100 V.
	microAmpThreshold    = 10_000
	milliVoltThreshold   = 100
	microAmpHrsThreshold = 10_000
)

// NormalizeCurrent converts a current of unknown scale (µA or mA) into amps.
// The sign is dropped; direction comes from the charging status.
func NormalizeCurrent(raw int64) float64 {
	m := math.Abs(float64(raw))
	if m > microAmpThreshold {
		return m / 1_000_000
	}
	return m / 1_000
}

// NormalizeVoltage converts a voltage of unknown scale (mV or V) into volts.
func NormalizeVoltage(raw float64) float64 {
	if raw > milliVoltThreshold {
		return raw / 1_000
	}
	return raw
}

// NormalizeChargeCounter converts a charge counter of unknown scale (µAh or
// mAh) into mAh.
func NormalizeChargeCounter(raw float64) float64 {
	if math.Abs(raw) > microAmpHrsThreshold {
		return raw / 1_000
	}
	return raw
}
