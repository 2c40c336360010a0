package telemetry

import "fmt"

func FormatPower(w float64) string {
	return fmt.Sprintf("%.1f W", w)
}

func FormatVoltage(v float64) string {
	return fmt.Sprintf("%.1fV", v)
}

func FormatCurrent(a float64) string {
	return fmt.Sprintf("%.3fA", a)
}

func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func FormatTemperature(c float64) string {
	return fmt.Sprintf("%.1f°C", c)
}
