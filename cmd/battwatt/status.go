package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battwatt/pkg/client"
	"github.com/charlie0129/battwatt/pkg/reading"
	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/types"
)

var errNoReading = errors.New("the daemon has not read the battery yet, try again in a second")

// fetchSnapshot gets the latest snapshot, refusing to show a partial dashboard
// when the capacity profile is missing.
func fetchSnapshot() (*telemetry.Snapshot, error) {
	resp, err := apiClient.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snapshotFromResponse(resp)
}

func NewStatusCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current charging status",
		Long:    `Get the charging power, session extrema, battery info and time remaining.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := fetchSnapshot()
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), newStatusJSON(snap))
			}

			printDashboard(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func stateText(s reading.Status) string {
	switch s {
	case reading.StatusCharging:
		return color.GreenString("charging")
	case reading.StatusDischarging:
		return color.RedString("discharging")
	case reading.StatusFull:
		return "full"
	case reading.StatusNotCharging:
		return "not charging"
	default:
		return "unknown"
	}
}

func powerText(s *telemetry.Snapshot) string {
	p := telemetry.FormatPower(s.Sample.PowerWatts)
	if s.Charging() {
		return color.New(color.Bold, color.FgGreen).Sprint(p)
	}
	return bold("%s", p)
}

func printDashboard(w io.Writer, s *telemetry.Snapshot) {
	fmt.Fprintln(w, bold("Charging status:"))
	fmt.Fprintf(w, "  State: %s\n", bold("%s", stateText(s.Status)))
	fmt.Fprintf(w, "  Charger: %s\n", s.ActivityLabel)
	fmt.Fprintf(w, "  Power: %s\n", powerText(s))
	fmt.Fprintf(w, "  Session min power: %s\n", bold("%s", telemetry.FormatPower(s.Extrema.MinPowerWatts)))
	fmt.Fprintf(w, "  Session max power: %s\n", bold("%s", telemetry.FormatPower(s.Extrema.MaxPowerWatts)))

	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Battery status:"))
	fmt.Fprintf(w, "  Current charge: %s\n", bold("%s", telemetry.FormatPercent(s.BatteryPercent)))
	fmt.Fprintf(w, "  Voltage: %s\n", bold("%s", telemetry.FormatVoltage(s.Sample.VoltageVolts)))
	current := telemetry.FormatCurrent(s.Sample.CurrentAmps)
	if s.CurrentFromStore {
		current += " (last known)"
	}
	fmt.Fprintf(w, "  Current: %s\n", bold("%s", current))
	if s.AverageReady {
		fmt.Fprintf(w, "  Average current: %s\n", bold("%s", telemetry.FormatCurrent(s.AverageCurrentAmps)))
	}
	fmt.Fprintf(w, "  Temperature: %s\n", bold("%s", telemetry.FormatTemperature(s.TemperatureC)))
	fmt.Fprintf(w, "  Time remaining: %s\n", bold("%s", s.EstimateText))
}

type statusJSON struct {
	State                string   `json:"state"`
	Plugged              string   `json:"plugged"`
	Label                string   `json:"label"`
	PowerWatts           float64  `json:"powerWatts"`
	MinPowerWatts        float64  `json:"minPowerWatts"`
	MaxPowerWatts        float64  `json:"maxPowerWatts"`
	SessionID            string   `json:"sessionId,omitempty"`
	ChargePercent        float64  `json:"chargePercent"`
	VoltageVolts         float64  `json:"voltageVolts"`
	CurrentAmps          float64  `json:"currentAmps"`
	AverageCurrentAmps   *float64 `json:"averageCurrentAmps"`
	TemperatureCelsius   float64  `json:"temperatureCelsius"`
	TimeRemainingMinutes *int     `json:"timeRemainingMinutes"`
	TimeRemaining        string   `json:"timeRemaining"`
}

func newStatusJSON(s *telemetry.Snapshot) statusJSON {
	out := statusJSON{
		State:              string(s.Status),
		Plugged:            string(s.Plugged),
		Label:              s.ActivityLabel,
		PowerWatts:         s.Sample.PowerWatts,
		MinPowerWatts:      s.Extrema.MinPowerWatts,
		MaxPowerWatts:      s.Extrema.MaxPowerWatts,
		SessionID:          s.Extrema.SessionID,
		ChargePercent:      s.BatteryPercent,
		VoltageVolts:       s.Sample.VoltageVolts,
		CurrentAmps:        s.Sample.CurrentAmps,
		TemperatureCelsius: s.TemperatureC,
		TimeRemaining:      s.EstimateText,
	}
	if s.AverageReady {
		avg := s.AverageCurrentAmps
		out.AverageCurrentAmps = &avg
	}
	if !s.Estimate.Indeterminate {
		m := s.Estimate.Minutes
		out.TimeRemainingMinutes = &m
	}
	return out
}

func snapshotFromResponse(resp *types.SnapshotResponse) (*telemetry.Snapshot, error) {
	if !resp.Configured {
		return nil, client.ErrNotConfigured
	}
	if resp.Snapshot == nil {
		return nil, errNoReading
	}
	return resp.Snapshot, nil
}
