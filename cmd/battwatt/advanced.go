package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battwatt/pkg/config"
	"github.com/charlie0129/battwatt/pkg/telemetry"
)

func NewNotificationCommand() *cobra.Command {
	return newEnableDisableCommand(
		"notification",
		"Set whether to show a persistent desktop notification",
		"Set whether to show a persistent desktop notification with charge, power, temperature and time remaining. Needs a notification daemon on the session bus.",
		func() (string, error) {
			return updateConfig(func(c config.Config) { c.SetNotification(true) })
		},
		func() (string, error) {
			return updateConfig(func(c config.Config) { c.SetNotification(false) })
		},
	)
}

func NewSampleLogCommand() *cobra.Command {
	return newEnableDisableCommand(
		"sample-log",
		"Set whether to log charging power samples",
		"Set whether to log every charging power sample to the on-disk sample log, queried by 'battwatt history'.",
		func() (string, error) {
			return updateConfig(func(c config.Config) { c.SetSampleLog(true) })
		},
		func() (string, error) {
			return updateConfig(func(c config.Config) { c.SetSampleLog(false) })
		},
	)
}

func NewExtremaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "extrema",
		Short:   "Show the min/max charging power of the current session",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ext, err := apiClient.GetExtrema()
			if err != nil {
				return fmt.Errorf("failed to get session extrema: %w", err)
			}

			cmd.Printf("  Charger connected: %s\n", bool2Text(ext.ChargerConnected))
			if ext.SessionID != "" {
				cmd.Printf("  Session: %s (since %s)\n", ext.SessionID, ext.StartedAt.Local().Format(time.DateTime))
			}
			cmd.Printf("  Min power: %s\n", bold("%s", telemetry.FormatPower(ext.MinPowerWatts)))
			cmd.Printf("  Max power: %s\n", bold("%s", telemetry.FormatPower(ext.MaxPowerWatts)))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the min/max charging power",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := apiClient.ResetExtrema()
			if err != nil {
				return fmt.Errorf("failed to reset session extrema: %w", err)
			}
			logrus.Info("successfully reset session extrema")
			return nil
		},
	})

	return cmd
}

func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Short:   "Show whether the daemon samples the battery on time",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := apiClient.GetHealth()
			if err != nil {
				return fmt.Errorf("failed to get daemon health: %w", err)
			}

			cmd.Printf("  Healthy: %s\n", bool2Text(h.Healthy))
			cmd.Printf("  Samples in the last minute: %d/%d\n", h.Samples, h.ExpectedSamples)
			if !h.LastSample.IsZero() {
				cmd.Printf("  Last sample: %s\n", h.LastSample.Local().Format(time.DateTime))
			}
			cmd.Printf("  Sample log pruning: %s\n", bool2Text(h.Pruning))
			if h.NextPrune != nil {
				cmd.Printf("  Next prune: %s\n", h.NextPrune.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}
