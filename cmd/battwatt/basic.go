package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewConfigureCommand() *cobra.Command {
	capacity := 0

	cmd := &cobra.Command{
		Use:     "configure",
		Short:   "Configure the battery capacity profile",
		GroupID: gBasic,
		Long: `Configure the battery capacity profile.

The daemon collects 5 current readings one second apart and saves them along
with the battery capacity. The capacity is taken from --capacity, then from a
previous configuration, then from the battery itself. If none is available
you must pass --capacity.

Run this while the charger is connected for a meaningful current pattern.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if capacity < 0 {
				return fmt.Errorf("invalid capacity: %d", capacity)
			}

			logrus.Info("collecting current samples, this takes a few seconds")

			resp, err := apiClient.Configure(capacity)
			if err != nil {
				return err
			}

			cmd.Printf("  Configured: %s\n", bool2Text(resp.Configured))
			cmd.Printf("  Capacity: %s\n", bold("%d mAh", resp.Profile.DeclaredCapacityMah))
			if resp.DetectedCapacityMah > 0 {
				cmd.Printf("  Detected capacity: %d mAh\n", resp.DetectedCapacityMah)
			}
			cmd.Printf("  Current pattern: %s\n", strings.Join(resp.Pattern, ", "))
			return nil
		},
	}

	cmd.Flags().IntVar(&capacity, "capacity", 0, "battery capacity in mAh")

	return cmd
}

func NewHistoryCommand() *cobra.Command {
	since := time.Hour
	live := false
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show logged charging power samples",
		GroupID: gBasic,
		Long: `Show logged charging power samples.

By default samples from the on-disk sample log are shown. With --live, the
in-memory graph of the last 120 readings is shown instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if live {
				resp, err := apiClient.GetLiveHistory()
				if err != nil {
					return fmt.Errorf("failed to get live history: %w", err)
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				for _, p := range resp.Points {
					cmd.Printf("%s  %s\n", p.Time.Local().Format(time.TimeOnly), telemetry.FormatPower(p.PowerWatts))
				}
				return nil
			}

			resp, err := apiClient.GetHistory(since)
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Samples) == 0 {
				cmd.Printf("No samples in the last %s.\n", since)
				return nil
			}
			for _, s := range resp.Samples {
				session := s.SessionID
				if len(session) > 8 {
					session = session[:8]
				}
				cmd.Printf("%s  %8s  %s\n", s.Time.Local().Format(time.DateTime), telemetry.FormatPower(s.PowerWatts), session)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.DurationVar(&since, "since", since, "only show samples newer than this")
	f.BoolVar(&live, "live", false, "show the in-memory graph instead of the sample log")
	f.BoolVar(&jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every logged sample",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := apiClient.ClearHistory(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			logrus.Info("successfully cleared sample log")
			return nil
		},
	})

	return cmd
}
