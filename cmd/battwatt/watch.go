package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battwatt/pkg/events"
	"github.com/charlie0129/battwatt/pkg/telemetry"
)

const clearScreen = "\033[H\033[2J"

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Watch the charging status live",
		Long:    `Watch the charging status live. The dashboard is redrawn on every reading until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Fail early with a useful message instead of an empty screen.
			if _, err := fetchSnapshot(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			redraw := term.IsTerminal(int(os.Stdout.Fd()))
			var lastEvent string

			return apiClient.Watch(ctx, func(ev events.Event) error {
				switch ev.Name {
				case events.Snapshot:
					snap, err := events.DecodeAs[telemetry.Snapshot](ev)
					if err != nil {
						return fmt.Errorf("failed to decode snapshot: %w", err)
					}
					if redraw {
						fmt.Fprint(out, clearScreen)
					}
					printDashboard(out, &snap)
					if lastEvent != "" {
						fmt.Fprintf(out, "\n%s\n", lastEvent)
					}
					if !redraw {
						fmt.Fprintln(out)
					}
				case events.ChargerConnected:
					lastEvent = fmt.Sprintf("%s charger connected", ev.Time.Local().Format(time.TimeOnly))
				case events.ChargerDisconnected:
					lastEvent = fmt.Sprintf("%s charger disconnected", ev.Time.Local().Format(time.TimeOnly))
				case events.ExtremaReset:
					lastEvent = fmt.Sprintf("%s session extrema reset", ev.Time.Local().Format(time.TimeOnly))
				}
				return nil
			})
		},
	}
}
