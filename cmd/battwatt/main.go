package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battwatt/pkg/client"
	"github.com/charlie0129/battwatt/pkg/version"
)

var (
	logLevel       = "info"
	logFormat      = "text"
	unixSocketPath = "/run/battwatt.sock"
	configPath     = "/etc/battwatt.json"
)

var apiClient *client.Client

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		f := &logrus.TextFormatter{}
		if term.IsTerminal(int(os.Stderr.Fd())) {
			f.FullTimestamp = true
			f.TimestampFormat = time.Kitchen
		}
		logrus.SetFormatter(f)
	default:
		return fmt.Errorf("unknown log format %q, want text or json", logFormat)
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: battwatt daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	case errors.Is(err, client.ErrNotConfigured):
		fmt.Fprintln(os.Stderr, "\nError: battery capacity is not configured")
		fmt.Fprintln(os.Stderr, "Run 'battwatt configure' while the battery is charging, optionally with '--capacity <mAh>'.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

// checkVersion warns when the daemon runs a different build than this client.
func checkVersion() {
	v, err := apiClient.GetVersion()
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			logrus.Error("battwatt daemon is too old to report its version. Reinstall it so both client and daemon are the same version.")
		}
		return
	}
	if v.Version != version.Version {
		logrus.WithFields(logrus.Fields{
			"clientVersion": version.Version,
			"daemonVersion": v.Version,
		}).Warn("Version mismatch between client and daemon. battwatt may not work as expected. Reinstall it so both client and daemon are the same version.")
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battwatt",
		Short: "battwatt monitors battery charging power",
		Long: `battwatt monitors battery charging power.

It samples the battery every second, tracks the minimum and maximum charging
power of each charging session, estimates the time to full and publishes the
result to a desktop notification, a widget topic and a local HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			// The daemon does not talk to itself.
			if cmd.Name() != "daemon" && cmd.GroupID != gInstallation {
				checkVersion()
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&logFormat, "log-format", logFormat, "log format (text, json)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battwatt daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewWatchCommand(),
		NewConfigureCommand(),
		NewHistoryCommand(),
		NewExtremaCommand(),
		NewHealthCommand(),
		NewNotificationCommand(),
		NewSampleLogCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
