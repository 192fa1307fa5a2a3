package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "eventhub",
	Short: "In-process event hub with versioned shared state",
	Long: `eventhub routes events between registered components, each with its own
ordered mailbox, and keeps a versioned history of every component's shared
state.

Commands:
  demo       Run two cooperating components through a hub
  history    Inspect a SQLite event history database
  version    Print the hub version`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// loadSettings reads the configuration file, if any, and applies flag
// overrides.
func loadSettings() (config.Settings, error) {
	c := config.New(nil)
	if configPath != "" {
		loaded, err := config.FromFile(configPath)
		if err != nil {
			return config.Settings{}, fmt.Errorf("load config: %w", err)
		}
		c = loaded
	}

	settings := config.Decode(c)
	if logLevel != "" {
		settings.LogLevel = config.ParseLevel(logLevel, settings.LogLevel)
	}
	return settings, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
