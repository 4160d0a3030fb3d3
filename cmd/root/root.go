// Package root contains the root command for the application
package root

import (
	"github.com/grez-lucas/numericable-scraper/internal/config"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// ConfigFile is an explicit config file path, empty to search the default locations
	ConfigFile string

	// LogLevel overrides log.level from the configuration when set
	LogLevel string

	// Config is the configuration loaded before any subcommand runs
	Config *config.Config

	// Log is the shared logger instance for commands
	Log logging.Logger = logging.GetLogger()

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "numericable",
		Short: "A CLI tool to fetch Numericable bills and link them to bank operations.",
		Long: `numericable logs into the Numericable customer portal, downloads the bills
listed on the billing page and links each one to the matching bank operation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to numericable!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ConfigFile)
			if err != nil {
				return err
			}
			if LogLevel != "" {
				cfg.Log.Level = LogLevel
			}

			Config = cfg
			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
			logging.SetLogger(Log)
			return nil
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "Config file (default searches ./config.yaml, .numericable/, $HOME/.numericable/)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}
