package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/config"
	"github.com/choplin/deckcheck/internal/logging"
)

// rootOptions holds the global flags and what PersistentPreRunE derives
// from them.
type rootOptions struct {
	dbPath     string
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

// catalogPath applies flag > config file > default.
func (o *rootOptions) catalogPath() string {
	if o.dbPath != "" {
		return o.dbPath
	}
	return o.cfg.DBPath()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "deckcheck",
		Short:         "deckcheck - Commander deck validation against a local card catalog",
		Long:          "deckcheck imports a bulk card dataset into a local catalog and validates Commander deck lists against it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			level := cfg.Log.Level
			if cmd.Flags().Changed("log-level") {
				level = opts.logLevel
			}
			format := cfg.Log.Format
			if cmd.Flags().Changed("log-format") {
				format = opts.logFormat
			}
			opts.logger = logging.SetupWriter(cmd.ErrOrStderr(), level, format)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "Catalog database file (default: <data dir>/catalog.db)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/deckcheck/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newCardCmd(opts))
	cmd.AddCommand(newAddCmd(opts))
	cmd.AddCommand(newInfoCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))

	return cmd
}
