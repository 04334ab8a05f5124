package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/eventhub/internal/config"
	"github.com/dshills/eventhub/internal/logging"
)

// globals is shared by every subcommand after PersistentPreRunE.
type globals struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "eventhub",
		Short:         "In-process event hub with scripted extensions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			if g.logLevel != "" {
				cfg.Log.Level = g.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml, .json)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newRunCmd(g), newServeCmd(g), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eventhub %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
