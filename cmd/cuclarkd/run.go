package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/coordinator"
	"github.com/ardaicoz/jn-cuclark/internal/logging"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
)

const defaultConfigPath = "config/cluster.yaml"

// setup loads the config and builds the logger and ssh runner shared by
// the cluster-facing commands.
func setup(configPath string, verbose bool) (*config.Config, zerolog.Logger, *remote.SSHRunner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := logging.Setup(level, cfg.Logging.File, cfg.Logging.ShowProgress)
	runner := remote.NewSSHRunner(cfg.Options.SSHTimeout)
	return cfg, logger, runner, nil
}

func newRunCmd() *cobra.Command {
	var configPath string
	var sequential bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full cluster classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, runner, err := setup(configPath, verbose)
			if err != nil {
				return err
			}

			var dispatcher coordinator.Dispatcher
			if sequential {
				logger.Info().Msg("Sequential mode: nodes are processed one at a time")
				dispatcher = &coordinator.SequentialDispatcher{Runner: runner, Logger: logger}
			} else {
				dispatcher = &coordinator.ParallelDispatcher{Runner: runner, Logger: logger}
			}

			_, err = coordinator.New(cfg, runner, dispatcher, logger).Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Cluster configuration file")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Process nodes one at a time over ssh instead of launching a parallel cohort")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
