package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ardaicoz/jn-cuclark/internal/health"
)

func newPreflightCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check every candidate node without dispatching work",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, runner, err := setup(configPath, verbose)
			if err != nil {
				return err
			}

			statuses := health.NewChecker(cfg, runner, logger).Preflight(cmd.Context())
			for _, s := range statuses {
				fmt.Println(s.Summary())
			}

			if len(health.ReadyNodes(statuses)) == 0 {
				return errors.New("no nodes ready for processing")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Cluster configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
