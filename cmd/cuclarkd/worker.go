package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ardaicoz/jn-cuclark/internal/coordinator"
	"github.com/ardaicoz/jn-cuclark/internal/logging"
)

// newWorkerCmd is the per-node process the coordinator launches in parallel
// mode. Operators never run it by hand, so it stays out of the help text.
func newWorkerCmd() *cobra.Command {
	var joinAddr string
	var node string

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Join a coordinator as a classification worker",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if joinAddr == "" {
				return errors.New("--join is required")
			}
			if node == "" {
				hostname, err := os.Hostname()
				if err != nil {
					return errors.Wrap(err, "failed to determine hostname")
				}
				node = hostname
			}

			logger := logging.Setup("info", "", true)
			return coordinator.RunWorker(cmd.Context(), joinAddr, node, logger)
		},
	}

	cmd.Flags().StringVar(&joinAddr, "join", "", "Coordinator address (host:port)")
	cmd.Flags().StringVar(&node, "node", "", "Node identity to report (defaults to the local hostname)")

	return cmd
}
