package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/cohort"
	"github.com/ardaicoz/jn-cuclark/internal/job"
)

// workerJoinTimeout bounds the wait for the config broadcast after joining.
// The coordinator may still be assembling the rest of the cohort.
const workerJoinTimeout = 2 * time.Minute

// RunWorker is the worker-process entry point in parallel mode: join the
// coordinator, receive the config, run this node's job, report the result.
func RunWorker(ctx context.Context, joinAddr, hostname string, logger zerolog.Logger) error {
	logger = logger.With().Str("node", hostname).Logger()
	logger.Info().Str("coordinator", joinAddr).Msg("Joining cohort")

	client, err := cohort.Join(ctx, joinAddr, hostname)
	if err != nil {
		return err
	}
	defer client.Close()

	cfg, err := client.ReceiveConfig(workerJoinTimeout)
	if err != nil {
		return errors.Wrap(err, "failed to receive cluster config")
	}
	logger.Info().Msg("Configuration received, starting classification")

	result := job.NewRunner(cfg, job.LocalShell{}, logger).Run(ctx, hostname)
	if err := client.SendResult(&result); err != nil {
		return err
	}
	if !result.Success {
		return errors.Errorf("classification failed: %s", result.ErrorMessage)
	}
	return nil
}
