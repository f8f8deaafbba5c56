// Package collect gathers per-node results at the coordinator and, when
// configured, pulls the produced artifacts into a coordinator-local
// aggregated directory.
package collect

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
)

// Source yields one node's result, blocking up to the dispatch strategy's
// own bound. Errors mean the node never responded usefully.
type Source func(host string) (*job.NodeResult, error)

type Collector struct {
	cfg    *config.Config
	runner remote.Runner
	logger zerolog.Logger
}

func NewCollector(cfg *config.Config, runner remote.Runner, logger zerolog.Logger) *Collector {
	return &Collector{cfg: cfg, runner: runner, logger: logger}
}

// Gather assembles exactly one NodeResult per dispatched node: the
// coordinator's own result first when it processed reads, then every
// dispatched worker in ascending rank order. A node whose source errors is
// recorded as failed with "no response" rather than blocking the run.
func (c *Collector) Gather(local *job.NodeResult, workers []string, source Source) []job.NodeResult {
	results := make([]job.NodeResult, 0, len(workers)+1)
	if local != nil {
		results = append(results, *local)
	}

	for _, host := range workers {
		result, err := source(host)
		if err != nil {
			c.logger.Error().Err(err).Str("node", host).Msg("No result from node")
			results = append(results, job.NodeResult{
				Hostname:     host,
				ErrorMessage: "no response",
			})
			continue
		}
		results = append(results, *result)
	}

	return results
}

// AggregatedDir is where collected artifacts land on the coordinator.
func (c *Collector) AggregatedDir() string {
	return path.Join(c.cfg.Paths.CuclarkDir, c.cfg.Paths.ResultsDir, "aggregated")
}

// CollectFiles pulls every successful worker's result and abundance files
// into the aggregated directory, named by hostname. The master's own files
// are already local and are referenced in place. Returns the local paths
// of all available abundance files, for merging.
func (c *Collector) CollectFiles(ctx context.Context, results []job.NodeResult) []string {
	dir := c.AggregatedDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to create aggregated results directory")
		return nil
	}

	timeout := time.Duration(c.cfg.Options.SSHTimeout) * time.Second
	var abundanceFiles []string

	for _, r := range results {
		if !r.Success {
			continue
		}

		if r.Hostname == c.cfg.Cluster.Master {
			if r.AbundanceFile != "" {
				abundanceFiles = append(abundanceFiles, r.AbundanceFile)
			}
			continue
		}

		c.logger.Info().Str("node", r.Hostname).Msg("Collecting results from node")

		if r.ResultFile != "" {
			local := path.Join(dir, r.Hostname+"_result.csv")
			if err := c.pull(ctx, r.Hostname, r.ResultFile, local, timeout); err != nil {
				c.logger.Warn().Err(err).Str("node", r.Hostname).Msg("Failed to copy result file")
			}
		}
		if r.AbundanceFile != "" {
			local := path.Join(dir, r.Hostname+"_abundance.txt")
			if err := c.pull(ctx, r.Hostname, r.AbundanceFile, local, timeout); err != nil {
				c.logger.Warn().Err(err).Str("node", r.Hostname).Msg("Failed to copy abundance file")
			} else {
				abundanceFiles = append(abundanceFiles, local)
			}
		}

		if !c.cfg.Options.KeepLocalResults {
			c.cleanup(ctx, r, timeout)
		}
	}

	return abundanceFiles
}

func (c *Collector) pull(ctx context.Context, host, remotePath, localPath string, timeout time.Duration) error {
	pullCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.runner.Copy(pullCtx, host, remotePath, localPath)
}

// cleanup removes a worker's local copies after a successful pull, per the
// keep_local_results option.
func (c *Collector) cleanup(ctx context.Context, r job.NodeResult, timeout time.Duration) {
	rmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := "rm -f " + job.ShellQuote(r.ResultFile)
	if r.AbundanceFile != "" {
		cmd += " " + job.ShellQuote(r.AbundanceFile)
	}
	if _, rc, err := c.runner.Run(rmCtx, r.Hostname, cmd); err != nil || rc != 0 {
		c.logger.Warn().Str("node", r.Hostname).Msg("Failed to remove node-local result files")
	}
}
