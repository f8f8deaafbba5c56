// Package coordinator drives one cluster classification run end to end:
// preflight, dispatch, collection, merge, and report.
package coordinator

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/collect"
	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/health"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
	"github.com/ardaicoz/jn-cuclark/internal/report"
)

var (
	ErrNoReadyNodes      = errors.New("no nodes ready for processing")
	ErrNoSuccessfulNodes = errors.New("classification failed on every dispatched node")
)

// Outcome is what a finished run hands back to the CLI.
type Outcome struct {
	RunID      string
	Statuses   []health.NodeStatus
	Results    []job.NodeResult
	ReportPath string
	MergedFile string
}

func (o *Outcome) SuccessCount() int {
	n := 0
	for _, r := range o.Results {
		if r.Success {
			n++
		}
	}
	return n
}

type Coordinator struct {
	cfg        *config.Config
	runner     remote.Runner
	dispatcher Dispatcher
	shell      job.CommandRunner
	logger     zerolog.Logger
	now        func() time.Time
}

func New(cfg *config.Config, runner remote.Runner, dispatcher Dispatcher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		runner:     runner,
		dispatcher: dispatcher,
		shell:      job.LocalShell{},
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one full cluster run. The returned Outcome is non-nil
// whenever dispatch happened, even if every node failed; the error reports
// run-fatal conditions and the zero-success case.
func (c *Coordinator) Run(ctx context.Context) (*Outcome, error) {
	runID := "run-" + uuid.NewString()
	logger := c.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Str("master", c.cfg.Cluster.Master).
		Strs("workers", c.cfg.Cluster.Workers).
		Msg("Starting cluster classification run")

	if _, err := os.Stat(c.cfg.Paths.CuclarkDir); err != nil {
		return nil, errors.Wrapf(err, "CuCLARK directory %s not accessible on coordinator", c.cfg.Paths.CuclarkDir)
	}

	statuses := health.NewChecker(c.cfg, c.runner, logger).Preflight(ctx)
	ready := health.ReadyNodes(statuses)
	if len(ready) == 0 {
		return nil, ErrNoReadyNodes
	}

	if err := writeHostfile(c.cfg, ready); err != nil {
		logger.Warn().Err(err).Msg("Failed to write hostfile")
	}

	logger.Info().Int("nodes", len(ready)).Msg("Starting classification")
	results, err := c.dispatcher.Dispatch(ctx, c.cfg, ready)
	if err != nil {
		return nil, err
	}

	collector := collect.NewCollector(c.cfg, c.runner, logger)
	var abundanceFiles []string
	if c.cfg.Options.CollectResultsToMaster {
		abundanceFiles = collector.CollectFiles(ctx, results)
	} else {
		// Without collection only the coordinator's own file is local.
		for _, r := range results {
			if r.Success && r.Hostname == c.cfg.Cluster.Master && r.AbundanceFile != "" {
				abundanceFiles = append(abundanceFiles, r.AbundanceFile)
			}
		}
	}

	merged, err := report.Merge(ctx, c.cfg, c.shell, abundanceFiles, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Abundance merge failed")
		merged = ""
	}

	var pathogenSummary string
	if merged != "" {
		if summary, err := report.Summarize(merged); err != nil {
			logger.Warn().Err(err).Msg("Failed to summarize merged abundance")
		} else {
			pathogenSummary = summary
		}
	}

	outcome := &Outcome{
		RunID:      runID,
		Statuses:   statuses,
		Results:    results,
		MergedFile: merged,
	}

	reportPath, err := report.Write(report.Params{
		Cfg:             c.cfg,
		RunID:           runID,
		Statuses:        statuses,
		Results:         results,
		MergedAbundance: merged,
		PathogenSummary: pathogenSummary,
		GeneratedAt:     c.now(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to write report")
	} else {
		outcome.ReportPath = reportPath
		logger.Info().Str("report", reportPath).Msg("Report written")
	}

	logger.Info().
		Int("succeeded", outcome.SuccessCount()).
		Int("dispatched", len(results)).
		Msg("Run complete")

	if outcome.SuccessCount() == 0 {
		return outcome, ErrNoSuccessfulNodes
	}
	return outcome, nil
}

// writeHostfile records the dispatchable nodes, one hostname per line,
// under the tool's config directory.
func writeHostfile(cfg *config.Config, ready []health.NodeStatus) error {
	dir := path.Join(cfg.Paths.CuclarkDir, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var b strings.Builder
	for _, ns := range ready {
		b.WriteString(ns.Hostname + "\n")
	}
	target := path.Join(dir, "hostfile.txt")
	if err := os.WriteFile(target, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", target)
	}
	return nil
}
