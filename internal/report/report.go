// Package report renders the aggregate outcome of a cluster run into the
// plain-text cluster report, and triggers the cross-node abundance merge
// when enough abundance files were produced.
package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/health"
	"github.com/ardaicoz/jn-cuclark/internal/job"
)

const reportFileName = "cluster_report.txt"

// Params carries everything the report is a function of. GeneratedAt is a
// field so tests can pin the timestamp.
type Params struct {
	Cfg             *config.Config
	RunID           string
	Statuses        []health.NodeStatus
	Results         []job.NodeResult
	MergedAbundance string
	PathogenSummary string
	GeneratedAt     time.Time
}

// Timing reduces the result collection to the three summary numbers: sum of
// per-node elapsed time, maximum per-node elapsed time, and their ratio.
// Speedup is 0 when no node recorded any elapsed time.
func Timing(results []job.NodeResult) (total, max, speedup float64) {
	for _, r := range results {
		total += r.ElapsedSeconds
		if r.ElapsedSeconds > max {
			max = r.ElapsedSeconds
		}
	}
	if max > 0 {
		speedup = total / max
	}
	return total, max, speedup
}

// Render produces the report text. Section order is fixed so repeated runs
// over the same input differ only in timing values.
func Render(p Params) string {
	var b strings.Builder
	rule := strings.Repeat("-", 60)

	b.WriteString("========================================\n")
	b.WriteString("  CuCLARK Cluster Classification Report\n")
	fmt.Fprintf(&b, "  Generated: %s\n", p.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Run ID: %s\n", p.RunID)
	b.WriteString("========================================\n\n")

	b.WriteString("CLUSTER CONFIGURATION\n")
	fmt.Fprintf(&b, "  Master: %s\n", p.Cfg.Cluster.Master)
	fmt.Fprintf(&b, "  Workers: %s\n", strings.Join(p.Cfg.Cluster.Workers, ", "))
	fmt.Fprintf(&b, "  Database: %s\n", p.Cfg.Paths.Database)
	fmt.Fprintf(&b, "  K-mer size: %d\n", p.Cfg.Classification.KmerSize)
	fmt.Fprintf(&b, "  Batch size: %d\n", p.Cfg.Classification.BatchSize)
	fmt.Fprintf(&b, "  Nodes dispatched: %d\n\n", len(p.Results))

	if len(p.Statuses) > 0 {
		b.WriteString("PRE-FLIGHT CHECKS\n")
		for _, s := range p.Statuses {
			fmt.Fprintf(&b, "  %s\n", s.Summary())
		}
		b.WriteString("\n")
	}

	b.WriteString("NODE RESULTS\n")
	b.WriteString(rule + "\n")
	successCount := 0
	for _, r := range p.Results {
		fmt.Fprintf(&b, "  %s:\n", r.Hostname)
		if r.Success {
			successCount++
			b.WriteString("    Status: SUCCESS\n")
			fmt.Fprintf(&b, "    Elapsed: %.1f seconds\n", r.ElapsedSeconds)
			fmt.Fprintf(&b, "    Result: %s\n", r.ResultFile)
			if r.AbundanceFile != "" {
				fmt.Fprintf(&b, "    Abundance: %s\n", r.AbundanceFile)
			}
		} else {
			b.WriteString("    Status: FAILED\n")
			fmt.Fprintf(&b, "    Error: %s\n", r.ErrorMessage)
		}
		b.WriteString("\n")
	}

	if p.MergedAbundance != "" {
		b.WriteString("MERGED ABUNDANCE\n")
		fmt.Fprintf(&b, "  %s\n\n", p.MergedAbundance)
	}

	total, max, speedup := Timing(p.Results)
	b.WriteString("SUMMARY\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "  Nodes processed: %d/%d\n", successCount, len(p.Results))
	fmt.Fprintf(&b, "  Total CPU time: %.1f seconds\n", total)
	fmt.Fprintf(&b, "  Wall clock time: %.1f seconds\n", max)
	fmt.Fprintf(&b, "  Speedup: %.2fx\n\n", speedup)

	if p.PathogenSummary != "" {
		b.WriteString("PATHOGEN SUMMARY\n")
		b.WriteString(rule + "\n")
		b.WriteString(p.PathogenSummary)
		b.WriteString("\n")
	}

	return b.String()
}

// Path is where the report lands on the coordinator.
func Path(cfg *config.Config) string {
	return path.Join(cfg.Paths.CuclarkDir, cfg.Paths.ResultsDir, reportFileName)
}

// Write renders and persists the report. Failure to write is a warning for
// the caller, not a run failure.
func Write(p Params) (string, error) {
	target := Path(p.Cfg)
	if err := os.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create results directory for %s", target)
	}
	if err := os.WriteFile(target, []byte(Render(p)), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write report to %s", target)
	}
	return target, nil
}

// Merge combines the collected abundance files into one merged file via the
// external merge collaborator. With fewer than two files there is nothing
// to merge and the step is skipped with an informational message.
func Merge(ctx context.Context, cfg *config.Config, shell job.CommandRunner, abundanceFiles []string, logger zerolog.Logger) (string, error) {
	if len(abundanceFiles) < 2 {
		logger.Info().Int("files", len(abundanceFiles)).Msg("Fewer than two abundance files, skipping merge")
		return "", nil
	}

	merged := path.Join(cfg.Paths.CuclarkDir, cfg.Paths.ResultsDir, "aggregated", "merged_abundance.txt")
	output, rc, err := shell.Run(ctx, job.MergeCommand(cfg, abundanceFiles, merged))
	if err != nil {
		return "", errors.Wrap(err, "abundance merge failed")
	}
	if rc != 0 {
		return "", errors.Errorf("abundance merge exited with code %d: %s", rc, strings.TrimSpace(output))
	}

	logger.Info().Str("file", merged).Msg("Merged abundance written")
	return merged, nil
}
