package job

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
)

// CommandRunner executes one shell command for a node and reports its
// combined output and exit status. The local implementation runs on the
// node doing the work; the remote one lets the sequential dispatch strategy
// drive the same runner over ssh.
type CommandRunner interface {
	Run(ctx context.Context, command string) (output string, exitCode int, err error)
}

// LocalShell runs commands through sh -c on the current host.
type LocalShell struct{}

func (LocalShell) Run(ctx context.Context, command string) (string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, errors.Wrap(err, "failed to run command")
	}
	return string(out), 0, nil
}

// RemoteShell runs commands on a fixed host through a remote.Runner.
type RemoteShell struct {
	Runner remote.Runner
	Host   string
}

func (r RemoteShell) Run(ctx context.Context, command string) (string, int, error) {
	return r.Runner.Run(ctx, r.Host, command)
}

// Runner executes the classify+abundance sequence for one node's assigned
// reads. The same Runner serves both dispatch strategies; only the
// CommandRunner differs.
type Runner struct {
	cfg    *config.Config
	cmd    CommandRunner
	logger zerolog.Logger
}

func NewRunner(cfg *config.Config, cmd CommandRunner, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, cmd: cmd, logger: logger}
}

// Run performs the sequence for hostname, retrying per the configured
// policy. Retries are immediate re-invocations with identical inputs.
func (r *Runner) Run(ctx context.Context, hostname string) NodeResult {
	attempts := 1
	if r.cfg.Options.RetryFailedNodes {
		attempts += r.cfg.Options.MaxRetries
	}

	var result NodeResult
	for attempt := 1; attempt <= attempts; attempt++ {
		result = r.runOnce(ctx, hostname)
		if result.Success {
			return result
		}
		if attempt < attempts {
			r.logger.Warn().
				Str("node", hostname).
				Int("attempt", attempt).
				Str("error", result.ErrorMessage).
				Msg("Classification failed, retrying")
		}
	}
	return result
}

// runOnce is a single pass: reads lookup, results dir, classify, abundance.
// Abundance failure does not fail the node.
func (r *Runner) runOnce(ctx context.Context, hostname string) NodeResult {
	result := NodeResult{Hostname: hostname}
	start := time.Now()

	reads := r.cfg.ReadsFor(hostname)
	if len(reads) == 0 {
		result.ErrorMessage = "no reads configured"
		return result
	}

	resultsDir := path.Join(r.cfg.Paths.CuclarkDir, r.cfg.Paths.ResultsDir)
	if out, rc, err := r.cmd.Run(ctx, MkdirCommand(resultsDir)); err != nil || rc != 0 {
		r.logger.Warn().Str("node", hostname).Str("dir", resultsDir).Str("output", out).
			Msg("Could not ensure results directory exists")
	}

	outputPath := OutputPath(r.cfg, hostname, reads[0])

	classify := ClassifyCommand(r.cfg, reads, outputPath)
	r.logger.Debug().Str("node", hostname).Str("command", classify).Msg("Running classification")

	out, rc, err := r.cmd.Run(ctx, classify)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ElapsedSeconds = time.Since(start).Seconds()
		return result
	}
	if rc != 0 {
		result.ErrorMessage = fmt.Sprintf("classification failed with exit code %d: %s", rc, truncate(out, 200))
		result.ElapsedSeconds = time.Since(start).Seconds()
		return result
	}

	result.ResultFile = ResultFile(outputPath)

	abundanceFile := AbundanceFile(outputPath)
	abundance := AbundanceCommand(r.cfg, result.ResultFile, abundanceFile)
	if out, rc, err := r.cmd.Run(ctx, abundance); err != nil || rc != 0 {
		r.logger.Warn().Str("node", hostname).Int("exit_code", rc).Str("output", truncate(out, 200)).
			Msg("Abundance estimation failed, continuing without abundance file")
	} else {
		result.AbundanceFile = abundanceFile
	}

	result.ElapsedSeconds = time.Since(start).Seconds()
	result.Success = true

	r.logger.Info().
		Str("node", hostname).
		Float64("elapsed_seconds", result.ElapsedSeconds).
		Str("result_file", result.ResultFile).
		Msg("Classification completed")

	return result
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
