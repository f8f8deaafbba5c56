// Package health implements the per-node readiness probes run before any
// work is dispatched.
package health

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
)

// minFreeGB is the advisory free-space floor. Falling below it logs a
// warning but never blocks dispatch.
const minFreeGB = 1

// NodeStatus is the outcome of one node's preflight probes, created fresh
// per run and never persisted.
type NodeStatus struct {
	Hostname     string
	Reachable    bool
	DatabaseOk   bool
	ReadsOk      bool
	BinaryOk     bool
	DiskOk       bool
	ErrorMessage string
}

// Ready reports whether the node may receive work. Disk space is advisory
// only.
func (s NodeStatus) Ready() bool {
	return s.Reachable && s.DatabaseOk && s.ReadsOk && s.BinaryOk
}

// Checker probes candidate nodes over the remote runner.
type Checker struct {
	cfg    *config.Config
	runner remote.Runner
	logger zerolog.Logger
}

func NewChecker(cfg *config.Config, runner remote.Runner, logger zerolog.Logger) *Checker {
	return &Checker{cfg: cfg, runner: runner, logger: logger}
}

// CheckNode runs the probe sequence for one node. Each probe short-circuits
// the remaining ones on failure; none aborts the whole run.
func (c *Checker) CheckNode(ctx context.Context, hostname string) NodeStatus {
	status := NodeStatus{Hostname: hostname}

	c.logger.Info().Str("node", hostname).Msg("Checking node")

	out, rc, err := c.run(ctx, hostname, "echo 'OK'")
	if err != nil || rc != 0 || !strings.Contains(out, "OK") {
		status.ErrorMessage = "node not reachable: " + firstLine(out)
		c.logger.Error().Str("node", hostname).Msg(status.ErrorMessage)
		return status
	}
	status.Reachable = true
	c.logger.Debug().Str("node", hostname).Msg("SSH connection OK")

	db := c.cfg.Paths.Database
	dbCheck := "test -d " + job.ShellQuote(db) +
		" && test -d " + job.ShellQuote(path.Join(db, "Custom")) +
		" && test -d " + job.ShellQuote(path.Join(db, "taxonomy")) +
		" && echo 'DB_OK'"
	out, rc, err = c.run(ctx, hostname, dbCheck)
	if err != nil || rc != 0 || !strings.Contains(out, "DB_OK") {
		status.ErrorMessage = "database not found or incomplete at " + db
		c.logger.Error().Str("node", hostname).Msg(status.ErrorMessage)
		return status
	}
	status.DatabaseOk = true
	c.logger.Debug().Str("node", hostname).Msg("Database OK")

	reads := c.cfg.ReadsFor(hostname)
	if len(reads) == 0 {
		status.ErrorMessage = "no reads configured for this node"
		c.logger.Error().Str("node", hostname).Msg(status.ErrorMessage)
		return status
	}
	for _, readFile := range reads {
		out, rc, err = c.run(ctx, hostname, "test -f "+job.ShellQuote(readFile)+" && echo 'READ_OK'")
		if err != nil || rc != 0 || !strings.Contains(out, "READ_OK") {
			status.ErrorMessage = "read file not found: " + readFile
			c.logger.Error().Str("node", hostname).Msg(status.ErrorMessage)
			return status
		}
	}
	status.ReadsOk = true
	c.logger.Debug().Str("node", hostname).Msg("Read files OK")

	binary := path.Join(c.cfg.Paths.CuclarkDir, "bin", "cuCLARK-l")
	out, rc, err = c.run(ctx, hostname, "test -x "+job.ShellQuote(binary)+" && echo 'BIN_OK'")
	if err != nil || rc != 0 || !strings.Contains(out, "BIN_OK") {
		status.ErrorMessage = "cuCLARK-l binary not found or not executable at " + binary
		c.logger.Error().Str("node", hostname).Msg(status.ErrorMessage)
		return status
	}
	status.BinaryOk = true
	c.logger.Debug().Str("node", hostname).Msg("Binary OK")

	diskCheck := "df -BG " + job.ShellQuote(c.cfg.Paths.CuclarkDir) +
		" | tail -1 | awk '{print $4}' | tr -d 'G'"
	out, rc, err = c.run(ctx, hostname, diskCheck)
	if err == nil && rc == 0 {
		if freeGB, parseErr := strconv.Atoi(strings.TrimSpace(out)); parseErr == nil {
			if freeGB < minFreeGB {
				c.logger.Warn().Str("node", hostname).Int("free_gb", freeGB).
					Msg("Insufficient disk space (< 1GB free)")
			}
		} else {
			c.logger.Warn().Str("node", hostname).Msg("Could not parse disk space")
		}
	}
	status.DiskOk = true

	c.logger.Info().Str("node", hostname).Msg("All checks passed")
	return status
}

// Preflight checks every candidate node and returns the statuses in rank
// order. The run may proceed as long as at least one node is ready.
func (c *Checker) Preflight(ctx context.Context) []NodeStatus {
	candidates := c.cfg.CandidateNodes()
	if !c.cfg.Options.MasterProcessesReads {
		c.logger.Info().Str("node", c.cfg.Cluster.Master).
			Msg("Master will only coordinate, not process reads")
	}

	statuses := make([]NodeStatus, 0, len(candidates))
	for _, node := range candidates {
		statuses = append(statuses, c.CheckNode(ctx, node))
	}

	ready := 0
	for _, s := range statuses {
		state := "FAILED"
		if s.Ready() {
			state = "READY"
			ready++
		}
		c.logger.Info().Str("node", s.Hostname).Str("status", state).Msg("Preflight result")
	}
	c.logger.Info().
		Int("ready", ready).
		Int("total", len(statuses)).
		Msg("Preflight summary")

	return statuses
}

// ReadyNodes filters statuses down to the dispatchable ones, preserving
// order.
func ReadyNodes(statuses []NodeStatus) []NodeStatus {
	ready := make([]NodeStatus, 0, len(statuses))
	for _, s := range statuses {
		if s.Ready() {
			ready = append(ready, s)
		}
	}
	return ready
}

// run bounds each probe with the configured ssh timeout on top of the
// runner's own connect timeout.
func (c *Checker) run(ctx context.Context, host, command string) (string, int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Options.SSHTimeout)*time.Second)
	defer cancel()
	return c.runner.Run(probeCtx, host, command)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Summary renders one human-readable line per probe, used by the preflight
// command.
func (s NodeStatus) Summary() string {
	if s.Ready() {
		return fmt.Sprintf("%s: READY", s.Hostname)
	}
	return fmt.Sprintf("%s: FAILED (%s)", s.Hostname, s.ErrorMessage)
}
