package health

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardaicoz/jn-cuclark/internal/config"
)

// scriptedRunner answers probe commands per host from a canned table.
type scriptedRunner struct {
	// unreachable hosts fail the echo probe.
	unreachable map[string]bool
	// missing maps a command substring to hosts it should fail on.
	missing map[string][]string
	// diskFreeGB overrides the df output; empty means "9".
	diskFreeGB string
	calls      []string
}

func (r *scriptedRunner) Run(_ context.Context, host, command string) (string, int, error) {
	r.calls = append(r.calls, host+": "+command)

	if r.unreachable[host] {
		return "ssh: connect to host: Connection refused", 255, nil
	}
	for needle, hosts := range r.missing {
		if strings.Contains(command, needle) {
			for _, h := range hosts {
				if h == host {
					return "", 1, nil
				}
			}
		}
	}
	switch {
	case strings.Contains(command, "echo 'OK'"):
		return "OK\n", 0, nil
	case strings.Contains(command, "DB_OK"):
		return "DB_OK\n", 0, nil
	case strings.Contains(command, "READ_OK"):
		return "READ_OK\n", 0, nil
	case strings.Contains(command, "BIN_OK"):
		return "BIN_OK\n", 0, nil
	case strings.Contains(command, "df -BG"):
		if r.diskFreeGB != "" {
			return r.diskFreeGB + "\n", 0, nil
		}
		return "9\n", 0, nil
	}
	return "", 0, nil
}

func (r *scriptedRunner) Copy(context.Context, string, string, string) error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cluster.Master = "jetson1"
	cfg.Cluster.Workers = []string{"jetson2"}
	cfg.Paths.CuclarkDir = "/opt/cuclark"
	cfg.Paths.Database = "/opt/db"
	cfg.Reads = map[string][]string{
		"jetson1": {"/data/sample1.fastq"},
		"jetson2": {"/data/pair_1.fastq", "/data/pair_2.fastq"},
	}
	return &cfg
}

func TestCheckNodeAllOk(t *testing.T) {
	checker := NewChecker(testConfig(), &scriptedRunner{}, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson1")

	assert.True(t, status.Ready())
	assert.True(t, status.Reachable)
	assert.True(t, status.DatabaseOk)
	assert.True(t, status.ReadsOk)
	assert.True(t, status.BinaryOk)
	assert.True(t, status.DiskOk)
	assert.Empty(t, status.ErrorMessage)
}

func TestCheckNodeUnreachableShortCircuits(t *testing.T) {
	runner := &scriptedRunner{unreachable: map[string]bool{"jetson2": true}}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson2")

	assert.False(t, status.Ready())
	assert.False(t, status.Reachable)
	assert.Contains(t, status.ErrorMessage, "not reachable")
	// Only the liveness probe ran.
	assert.Len(t, runner.calls, 1)
}

func TestCheckNodeMissingDatabase(t *testing.T) {
	runner := &scriptedRunner{missing: map[string][]string{"DB_OK": {"jetson1"}}}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson1")

	assert.True(t, status.Reachable)
	assert.False(t, status.DatabaseOk)
	assert.False(t, status.Ready())
	assert.Contains(t, status.ErrorMessage, "database")
}

func TestCheckNodeMissingReadFile(t *testing.T) {
	runner := &scriptedRunner{missing: map[string][]string{"READ_OK": {"jetson2"}}}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson2")

	assert.True(t, status.DatabaseOk)
	assert.False(t, status.ReadsOk)
	assert.False(t, status.Ready())
	assert.Contains(t, status.ErrorMessage, "read file not found")
}

func TestCheckNodeNoReadsConfigured(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Reads, "jetson2")
	checker := NewChecker(cfg, &scriptedRunner{}, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson2")

	assert.False(t, status.ReadsOk)
	assert.Contains(t, status.ErrorMessage, "no reads configured")
}

func TestCheckNodeMissingBinary(t *testing.T) {
	runner := &scriptedRunner{missing: map[string][]string{"BIN_OK": {"jetson1"}}}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson1")

	assert.False(t, status.BinaryOk)
	assert.False(t, status.Ready())
	assert.Contains(t, status.ErrorMessage, "cuCLARK-l")
}

// Low disk space warns but never blocks dispatch.
func TestCheckNodeLowDiskIsAdvisory(t *testing.T) {
	runner := &scriptedRunner{diskFreeGB: "0"}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	status := checker.CheckNode(context.Background(), "jetson1")

	assert.True(t, status.Ready())
	assert.True(t, status.DiskOk)
	assert.Empty(t, status.ErrorMessage)
}

func TestPreflightOrderAndReadyNodes(t *testing.T) {
	runner := &scriptedRunner{unreachable: map[string]bool{"jetson2": true}}
	checker := NewChecker(testConfig(), runner, zerolog.Nop())

	statuses := checker.Preflight(context.Background())

	require.Len(t, statuses, 2)
	assert.Equal(t, "jetson1", statuses[0].Hostname)
	assert.Equal(t, "jetson2", statuses[1].Hostname)

	ready := ReadyNodes(statuses)
	require.Len(t, ready, 1)
	assert.Equal(t, "jetson1", ready[0].Hostname)
}

func TestPreflightSkipsMasterWhenNotProcessing(t *testing.T) {
	cfg := testConfig()
	cfg.Options.MasterProcessesReads = false
	checker := NewChecker(cfg, &scriptedRunner{}, zerolog.Nop())

	statuses := checker.Preflight(context.Background())

	require.Len(t, statuses, 1)
	assert.Equal(t, "jetson2", statuses[0].Hostname)
}
