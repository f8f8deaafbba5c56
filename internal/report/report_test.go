package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/health"
	"github.com/ardaicoz/jn-cuclark/internal/job"
)

type fakeShell struct {
	commands []string
	exitCode int
}

func (f *fakeShell) Run(_ context.Context, command string) (string, int, error) {
	f.commands = append(f.commands, command)
	return "", f.exitCode, nil
}

func reportConfig() *config.Config {
	cfg := config.Default()
	cfg.Cluster.Master = "jetson1"
	cfg.Cluster.Workers = []string{"jetson2"}
	cfg.Paths.CuclarkDir = "/opt/cuclark"
	cfg.Paths.Database = "/opt/db"
	cfg.Reads = map[string][]string{
		"jetson1": {"/data/r1.fastq"},
		"jetson2": {"/data/p1.fastq", "/data/p2.fastq"},
	}
	return &cfg
}

// Two nodes, both succeeding at 10s and 15s, must report 2/2 success,
// 25.0s total, 15.0s wall clock and a 1.67x speedup.
func TestRenderFullSuccess(t *testing.T) {
	cfg := reportConfig()
	p := Params{
		Cfg:   cfg,
		RunID: "run-00000000-0000-0000-0000-000000000000",
		Statuses: []health.NodeStatus{
			{Hostname: "jetson1", Reachable: true, DatabaseOk: true, ReadsOk: true, BinaryOk: true, DiskOk: true},
			{Hostname: "jetson2", Reachable: true, DatabaseOk: true, ReadsOk: true, BinaryOk: true, DiskOk: true},
		},
		Results: []job.NodeResult{
			{Hostname: "jetson1", Success: true, ResultFile: "/opt/cuclark/results/jetson1_r1.csv", AbundanceFile: "/opt/cuclark/results/jetson1_r1_abundance.txt", ElapsedSeconds: 10},
			{Hostname: "jetson2", Success: true, ResultFile: "/opt/cuclark/results/jetson2_p1.csv", AbundanceFile: "/opt/cuclark/results/jetson2_p1_abundance.txt", ElapsedSeconds: 15},
		},
		MergedAbundance: "/opt/cuclark/results/aggregated/merged_abundance.txt",
		GeneratedAt:     time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}

	text := Render(p)

	assert.Contains(t, text, "Nodes processed: 2/2")
	assert.Contains(t, text, "Total CPU time: 25.0 seconds")
	assert.Contains(t, text, "Wall clock time: 15.0 seconds")
	assert.Contains(t, text, "Speedup: 1.67x")
	assert.Contains(t, text, "jetson1: READY")
	assert.Contains(t, text, "jetson2: READY")
	assert.Contains(t, text, "MERGED ABUNDANCE")

	// Header precedes node blocks, node blocks precede the summary.
	assert.Less(t, strings.Index(text, "CLUSTER CONFIGURATION"), strings.Index(text, "NODE RESULTS"))
	assert.Less(t, strings.Index(text, "NODE RESULTS"), strings.Index(text, "SUMMARY"))
}

func TestRenderPartialFailure(t *testing.T) {
	cfg := reportConfig()
	p := Params{
		Cfg:   cfg,
		RunID: "run-x",
		Results: []job.NodeResult{
			{Hostname: "jetson1", Success: true, ResultFile: "/r.csv", ElapsedSeconds: 10},
			{Hostname: "jetson2", ErrorMessage: "classification failed with exit code 2: boom"},
		},
		GeneratedAt: time.Now(),
	}

	text := Render(p)

	assert.Contains(t, text, "Nodes processed: 1/2")
	assert.Contains(t, text, "Status: FAILED")
	assert.Contains(t, text, "Error: classification failed with exit code 2: boom")
	assert.NotContains(t, text, "MERGED ABUNDANCE")
}

func TestRenderFailedPreflightNodes(t *testing.T) {
	cfg := reportConfig()
	p := Params{
		Cfg: cfg,
		Statuses: []health.NodeStatus{
			{Hostname: "jetson1", Reachable: true, DatabaseOk: true, ReadsOk: true, BinaryOk: true},
			{Hostname: "jetson2", Reachable: false, ErrorMessage: "unreachable"},
		},
		Results: []job.NodeResult{
			{Hostname: "jetson1", Success: true, ResultFile: "/r.csv", ElapsedSeconds: 5},
		},
		GeneratedAt: time.Now(),
	}

	text := Render(p)

	// Failed health checks show up in pre-flight, not as node blocks.
	assert.Contains(t, text, "jetson2: FAILED (unreachable)")
	assert.Contains(t, text, "Nodes dispatched: 1")
	assert.Contains(t, text, "Nodes processed: 1/1")
}

func TestTimingZeroElapsed(t *testing.T) {
	total, max, speedup := Timing([]job.NodeResult{
		{Hostname: "jetson1", ErrorMessage: "no response"},
	})
	assert.Zero(t, total)
	assert.Zero(t, max)
	assert.Zero(t, speedup)
}

func TestMergeRunsWithTwoFiles(t *testing.T) {
	cfg := reportConfig()
	shell := &fakeShell{}

	merged, err := Merge(context.Background(), cfg, shell,
		[]string{"/a_abundance.txt", "/b_abundance.txt"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/opt/cuclark/results/aggregated/merged_abundance.txt", merged)

	require.Len(t, shell.commands, 1)
	assert.Contains(t, shell.commands[0], "./scripts/merge_abundance.sh")
	assert.Contains(t, shell.commands[0], "'/a_abundance.txt' '/b_abundance.txt'")
	assert.Contains(t, shell.commands[0], "-o '/opt/cuclark/results/aggregated/merged_abundance.txt'")
}

func TestMergeSkippedWithOneFile(t *testing.T) {
	cfg := reportConfig()
	shell := &fakeShell{}

	merged, err := Merge(context.Background(), cfg, shell, []string{"/a_abundance.txt"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Empty(t, shell.commands)
}

func TestMergeFailureReported(t *testing.T) {
	cfg := reportConfig()
	shell := &fakeShell{exitCode: 1}

	_, err := Merge(context.Background(), cfg, shell, []string{"/a.txt", "/b.txt"}, zerolog.Nop())
	assert.Error(t, err)
}
