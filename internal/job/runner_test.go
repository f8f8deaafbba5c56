package job

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardaicoz/jn-cuclark/internal/config"
)

// fakeShell scripts exit codes per command prefix and records every
// invocation.
type fakeShell struct {
	calls         []string
	classifyExit  int
	abundanceExit int
}

func (f *fakeShell) Run(_ context.Context, command string) (string, int, error) {
	f.calls = append(f.calls, command)
	switch {
	case strings.Contains(command, "classify_metagenome.sh"):
		return "", f.classifyExit, nil
	case strings.Contains(command, "estimate_abundance.sh"):
		return "", f.abundanceExit, nil
	default:
		return "", 0, nil
	}
}

func (f *fakeShell) classifyAttempts() int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, "classify_metagenome.sh") {
			n++
		}
	}
	return n
}

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

func TestRunSingleEnd(t *testing.T) {
	cfg := testConfig()
	shell := &fakeShell{}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson1")

	require.True(t, result.Success)
	assert.Empty(t, result.ErrorMessage)
	assert.Equal(t, "/opt/cuclark/results/jetson1_sample1.csv", result.ResultFile)
	assert.Equal(t, "/opt/cuclark/results/jetson1_sample1_abundance.txt", result.AbundanceFile)
	assert.GreaterOrEqual(t, result.ElapsedSeconds, 0.0)

	require.Equal(t, 1, shell.classifyAttempts())
	classify := shell.calls[1]
	assert.Contains(t, classify, "-O '/data/sample1.fastq'")
	assert.NotContains(t, classify, "-P")
	assert.Contains(t, classify, "-k 31")
	assert.Contains(t, classify, "-b 50000")
	assert.Contains(t, classify, "--light")
}

func TestRunPairedEnd(t *testing.T) {
	cfg := testConfig()
	shell := &fakeShell{}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson2")

	require.True(t, result.Success)
	classify := shell.calls[1]
	assert.Contains(t, classify, "-P '/data/pair_1.fastq' '/data/pair_2.fastq'")
	assert.NotContains(t, classify, "-O ")
	assert.Equal(t, "/opt/cuclark/results/jetson2_pair_1.csv", result.ResultFile)
}

func TestRunNoReadsConfigured(t *testing.T) {
	cfg := testConfig()
	shell := &fakeShell{}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson9")

	assert.False(t, result.Success)
	assert.Equal(t, "no reads configured", result.ErrorMessage)
	assert.Zero(t, shell.classifyAttempts())
}

func TestRunRetryBound(t *testing.T) {
	cfg := testConfig()
	cfg.Options.RetryFailedNodes = true
	cfg.Options.MaxRetries = 2

	shell := &fakeShell{classifyExit: 1}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson1")

	// maxRetries = N means exactly N+1 attempts.
	assert.Equal(t, 3, shell.classifyAttempts())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "exit code 1")
}

func TestRunNoRetryWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Options.RetryFailedNodes = false
	cfg.Options.MaxRetries = 5

	shell := &fakeShell{classifyExit: 1}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson1")

	assert.Equal(t, 1, shell.classifyAttempts())
	assert.False(t, result.Success)
}

func TestRunAbundanceFailureIsNonFatal(t *testing.T) {
	cfg := testConfig()
	shell := &fakeShell{abundanceExit: 1}
	runner := NewRunner(cfg, shell, zerolog.Nop())

	result := runner.Run(context.Background(), "jetson1")

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ResultFile)
	assert.Empty(t, result.AbundanceFile)
}

func TestOutputBase(t *testing.T) {
	assert.Equal(t, "jetson1_sample", OutputBase("jetson1", "/data/reads/sample.fastq"))
	assert.Equal(t, "jetson1_sample.tar", OutputBase("jetson1", "/data/sample.tar.gz"))
	assert.Equal(t, "jetson1_noext", OutputBase("jetson1", "noext"))
	// A leading dot is not an extension separator.
	assert.Equal(t, "jetson1_.hidden", OutputBase("jetson1", "/data/.hidden"))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'plain'", ShellQuote("plain"))
	assert.Equal(t, `'it'"'"'s'`, ShellQuote("it's"))
}
