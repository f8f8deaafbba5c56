package coordinator

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/cohort"
	"github.com/ardaicoz/jn-cuclark/internal/collect"
	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/health"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/logging"
	"github.com/ardaicoz/jn-cuclark/internal/remote"
)

// Dispatcher runs the classification phase on the ready nodes and returns
// one NodeResult per dispatched node, master first, then workers in config
// order. Selected once at startup; retry and reporting logic live outside.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg *config.Config, ready []health.NodeStatus) ([]job.NodeResult, error)
}

// workerBinary is launched on each remote node in parallel mode. It is
// expected on the PATH of the remote login shell.
const workerBinary = "cuclarkd"

// ParallelDispatcher launches one worker process per ready remote node,
// synchronizes the cohort over the coordinator's listener, and collects
// results as they complete.
type ParallelDispatcher struct {
	Runner remote.Runner
	Logger zerolog.Logger

	// Shell runs the coordinator's own job; nil means the local sh.
	Shell job.CommandRunner

	// ListenAddr and AdvertiseHost default to ":0" and the configured
	// master hostname. Tests override them to stay on loopback.
	ListenAddr    string
	AdvertiseHost string
}

func localShell(shell job.CommandRunner) job.CommandRunner {
	if shell != nil {
		return shell
	}
	return job.LocalShell{}
}

func (d *ParallelDispatcher) Dispatch(ctx context.Context, cfg *config.Config, ready []health.NodeStatus) ([]job.NodeResult, error) {
	listenAddr := d.ListenAddr
	if listenAddr == "" {
		listenAddr = ":0"
	}
	server, err := cohort.NewServer(listenAddr, d.Logger)
	if err != nil {
		return nil, err
	}
	defer server.Close()

	joinAddr, err := d.joinAddr(cfg, server.Addr())
	if err != nil {
		return nil, err
	}

	// Launch goroutines outlive this call; the sink serializes their log
	// output with the coordinator's own.
	sink := logging.NewSink(d.Logger)
	defer sink.Close()

	workers := remoteReadyHosts(cfg, ready)
	for _, host := range workers {
		go d.launchWorker(ctx, cfg, host, joinAddr, sink)
	}

	commTimeout := time.Duration(cfg.Options.SSHTimeout) * time.Second
	missing, err := server.AwaitCohort(ctx, workers, commTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "cohort assembly aborted")
	}
	for _, host := range missing {
		d.Logger.Error().Str("node", host).Msg("Node never joined the cohort")
	}

	if len(workers) > len(missing) {
		if err := server.Distribute(cfg, commTimeout); err != nil {
			return nil, err
		}
	}

	// The coordinator participates in its own cohort when it has reads.
	var local *job.NodeResult
	if masterIsReady(cfg, ready) {
		result := job.NewRunner(cfg, localShell(d.Shell), d.Logger).Run(ctx, cfg.Cluster.Master)
		local = &result
	}

	jobTimeout := time.Duration(cfg.Options.JobTimeout) * time.Second
	collector := collect.NewCollector(cfg, d.Runner, d.Logger)
	results := collector.Gather(local, workers, func(host string) (*job.NodeResult, error) {
		return server.CollectResult(host, jobTimeout)
	})
	return results, nil
}

// launchWorker starts the worker process over ssh. The call blocks for the
// worker's whole lifetime, so it runs in its own goroutine; failures
// surface as a missing cohort member rather than here.
func (d *ParallelDispatcher) launchWorker(ctx context.Context, cfg *config.Config, host, joinAddr string, sink *logging.Sink) {
	cmd := "cd " + job.ShellQuote(cfg.Paths.CuclarkDir) + " && " + workerBinary +
		" worker --join " + job.ShellQuote(joinAddr) +
		" --node " + job.ShellQuote(host)
	sink.Info(host, "Launching worker process")
	if out, rc, err := d.Runner.Run(ctx, host, cmd); err != nil || rc != 0 {
		sink.Warn(host, fmt.Sprintf("worker process exited abnormally (code %d): %s", rc, firstLine(out)))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (d *ParallelDispatcher) joinAddr(cfg *config.Config, serverAddr string) (string, error) {
	_, port, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return "", errors.Wrapf(err, "unusable listen address %s", serverAddr)
	}
	host := d.AdvertiseHost
	if host == "" {
		host = cfg.Cluster.Master
	}
	return net.JoinHostPort(host, port), nil
}

// SequentialDispatcher is the degraded single-process mode: it walks the
// ready nodes in rank order, driving each node's job over ssh and blocking
// on it before moving to the next.
type SequentialDispatcher struct {
	Runner remote.Runner
	Logger zerolog.Logger

	// Shell runs the coordinator's own job; nil means the local sh.
	Shell job.CommandRunner
}

func (d *SequentialDispatcher) Dispatch(ctx context.Context, cfg *config.Config, ready []health.NodeStatus) ([]job.NodeResult, error) {
	results := make([]job.NodeResult, 0, len(ready))
	for _, ns := range ready {
		d.Logger.Info().Str("node", ns.Hostname).Msg("Processing node")

		var shell job.CommandRunner
		if ns.Hostname == cfg.Cluster.Master {
			shell = localShell(d.Shell)
		} else {
			shell = job.RemoteShell{Runner: d.Runner, Host: ns.Hostname}
		}
		results = append(results, job.NewRunner(cfg, shell, d.Logger).Run(ctx, ns.Hostname))
	}
	return results, nil
}

// remoteReadyHosts returns the dispatchable workers in config order,
// excluding the coordinator itself.
func remoteReadyHosts(cfg *config.Config, ready []health.NodeStatus) []string {
	readySet := make(map[string]bool, len(ready))
	for _, ns := range ready {
		readySet[ns.Hostname] = true
	}
	var hosts []string
	for _, w := range cfg.Cluster.Workers {
		if readySet[w] {
			hosts = append(hosts, w)
		}
	}
	return hosts
}

func masterIsReady(cfg *config.Config, ready []health.NodeStatus) bool {
	for _, ns := range ready {
		if ns.Hostname == cfg.Cluster.Master {
			return true
		}
	}
	return false
}
