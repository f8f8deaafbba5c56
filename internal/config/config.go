package config

import (
	"strings"

	"github.com/pkg/errors"
)

// Reserved characters that may not appear in hostnames or read paths.
// The wire format (internal/wire) uses them as field and list delimiters,
// and the chosen policy is to reject them at load time rather than escape.
const ReservedChars = "|:,\n"

const (
	DefaultKmerSize   = 31
	DefaultBatchSize  = 50000
	DefaultMaxRetries = 3
	DefaultSSHTimeout = 30
	DefaultJobTimeout = 3600
)

// Config is the validated cluster configuration. It is built once by the
// coordinator, distributed to every cohort member, and never mutated after
// distribution.
type Config struct {
	Cluster        Cluster             `yaml:"cluster"`
	Paths          Paths               `yaml:"paths"`
	Reads          map[string][]string `yaml:"reads"`
	Classification Classification      `yaml:"classification"`
	Options        Options             `yaml:"options"`
	Logging        Logging             `yaml:"logging"`
}

// Cluster names the participating nodes. Worker order is the rank order
// used for dispatch and reporting.
type Cluster struct {
	Master  string   `yaml:"master"`
	Workers []string `yaml:"workers"`
}

type Paths struct {
	CuclarkDir string `yaml:"cuclark_dir"`
	Database   string `yaml:"database"`
	ResultsDir string `yaml:"results_dir"`
}

// Classification parameters are passed through to the external classify
// command; the coordinator does not interpret them beyond validation.
type Classification struct {
	KmerSize   int      `yaml:"kmer_size"`
	BatchSize  int      `yaml:"batch_size"`
	ExtraFlags []string `yaml:"extra_flags"`
}

type Options struct {
	MasterProcessesReads   bool `yaml:"master_processes_reads"`
	RetryFailedNodes       bool `yaml:"retry_failed_nodes"`
	MaxRetries             int  `yaml:"max_retries"`
	CollectResultsToMaster bool `yaml:"collect_results_to_master"`
	KeepLocalResults       bool `yaml:"keep_local_results"`
	SSHTimeout             int  `yaml:"ssh_timeout"`
	JobTimeout             int  `yaml:"job_timeout"`
}

type Logging struct {
	Level        string `yaml:"level"`
	File         string `yaml:"file"`
	ShowProgress bool   `yaml:"show_progress"`
}

// Default returns a Config carrying the documented defaults. Loading a file
// overlays the defaults, so omitted keys keep these values.
func Default() Config {
	return Config{
		Paths: Paths{
			ResultsDir: "results",
		},
		Classification: Classification{
			KmerSize:  DefaultKmerSize,
			BatchSize: DefaultBatchSize,
		},
		Options: Options{
			MasterProcessesReads:   true,
			RetryFailedNodes:       true,
			MaxRetries:             DefaultMaxRetries,
			CollectResultsToMaster: true,
			KeepLocalResults:       true,
			SSHTimeout:             DefaultSSHTimeout,
			JobTimeout:             DefaultJobTimeout,
		},
		Logging: Logging{
			Level:        "info",
			File:         "cluster_run.log",
			ShowProgress: true,
		},
	}
}

// Validate checks topology, per-node read assignments and numeric options.
// Path existence is checked later, coordinator-side, before dispatch.
func (c *Config) Validate() error {
	if c.Cluster.Master == "" {
		return errors.New("cluster.master is required")
	}
	if len(c.Cluster.Workers) == 0 {
		return errors.New("cluster.workers must list at least one node")
	}
	if err := checkIdentifier("cluster.master", c.Cluster.Master); err != nil {
		return err
	}
	seen := map[string]bool{c.Cluster.Master: true}
	for _, w := range c.Cluster.Workers {
		if err := checkIdentifier("cluster.workers entry", w); err != nil {
			return err
		}
		if w == c.Cluster.Master {
			return errors.Errorf("master %q must not be listed as a worker", w)
		}
		if seen[w] {
			return errors.Errorf("duplicate worker %q", w)
		}
		seen[w] = true
	}

	if c.Paths.CuclarkDir == "" {
		return errors.New("paths.cuclark_dir is required")
	}
	if c.Paths.Database == "" {
		return errors.New("paths.database is required")
	}
	if c.Paths.ResultsDir == "" {
		return errors.New("paths.results_dir is required")
	}

	for host, files := range c.Reads {
		if !seen[host] {
			return errors.Errorf("reads configured for unknown node %q", host)
		}
		if len(files) == 0 {
			return errors.Errorf("reads.%s lists no files", host)
		}
		if len(files) > 2 {
			return errors.Errorf("reads.%s lists %d files; expected 1 (single-end) or 2 (paired-end)", host, len(files))
		}
		for _, f := range files {
			if f == "" {
				return errors.Errorf("reads.%s contains an empty path", host)
			}
			if strings.ContainsAny(f, ReservedChars) {
				return errors.Errorf("reads.%s path %q contains a reserved character (one of %q)", host, f, ReservedChars)
			}
		}
	}

	if c.Classification.KmerSize <= 0 {
		return errors.Errorf("classification.kmer_size must be positive, got %d", c.Classification.KmerSize)
	}
	if c.Classification.BatchSize <= 0 {
		return errors.Errorf("classification.batch_size must be positive, got %d", c.Classification.BatchSize)
	}
	if c.Options.MaxRetries < 0 {
		return errors.Errorf("options.max_retries must not be negative, got %d", c.Options.MaxRetries)
	}
	if c.Options.SSHTimeout <= 0 {
		return errors.Errorf("options.ssh_timeout must be positive, got %d", c.Options.SSHTimeout)
	}
	if c.Options.JobTimeout <= 0 {
		return errors.Errorf("options.job_timeout must be positive, got %d", c.Options.JobTimeout)
	}

	return nil
}

func checkIdentifier(what, value string) error {
	if strings.ContainsAny(value, ReservedChars+" \t") {
		return errors.Errorf("%s %q contains a reserved character (one of %q)", what, value, ReservedChars)
	}
	return nil
}

// CandidateNodes returns the nodes eligible for health checks and dispatch:
// the master first when it processes reads, then every worker, in rank order.
func (c *Config) CandidateNodes() []string {
	nodes := make([]string, 0, len(c.Cluster.Workers)+1)
	if c.Options.MasterProcessesReads {
		nodes = append(nodes, c.Cluster.Master)
	}
	nodes = append(nodes, c.Cluster.Workers...)
	return nodes
}

// Rank returns the node's position in the cohort: the master is rank 0,
// workers follow in configuration order. Unknown hosts get -1.
func (c *Config) Rank(host string) int {
	if host == c.Cluster.Master {
		return 0
	}
	for i, w := range c.Cluster.Workers {
		if w == host {
			return i + 1
		}
	}
	return -1
}

// ReadsFor returns the read files assigned to host, or nil when the node
// has no work.
func (c *Config) ReadsFor(host string) []string {
	return c.Reads[host]
}
