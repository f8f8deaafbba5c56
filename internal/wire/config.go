// Package wire implements the run-scoped serialization formats: the flat
// config record broadcast to every cohort member and the per-node result
// record sent back to the coordinator. Producer and consumer rely on the
// same fixed field order; values never contain the delimiters because
// config validation rejects them.
package wire

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ardaicoz/jn-cuclark/internal/config"
)

// ErrTruncated reports a config payload with fewer fields than the schema
// requires. Distribution errors are fatal to the whole run.
var ErrTruncated = errors.New("truncated config payload")

// configScalarFields is the number of newline-delimited scalar fields that
// precede the reads list, including the reads count itself.
const configScalarFields = 19

// EncodeConfig renders cfg as a flat record: scalar fields one per line in
// fixed order, then a count-prefixed list of hostname:file1,file2 entries
// for the reads mapping, in sorted hostname order.
func EncodeConfig(cfg *config.Config) []byte {
	var b strings.Builder

	writeLine := func(s string) { b.WriteString(s + "\n") }

	writeLine(cfg.Cluster.Master)
	writeLine(strings.Join(cfg.Cluster.Workers, ","))
	writeLine(cfg.Paths.CuclarkDir)
	writeLine(cfg.Paths.Database)
	writeLine(cfg.Paths.ResultsDir)
	writeLine(strconv.Itoa(cfg.Classification.KmerSize))
	writeLine(strconv.Itoa(cfg.Classification.BatchSize))
	writeLine(strings.Join(cfg.Classification.ExtraFlags, ","))
	writeLine(encodeBool(cfg.Options.MasterProcessesReads))
	writeLine(encodeBool(cfg.Options.RetryFailedNodes))
	writeLine(strconv.Itoa(cfg.Options.MaxRetries))
	writeLine(encodeBool(cfg.Options.CollectResultsToMaster))
	writeLine(encodeBool(cfg.Options.KeepLocalResults))
	writeLine(strconv.Itoa(cfg.Options.SSHTimeout))
	writeLine(strconv.Itoa(cfg.Options.JobTimeout))
	writeLine(cfg.Logging.Level)
	writeLine(cfg.Logging.File)
	writeLine(encodeBool(cfg.Logging.ShowProgress))

	hosts := make([]string, 0, len(cfg.Reads))
	for host := range cfg.Reads {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	writeLine(strconv.Itoa(len(hosts)))
	for _, host := range hosts {
		writeLine(host + ":" + strings.Join(cfg.Reads[host], ","))
	}

	return []byte(b.String())
}

// DecodeConfig parses a payload produced by EncodeConfig. Malformed or
// truncated payloads are an error; the caller aborts the run rather than
// proceed with divergent configuration.
func DecodeConfig(payload []byte) (*config.Config, error) {
	text := string(payload)
	if !strings.HasSuffix(text, "\n") {
		return nil, ErrTruncated
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) < configScalarFields {
		return nil, ErrTruncated
	}

	var cfg config.Config
	var err error

	next := func() string {
		line := lines[0]
		lines = lines[1:]
		return line
	}

	cfg.Cluster.Master = next()
	cfg.Cluster.Workers = splitList(next())
	cfg.Paths.CuclarkDir = next()
	cfg.Paths.Database = next()
	cfg.Paths.ResultsDir = next()
	if cfg.Classification.KmerSize, err = parseInt(next(), "kmer_size"); err != nil {
		return nil, err
	}
	if cfg.Classification.BatchSize, err = parseInt(next(), "batch_size"); err != nil {
		return nil, err
	}
	cfg.Classification.ExtraFlags = splitList(next())
	cfg.Options.MasterProcessesReads = next() == "1"
	cfg.Options.RetryFailedNodes = next() == "1"
	if cfg.Options.MaxRetries, err = parseInt(next(), "max_retries"); err != nil {
		return nil, err
	}
	cfg.Options.CollectResultsToMaster = next() == "1"
	cfg.Options.KeepLocalResults = next() == "1"
	if cfg.Options.SSHTimeout, err = parseInt(next(), "ssh_timeout"); err != nil {
		return nil, err
	}
	if cfg.Options.JobTimeout, err = parseInt(next(), "job_timeout"); err != nil {
		return nil, err
	}
	cfg.Logging.Level = next()
	cfg.Logging.File = next()
	cfg.Logging.ShowProgress = next() == "1"

	count, err := parseInt(next(), "reads count")
	if err != nil {
		return nil, err
	}
	if count != len(lines) {
		return nil, errors.Wrapf(ErrTruncated, "expected %d reads entries, got %d", count, len(lines))
	}

	cfg.Reads = make(map[string][]string, count)
	for _, line := range lines {
		host, files, ok := strings.Cut(line, ":")
		if !ok || host == "" {
			return nil, errors.Errorf("malformed reads entry %q", line)
		}
		cfg.Reads[host] = splitList(files)
	}

	return &cfg, nil
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseInt(s, field string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("malformed %s field %q", field, s)
	}
	return v, nil
}
