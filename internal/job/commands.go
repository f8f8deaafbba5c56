package job

import (
	"path"
	"strconv"
	"strings"

	"github.com/ardaicoz/jn-cuclark/internal/config"
)

// External collaborator scripts, relative to the CuCLARK directory.
const (
	classifyScript  = "./scripts/classify_metagenome.sh"
	abundanceScript = "./scripts/estimate_abundance.sh"
	mergeScript     = "./scripts/merge_abundance.sh"
)

// ShellQuote single-quotes value for safe interpolation into a shell
// command line.
func ShellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// OutputBase derives the deterministic output basename for a node's reads:
// the first read file with directory and last extension stripped, prefixed
// with the hostname.
func OutputBase(hostname, firstRead string) string {
	base := path.Base(firstRead)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return hostname + "_" + base
}

// OutputPath is the result path (without suffix) for a node's reads inside
// the configured results directory.
func OutputPath(cfg *config.Config, hostname, firstRead string) string {
	return path.Join(cfg.Paths.CuclarkDir, cfg.Paths.ResultsDir, OutputBase(hostname, firstRead))
}

// ResultFile and AbundanceFile name the artifacts the collaborators produce
// for a given output path.
func ResultFile(outputPath string) string    { return outputPath + ".csv" }
func AbundanceFile(outputPath string) string { return outputPath + "_abundance.txt" }

// ClassifyCommand builds the shell command that classifies a node's reads.
// One read file is single-end (-O), two are paired-end (-P).
func ClassifyCommand(cfg *config.Config, reads []string, outputPath string) string {
	var b strings.Builder
	b.WriteString("cd " + ShellQuote(cfg.Paths.CuclarkDir) + " && " + classifyScript)
	if len(reads) == 2 {
		b.WriteString(" -P " + ShellQuote(reads[0]) + " " + ShellQuote(reads[1]))
	} else {
		b.WriteString(" -O " + ShellQuote(reads[0]))
	}
	b.WriteString(" -R " + ShellQuote(outputPath))
	b.WriteString(" -k " + strconv.Itoa(cfg.Classification.KmerSize))
	b.WriteString(" -b " + strconv.Itoa(cfg.Classification.BatchSize))
	b.WriteString(" --light")
	for _, flag := range cfg.Classification.ExtraFlags {
		b.WriteString(" " + flag)
	}
	return b.String()
}

// AbundanceCommand builds the shell command that estimates abundance from a
// classification result file.
func AbundanceCommand(cfg *config.Config, resultFile, abundanceFile string) string {
	return "cd " + ShellQuote(cfg.Paths.CuclarkDir) + " && " + abundanceScript +
		" -D " + ShellQuote(cfg.Paths.Database) +
		" -F " + ShellQuote(resultFile) +
		" > " + ShellQuote(abundanceFile)
}

// MergeCommand builds the shell command that merges two or more abundance
// files into one.
func MergeCommand(cfg *config.Config, abundanceFiles []string, outputPath string) string {
	var b strings.Builder
	b.WriteString("cd " + ShellQuote(cfg.Paths.CuclarkDir) + " && " + mergeScript)
	for _, f := range abundanceFiles {
		b.WriteString(" " + ShellQuote(f))
	}
	b.WriteString(" -o " + ShellQuote(outputPath))
	return b.String()
}

// MkdirCommand ensures a results directory exists before classification.
func MkdirCommand(dir string) string {
	return "mkdir -p " + ShellQuote(dir)
}
