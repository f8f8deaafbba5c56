package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Pathogen is one classified taxon from an abundance file: its share of all
// input reads and its share of the reads that got classified.
type Pathogen struct {
	Name                 string
	ProportionAll        float64
	ProportionClassified float64
}

// ParseAbundance reads an abundance CSV (header line first, then
// name,...,proportion-of-all,proportion-of-classified rows). UNKNOWN rows
// and rows with unparseable proportions are dropped.
func ParseAbundance(r io.Reader) ([]Pathogen, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, errors.New("abundance file is empty")
	}

	var entries []Pathogen
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 6 || fields[0] == "UNKNOWN" {
			continue
		}
		propAll, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		if err != nil {
			continue
		}
		propClassified, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
		if err != nil {
			continue
		}
		entries = append(entries, Pathogen{
			Name:                 fields[0],
			ProportionAll:        propAll,
			ProportionClassified: propClassified,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read abundance file")
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ProportionClassified == entries[j].ProportionClassified {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ProportionClassified > entries[j].ProportionClassified
	})
	return entries, nil
}

// RenderPathogens formats the pathogen summary shown to the operator.
func RenderPathogens(entries []Pathogen) string {
	var b strings.Builder
	b.WriteString("RESULT\n")
	if len(entries) == 0 {
		b.WriteString("No classified pathogens found.\n")
		return b.String()
	}
	b.WriteString("Your read contains these pathogens, the percentage of all input reads " +
		"(including unclassified) that hit this taxon and the percentage among only " +
		"the reads that got classified that hit this taxon.\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %.2f%% among all, %.2f%% among classified\n",
			e.Name, e.ProportionAll, e.ProportionClassified)
	}
	return b.String()
}

// Summarize parses an abundance file and renders the pathogen summary.
func Summarize(abundancePath string) (string, error) {
	f, err := os.Open(abundancePath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open abundance file %s", abundancePath)
	}
	defer f.Close()

	entries, err := ParseAbundance(f)
	if err != nil {
		return "", err
	}
	return RenderPathogens(entries), nil
}
