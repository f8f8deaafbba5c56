package verify

import (
	"os"
	"path"
	"strings"
)

var taxonomyFiles = []string{
	"citations.dmp", "delnodes.dmp", "division.dmp",
	"gc.prt", "gencode.dmp", "images.dmp",
	"merged.dmp", "names.dmp", "nodes.dmp",
	"nucl_accss",
}

var fastaExtensions = map[string]bool{".fa": true, ".fna": true, ".fasta": true}

// CheckDatabase validates the database tree and returns every issue found.
// As a side effect it creates the .taxondata marker when absent, matching
// what the downstream classification scripts expect.
func CheckDatabase(dbPath string) []string {
	var issues []string

	entries, err := os.ReadDir(dbPath)
	switch {
	case err != nil:
		issues = append(issues, "Database directory not found: "+dbPath)
	case len(entries) == 0:
		issues = append(issues, "Database directory is empty: "+dbPath)
	}

	customDir := path.Join(dbPath, "Custom")
	taxonomyDir := path.Join(dbPath, "taxonomy")

	customOk := dirExists(customDir)
	if !customOk {
		issues = append(issues, "Missing directory: "+customDir)
	}
	taxonomyOk := dirExists(taxonomyDir)
	if !taxonomyOk {
		issues = append(issues, "Missing directory: "+taxonomyDir)
	}

	if customOk && !hasFastaFile(customDir) {
		issues = append(issues, "No fasta files found in "+customDir)
	}

	if taxonomyOk {
		for _, name := range taxonomyFiles {
			f := path.Join(taxonomyDir, name)
			if !fileExists(f) {
				issues = append(issues, "Missing file in taxonomy directory: "+f)
			}
		}
	}

	marker := path.Join(dbPath, ".taxondata")
	if !fileExists(marker) {
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			issues = append(issues, "Failed to create "+marker)
		}
	}

	return issues
}

func hasFastaFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && fastaExtensions[strings.ToLower(path.Ext(e.Name()))] {
			return true
		}
	}
	return false
}
