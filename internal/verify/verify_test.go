package verify

import (
	"context"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o755))
}

func completeInstallation(t *testing.T) string {
	root := t.TempDir()
	for _, bin := range requiredBinaries {
		writeFile(t, path.Join(root, bin), "#!/bin/sh\n")
	}
	for _, dir := range requiredDirs {
		require.NoError(t, os.MkdirAll(path.Join(root, dir), 0o755))
	}
	writeFile(t, path.Join(root, installLog), installMarker+"\n")
	return root
}

func TestInstallationReady(t *testing.T) {
	root := completeInstallation(t)
	writeFile(t, path.Join(root, settingsMarker), "db\n")

	report, ready := Installation(root)
	assert.True(t, ready)
	assert.Contains(t, report, "Status: READY")
	assert.Contains(t, report, "+ bin/cuCLARK-l")
}

func TestInstallationWithoutDatabase(t *testing.T) {
	root := completeInstallation(t)

	report, ready := Installation(root)
	assert.False(t, ready)
	assert.Contains(t, report, "Status: Installation complete, database not ready")
}

func TestInstallationIncomplete(t *testing.T) {
	root := completeInstallation(t)
	require.NoError(t, os.Remove(path.Join(root, "bin", "cuCLARK-l")))
	require.NoError(t, os.Remove(path.Join(root, installLog)))

	report, ready := Installation(root)
	assert.False(t, ready)
	assert.Contains(t, report, "- bin/cuCLARK-l (missing)")
	assert.Contains(t, report, "- Installation incomplete or not verified")
	assert.Contains(t, report, "Status: INCOMPLETE")
}

func completeDatabase(t *testing.T) string {
	db := t.TempDir()
	writeFile(t, path.Join(db, "Custom", "genomes.fna"), ">seq\nACGT\n")
	for _, f := range taxonomyFiles {
		writeFile(t, path.Join(db, "taxonomy", f), "x\n")
	}
	return db
}

func TestCheckDatabaseComplete(t *testing.T) {
	db := completeDatabase(t)

	issues := CheckDatabase(db)
	assert.Empty(t, issues)

	// The marker is created as a side effect.
	_, err := os.Stat(path.Join(db, ".taxondata"))
	assert.NoError(t, err)
}

func TestCheckDatabaseMissingPieces(t *testing.T) {
	db := t.TempDir()
	writeFile(t, path.Join(db, "Custom", "notes.txt"), "not fasta\n")

	issues := CheckDatabase(db)
	joined := strings.Join(issues, "\n")
	assert.Contains(t, joined, "No fasta files found")
	assert.Contains(t, joined, "Missing directory: "+path.Join(db, "taxonomy"))
}

func TestCheckDatabaseMissingTaxonomyFiles(t *testing.T) {
	db := completeDatabase(t)
	require.NoError(t, os.Remove(path.Join(db, "taxonomy", "names.dmp")))

	issues := CheckDatabase(db)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "names.dmp")
}

type scriptShell struct {
	commands []string
	exitCode int
}

func (s *scriptShell) Run(_ context.Context, command string) (string, int, error) {
	s.commands = append(s.commands, command)
	return "", s.exitCode, nil
}

func TestSetupDatabase(t *testing.T) {
	root := completeInstallation(t)
	db := completeDatabase(t)
	writeFile(t, path.Join(root, "scripts", "set_targets.sh"), "#!/bin/sh\n")
	shell := &scriptShell{}

	require.NoError(t, SetupDatabase(context.Background(), root, db, shell))

	require.Len(t, shell.commands, 1)
	assert.Contains(t, shell.commands[0], "./set_targets.sh")
	assert.Contains(t, shell.commands[0], "'"+db+"' custom")
}

func TestSetupDatabaseRefusesReconfigure(t *testing.T) {
	root := completeInstallation(t)
	writeFile(t, path.Join(root, settingsMarker), "db\n")

	err := SetupDatabase(context.Background(), root, t.TempDir(), &scriptShell{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already configured")
}

func TestSetupDatabaseRejectsBrokenTree(t *testing.T) {
	root := completeInstallation(t)
	writeFile(t, path.Join(root, "scripts", "set_targets.sh"), "#!/bin/sh\n")

	err := SetupDatabase(context.Background(), root, t.TempDir(), &scriptShell{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database check found issues")
}

func TestResolveDatabasePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, path.Join(home, "db"), ResolveDatabasePath("~/db"))
	assert.Equal(t, "/abs/db", ResolveDatabasePath("/abs/db"))
}
