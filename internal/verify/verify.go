// Package verify checks a node-local CuCLARK installation and prepares the
// classification database for use.
package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/ardaicoz/jn-cuclark/internal/job"
)

// installMarker is the first line of the installation log when the install
// script completed.
const (
	installMarker  = "INSTALLED=1"
	installLog     = "logs/install_log.txt"
	settingsMarker = "scripts/.settings"
)

var requiredBinaries = []string{
	"bin/cuclarkd",
	"bin/cuCLARK",
	"bin/cuCLARK-l",
	"bin/getTargetsDef",
	"bin/getAccssnTaxID",
	"bin/getfilesToTaxNodes",
	"bin/getAbundance",
}

var requiredDirs = []string{"bin", "logs", "results", "scripts"}

// Installation inspects the tree rooted at root and renders the
// verification report. ready is true only when every check passed and the
// database has been configured.
func Installation(root string) (report string, ready bool) {
	var b strings.Builder
	b.WriteString("========================================\n")
	b.WriteString("  CuCLARK Installation Verification\n")
	b.WriteString("========================================\n\n")

	allOk := true

	b.WriteString("1. Checking binaries...\n")
	for _, bin := range requiredBinaries {
		if fileExists(path.Join(root, bin)) {
			fmt.Fprintf(&b, "   + %s\n", bin)
		} else {
			fmt.Fprintf(&b, "   - %s (missing)\n", bin)
			allOk = false
		}
	}
	b.WriteString("\n2. Checking directory structure...\n")
	for _, dir := range requiredDirs {
		if dirExists(path.Join(root, dir)) {
			fmt.Fprintf(&b, "   + %s/\n", dir)
		} else {
			fmt.Fprintf(&b, "   - %s/ (missing)\n", dir)
			allOk = false
		}
	}

	b.WriteString("\n3. Checking installation status...\n")
	if installMarkerPresent(path.Join(root, installLog)) {
		b.WriteString("   + Installation marker found\n")
	} else {
		b.WriteString("   - Installation incomplete or not verified\n")
		allOk = false
	}

	b.WriteString("\n4. Checking database setup...\n")
	dbReady := fileExists(path.Join(root, settingsMarker))
	if dbReady {
		b.WriteString("   + Database configured (scripts/.settings exists)\n")
	} else {
		b.WriteString("   - Database not configured (run: cuclarkd database <path>)\n")
	}

	b.WriteString("\n========================================\n")
	switch {
	case allOk && dbReady:
		b.WriteString("Status: READY\n")
	case allOk:
		b.WriteString("Status: Installation complete, database not ready\n")
	default:
		b.WriteString("Status: INCOMPLETE\n")
	}
	b.WriteString("========================================\n")

	return b.String(), allOk && dbReady
}

// SetupDatabase validates the database tree and runs the external
// set_targets collaborator to bind it to this installation. It refuses to
// reconfigure an already configured installation.
func SetupDatabase(ctx context.Context, root, dbPath string, shell job.CommandRunner) error {
	if dbPath == "" {
		return errors.New("database path is empty")
	}
	if fileExists(path.Join(root, settingsMarker)) {
		return errors.New("database is already configured (scripts/.settings exists)")
	}

	resolved := ResolveDatabasePath(dbPath)
	if issues := CheckDatabase(resolved); len(issues) > 0 {
		return errors.Errorf("database check found issues:\n - %s", strings.Join(issues, "\n - "))
	}

	script := path.Join(root, "scripts", "set_targets.sh")
	if !fileExists(script) {
		return errors.Errorf("set targets script not found: %s", script)
	}

	cmd := "cd " + job.ShellQuote(path.Join(root, "scripts")) +
		" && ./set_targets.sh " + job.ShellQuote(resolved) + " custom"
	out, rc, err := shell.Run(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, "set_targets.sh failed")
	}
	if rc != 0 {
		return errors.Errorf("set_targets.sh failed with exit code %d: %s", rc, strings.TrimSpace(out))
	}
	return nil
}

// ResolveDatabasePath expands a leading ~ against the current home
// directory.
func ResolveDatabasePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return path.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func installMarkerPresent(logPath string) bool {
	f, err := os.Open(logPath)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	return scanner.Scan() && scanner.Text() == installMarker
}
