// Package remote wraps the ssh/scp subprocesses used to reach cluster
// nodes. Callers bound every call with a context deadline; ssh additionally
// gets a connect timeout so unreachable hosts fail fast.
package remote

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
)

// Runner executes commands on a named node and transfers files from it.
type Runner interface {
	// Run executes command on host and returns its combined output and
	// exit status. err is non-nil only when the command could not be
	// launched at all (a non-zero exit is reported via the exit code).
	Run(ctx context.Context, host, command string) (output string, exitCode int, err error)

	// Copy pulls remotePath from host into localPath.
	Copy(ctx context.Context, host, remotePath, localPath string) error
}

// SSHRunner reaches nodes through the system ssh/scp binaries with host key
// checking disabled, matching the cluster's provisioning model.
type SSHRunner struct {
	ConnectTimeout int // seconds, applied via ssh -o ConnectTimeout
}

func NewSSHRunner(connectTimeoutSeconds int) *SSHRunner {
	return &SSHRunner{ConnectTimeout: connectTimeoutSeconds}
}

func (r *SSHRunner) Run(ctx context.Context, host, command string) (string, int, error) {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "ConnectTimeout=" + strconv.Itoa(r.ConnectTimeout),
		host,
		command,
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, errors.Wrapf(err, "failed to run ssh command on %s", host)
	}
	return string(out), 0, nil
}

func (r *SSHRunner) Copy(ctx context.Context, host, remotePath, localPath string) error {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		host + ":" + remotePath,
		localPath,
	}
	cmd := exec.CommandContext(ctx, "scp", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "failed to copy %s:%s to %s: %s", host, remotePath, localPath, string(out))
	}
	return nil
}
