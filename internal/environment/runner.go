// runner.go runs the external environment tool (pipenv, poetry, ...).
package environment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner runs the external tools an environment strategy relies on.
type CommandRunner interface {
	// Output runs name with args in dir and returns its trimmed stdout.
	// On failure the error includes the tool's stderr.
	Output(ctx context.Context, dir string, name string, args ...string) (string, error)

	// Stream runs name with args in dir, forwarding stdout and stderr to out.
	Stream(ctx context.Context, dir string, out io.Writer, name string, args ...string) error
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

// Output runs the command and captures stdout, keeping stderr for errors.
func (ExecRunner) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s failed: %s: %w",
			name, strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Stream runs the command with both output streams sent to out.
func (ExecRunner) Stream(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
