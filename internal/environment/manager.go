// manager.go implements the environment collaborator: it confirms that a
// dependency environment (a virtualenv, or whatever a probe command such as
// "pipenv --venv" reports) exists and can be activated.
//
// The manager only checks and, when allowed, runs the project's explicit
// setup command once. It never creates environments on its own.
package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Errors returned by Activate. They are wrapped with the offending path or
// tool output, so match them with errors.Is.
var (
	ErrLockFileMissing    = errors.New("lock file not found")
	ErrEnvironmentMissing = errors.New("environment not found")
	ErrInterpreterMissing = errors.New("python interpreter not found in environment")
	ErrProbeFailed        = errors.New("environment probe failed")
	ErrSetupFailed        = errors.New("environment setup failed")
)

// Activator turns a descriptor into an activated environment.
type Activator interface {
	Activate(ctx context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error)
}

// Manager implements Activator for the venv and command strategies.
type Manager struct {
	runner CommandRunner
	out    io.Writer
	logger zerolog.Logger
	goos   string
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner replaces the command runner (tests use a fake).
func WithRunner(r CommandRunner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithSetupOutput sets where setup command output goes. Defaults to stderr
// so the child's stdout stays clean.
func WithSetupOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager that runs real tools.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		runner: ExecRunner{},
		out:    os.Stderr,
		logger: zerolog.Nop(),
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate resolves and verifies the environment.
//
// When the first attempt fails and the descriptor allows AutoSetup with a
// setup command, the command runs once and activation is attempted exactly
// once more. There are no further retries.
func (m *Manager) Activate(ctx context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error) {
	act, err := m.activate(ctx, desc)
	if err == nil {
		return act, nil
	}

	// Without auto-setup the failure is surfaced as is, with a hint naming
	// the setup command the operator can run by hand.
	if !desc.AutoSetup || len(desc.Setup) == 0 {
		if len(desc.Setup) > 0 {
			return model.ActivatedEnvironment{}, fmt.Errorf("%w (create it with: %s)", err, strings.Join(desc.Setup, " "))
		}
		return model.ActivatedEnvironment{}, err
	}

	m.logger.Info().
		Err(err).
		Strs("setup", desc.Setup).
		Msg("environment not ready, running setup")

	// Setup output goes to the operator's terminal: installing packages
	// can take minutes and silence would look like a hang.
	if setupErr := m.runner.Stream(ctx, desc.ProjectDir, m.out, desc.Setup[0], desc.Setup[1:]...); setupErr != nil {
		return model.ActivatedEnvironment{}, fmt.Errorf("%w: %w", ErrSetupFailed, setupErr)
	}

	act, err = m.activate(ctx, desc)
	if err != nil {
		return model.ActivatedEnvironment{}, fmt.Errorf("still not ready after setup: %w", err)
	}
	return act, nil
}

func (m *Manager) activate(ctx context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error) {
	// A missing lock file means the environment cannot be reproduced,
	// even if a stale one happens to exist.
	if desc.LockFile != "" {
		lock := resolve(desc.ProjectDir, desc.LockFile)
		if _, err := os.Stat(lock); err != nil {
			return model.ActivatedEnvironment{}, fmt.Errorf("%w: %s", ErrLockFileMissing, lock)
		}
	}

	root, err := m.locate(ctx, desc)
	if err != nil {
		return model.ActivatedEnvironment{}, err
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return model.ActivatedEnvironment{}, fmt.Errorf("%w: %s", ErrEnvironmentMissing, root)
	}

	// A directory without an interpreter is a half-created environment
	// (for example an interrupted setup), not a usable one.
	bin := BinDir(root, m.goos)
	python := filepath.Join(bin, pythonName(m.goos))
	if _, err := os.Stat(python); err != nil {
		return model.ActivatedEnvironment{}, fmt.Errorf("%w: %s", ErrInterpreterMissing, python)
	}

	m.logger.Debug().Str("root", root).Str("strategy", string(desc.Strategy)).Msg("environment activated")

	return model.ActivatedEnvironment{
		Descriptor: desc,
		Root:       root,
		Env:        map[string]string{"VIRTUAL_ENV": root},
		Unset:      []string{"PYTHONHOME"},
		PathPrefix: []string{bin},
	}, nil
}

// locate finds the environment root for the descriptor's strategy.
func (m *Manager) locate(ctx context.Context, desc model.EnvironmentDescriptor) (string, error) {
	switch desc.Strategy {
	case model.StrategyVenv, "":
		if desc.Name == "" {
			return "", fmt.Errorf("%w: environment name is empty", ErrEnvironmentMissing)
		}
		return resolve(desc.ProjectDir, desc.Name), nil

	case model.StrategyCommand:
		if len(desc.Probe) == 0 {
			return "", fmt.Errorf("%w: no probe command configured", ErrProbeFailed)
		}
		out, err := m.runner.Output(ctx, desc.ProjectDir, desc.Probe[0], desc.Probe[1:]...)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrProbeFailed, err)
		}
		if out == "" {
			return "", fmt.Errorf("%w: %s printed nothing", ErrProbeFailed, strings.Join(desc.Probe, " "))
		}
		// Tools like pipenv may print notices before the path.
		lines := strings.Split(out, "\n")
		return resolve(desc.ProjectDir, strings.TrimSpace(lines[len(lines)-1])), nil

	default:
		return "", fmt.Errorf("unknown environment strategy: %q", desc.Strategy)
	}
}

// BinDir returns the executables directory of a virtualenv.
func BinDir(root, goos string) string {
	if goos == "windows" {
		return filepath.Join(root, "Scripts")
	}
	return filepath.Join(root, "bin")
}

func pythonName(goos string) string {
	if goos == "windows" {
		return "python.exe"
	}
	return "python"
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
