package cli

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/config"
	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/environment"
	"github.com/mmr-tortoise/devlaunch/internal/launcher"
	"github.com/mmr-tortoise/devlaunch/internal/model"
	"github.com/mmr-tortoise/devlaunch/internal/project"
	"github.com/mmr-tortoise/devlaunch/internal/supervisor"
)

// ContainerRuntime is what the build and clean commands need from the
// container collaborator.
type ContainerRuntime interface {
	Preflight(ctx context.Context, spec *model.ImageSpec) error
	BuildIfNeeded(ctx context.Context, spec *model.ImageSpec) (docker.BuildDecision, error)
	CleanupAll(ctx context.Context, dryRun bool) ([]model.ContainerInfo, error)
	Close() error
}

// Deps holds everything the commands reach outside the process.
type Deps struct {
	Stdout io.Writer
	Stderr io.Writer

	// Getenv and Getwd feed configuration loading.
	Getenv func(string) string
	Getwd  func() (string, error)

	// Locate finds the project root for the working directory.
	Locate func(dir string) (project.Info, error)

	// NewLauncher builds the launcher for one invocation. The returned
	// func releases what it opened.
	NewLauncher func(cfg *config.Config, logger zerolog.Logger) (*launcher.Launcher, func())

	// NewRuntime builds the container collaborator for build and clean.
	NewRuntime func(logger zerolog.Logger) ContainerRuntime
}

// DefaultDeps wires the real collaborators and the process's own stdio.
func DefaultDeps() *Deps {
	return &Deps{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Getenv:      os.Getenv,
		Getwd:       os.Getwd,
		Locate:      project.NewLocator().Locate,
		NewLauncher: newLauncher,
		NewRuntime: func(l zerolog.Logger) ContainerRuntime {
			return docker.NewRuntime(docker.WithLogger(l))
		},
	}
}

func newLauncher(cfg *config.Config, l zerolog.Logger) (*launcher.Launcher, func()) {
	rt := docker.NewRuntime(docker.WithLogger(l))
	lch := launcher.New(
		launcher.WithLogger(l),
		launcher.WithActivator(environment.NewManager(
			environment.WithLogger(l),
			environment.WithSetupOutput(os.Stderr),
		)),
		launcher.WithRuntime(rt),
		launcher.WithProcessRunner(supervisor.New(
			supervisor.WithGracePeriod(cfg.GracePeriod),
			supervisor.WithLogger(l),
		)),
		launcher.WithTTY(stdinIsTerminal()),
	)
	return lch, func() { _ = rt.Close() }
}

// stdinIsTerminal decides whether containers get a TTY (docker run -t).
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
