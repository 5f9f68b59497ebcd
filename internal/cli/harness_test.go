package cli

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/config"
	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/launcher"
	"github.com/mmr-tortoise/devlaunch/internal/model"
	"github.com/mmr-tortoise/devlaunch/internal/project"
)

type fakeActivator struct {
	err   error
	calls int
}

func (f *fakeActivator) Activate(_ context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error) {
	f.calls++
	if f.err != nil {
		return model.ActivatedEnvironment{}, f.err
	}
	return model.ActivatedEnvironment{
		Descriptor: desc,
		Root:       desc.ProjectDir + "/.venv",
		Env:        map[string]string{"VIRTUAL_ENV": desc.ProjectDir + "/.venv"},
		PathPrefix: []string{desc.ProjectDir + "/.venv/bin"},
	}, nil
}

type fakeRuntime struct {
	preflightErr error
	buildErr     error
	cleanupErr   error
	decision     docker.BuildDecision
	containers   []model.ContainerInfo

	buildCalls   int
	built        *model.ImageSpec
	cleanupCalls int
	dryRun       bool
	closed       int
}

func (f *fakeRuntime) Preflight(context.Context, *model.ImageSpec) error { return f.preflightErr }

func (f *fakeRuntime) BuildIfNeeded(_ context.Context, spec *model.ImageSpec) (docker.BuildDecision, error) {
	f.buildCalls++
	f.built = spec
	return f.decision, f.buildErr
}

func (f *fakeRuntime) Cleanup(context.Context, *model.LaunchRequest) error {
	f.cleanupCalls++
	return nil
}

func (f *fakeRuntime) CleanupAll(_ context.Context, dryRun bool) ([]model.ContainerInfo, error) {
	f.dryRun = dryRun
	if f.cleanupErr != nil {
		return nil, f.cleanupErr
	}
	return f.containers, nil
}

func (f *fakeRuntime) Close() error {
	f.closed++
	return nil
}

type fakeProcess struct {
	code  int
	calls int
	req   *model.LaunchRequest
}

func (f *fakeProcess) RunWithSignals(_ context.Context, req *model.LaunchRequest, _ <-chan os.Signal) (int, error) {
	f.calls++
	f.req = req
	return f.code, nil
}

// harness runs the real command tree against fake collaborators.
type harness struct {
	dir       string
	env       map[string]string
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	activator *fakeActivator
	runtime   *fakeRuntime
	process   *fakeProcess
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:       t.TempDir(),
		env:       map[string]string{},
		activator: &fakeActivator{},
		runtime:   &fakeRuntime{decision: docker.BuildDecision{Build: true, Reason: "build policy is always"}},
		process:   &fakeProcess{},
	}
}

func (h *harness) deps() *Deps {
	return &Deps{
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Getenv: func(k string) string { return h.env[k] },
		Getwd:  func() (string, error) { return h.dir, nil },
		Locate: func(dir string) (project.Info, error) {
			return project.Info{Root: dir, Branch: "main", InRepo: true}, nil
		},
		NewLauncher: func(_ *config.Config, l zerolog.Logger) (*launcher.Launcher, func()) {
			return launcher.New(
				launcher.WithLogger(l),
				launcher.WithActivator(h.activator),
				launcher.WithRuntime(h.runtime),
				launcher.WithProcessRunner(h.process),
				launcher.WithLocator(func(dir string) (project.Info, error) {
					return project.Info{Root: dir, Branch: "main", InRepo: true}, nil
				}),
				launcher.WithSessionID(func(string) string { return "devlaunch-test-000001" }),
				launcher.WithEnviron(func() []string { return []string{"PATH=/usr/bin"} }),
				launcher.WithSignals(make(chan os.Signal)),
			), func() {}
		},
		NewRuntime: func(zerolog.Logger) ContainerRuntime { return h.runtime },
	}
}

// execute runs devlaunch with args and returns the exit code.
func (h *harness) execute(args ...string) int {
	root := NewRootCommand(h.deps())
	root.SetArgs(args)
	return Execute(root)
}
