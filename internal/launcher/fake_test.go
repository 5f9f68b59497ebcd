package launcher

import (
	"context"
	"os"

	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/model"
	"github.com/mmr-tortoise/devlaunch/internal/project"
)

type fakeActivator struct {
	act   model.ActivatedEnvironment
	err   error
	calls int
	got   model.EnvironmentDescriptor
}

func (f *fakeActivator) Activate(_ context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error) {
	f.calls++
	f.got = desc
	if f.err != nil {
		return model.ActivatedEnvironment{}, f.err
	}
	act := f.act
	act.Descriptor = desc
	return act, nil
}

type fakeRuntime struct {
	preflightErr error
	buildErr     error
	cleanupErr   error
	decision     docker.BuildDecision

	preflightCalls int
	buildCalls     int
	cleanupCalls   int
	cleaned        *model.LaunchRequest
}

func (f *fakeRuntime) Preflight(context.Context, *model.ImageSpec) error {
	f.preflightCalls++
	return f.preflightErr
}

func (f *fakeRuntime) BuildIfNeeded(context.Context, *model.ImageSpec) (docker.BuildDecision, error) {
	f.buildCalls++
	if f.buildErr != nil {
		return docker.BuildDecision{}, f.buildErr
	}
	return f.decision, nil
}

func (f *fakeRuntime) Cleanup(_ context.Context, req *model.LaunchRequest) error {
	f.cleanupCalls++
	f.cleaned = req
	return f.cleanupErr
}

type fakePorts struct {
	conflicts []model.PortMapping
	checked   []model.PortMapping
}

func (f *fakePorts) Conflicts(mappings []model.PortMapping) []model.PortMapping {
	f.checked = mappings
	return f.conflicts
}

type fakeProcess struct {
	code    int
	err     error
	calls   int
	req     *model.LaunchRequest
	signals <-chan os.Signal
}

func (f *fakeProcess) RunWithSignals(_ context.Context, req *model.LaunchRequest, signals <-chan os.Signal) (int, error) {
	f.calls++
	f.req = req
	f.signals = signals
	if f.err != nil {
		return int(model.ExitLauncherFailure), f.err
	}
	return f.code, nil
}

// fakes bundles the collaborators of one launcher under test.
type fakes struct {
	activator *fakeActivator
	runtime   *fakeRuntime
	ports     *fakePorts
	process   *fakeProcess
	signals   chan os.Signal
}

const testSessionID = "devlaunch-proj-abc123"

func newFakes() *fakes {
	return &fakes{
		activator: &fakeActivator{act: model.ActivatedEnvironment{
			Root:       "/proj/.venv",
			Env:        map[string]string{"VIRTUAL_ENV": "/proj/.venv"},
			Unset:      []string{"PYTHONHOME"},
			PathPrefix: []string{"/proj/.venv/bin"},
		}},
		runtime: &fakeRuntime{decision: docker.BuildDecision{Build: true, Reason: "image not found"}},
		ports:   &fakePorts{},
		process: &fakeProcess{},
		signals: make(chan os.Signal, 1),
	}
}

func (f *fakes) launcher(opts ...Option) *Launcher {
	all := []Option{
		WithActivator(f.activator),
		WithRuntime(f.runtime),
		WithPortChecker(f.ports),
		WithProcessRunner(f.process),
		WithLocator(func(dir string) (project.Info, error) {
			return project.Info{Root: dir, Branch: "main", InRepo: true}, nil
		}),
		WithSessionID(func(string) string { return testSessionID }),
		WithEnviron(func() []string {
			return []string{"HOME=/home/dev", "PATH=/usr/bin", "PYTHONHOME=/opt/python"}
		}),
		WithSignals(f.signals),
	}
	return New(append(all, opts...)...)
}
