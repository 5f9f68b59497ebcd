// launcher.go implements the one-shot launch sequence: resolve the mode,
// make the environment ready, build the request, then run the child and
// relay its exit code.
//
// Every step either advances the state machine or moves it to Failed and
// stops. Nothing is retried, and a later step never runs after an earlier
// one failed: in particular no child is started unless the environment was
// confirmed ready first.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/config"
	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/environment"
	"github.com/mmr-tortoise/devlaunch/internal/model"
	"github.com/mmr-tortoise/devlaunch/internal/port"
	"github.com/mmr-tortoise/devlaunch/internal/project"
	"github.com/mmr-tortoise/devlaunch/internal/supervisor"
)

// DefaultCleanupTimeout bounds container cleanup after a containerized run.
const DefaultCleanupTimeout = 30 * time.Second

// EnvironmentActivator confirms a dependency environment exists and
// returns what activates it.
type EnvironmentActivator interface {
	Activate(ctx context.Context, desc model.EnvironmentDescriptor) (model.ActivatedEnvironment, error)
}

// ContainerRuntime is the container collaborator.
type ContainerRuntime interface {
	Preflight(ctx context.Context, spec *model.ImageSpec) error
	BuildIfNeeded(ctx context.Context, spec *model.ImageSpec) (docker.BuildDecision, error)
	Cleanup(ctx context.Context, req *model.LaunchRequest) error
}

// PortChecker reports published ports that are already taken on the host.
type PortChecker interface {
	Conflicts(mappings []model.PortMapping) []model.PortMapping
}

// ProcessRunner runs the child and returns its exit code. Signals the
// launcher receives while the child runs arrive on signals and are the
// runner's to forward.
type ProcessRunner interface {
	RunWithSignals(ctx context.Context, req *model.LaunchRequest, signals <-chan os.Signal) (int, error)
}

// Plan is the outcome of the steps before anything is started.
type Plan struct {
	Mode        model.ExecutionMode        `json:"mode"`
	Environment model.ActivatedEnvironment `json:"environment"`
	Image       *model.ImageSpec           `json:"image,omitempty"`
	Request     *model.LaunchRequest       `json:"request,omitempty"`
}

// Launcher drives one launch. It is single-use: once it has reached a
// terminal state it refuses to start again.
type Launcher struct {
	activator      EnvironmentActivator
	runtime        ContainerRuntime
	ports          PortChecker
	process        ProcessRunner
	locate         func(dir string) (project.Info, error)
	sessionID      func(root string) string
	environ        func() []string
	tty            bool
	signals        <-chan os.Signal
	cleanupTimeout time.Duration
	logger         zerolog.Logger

	state model.LaunchState
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithActivator sets the environment collaborator.
func WithActivator(a EnvironmentActivator) Option {
	return func(l *Launcher) { l.activator = a }
}

// WithRuntime sets the container collaborator.
func WithRuntime(r ContainerRuntime) Option {
	return func(l *Launcher) { l.runtime = r }
}

// WithPortChecker sets the host port checker.
func WithPortChecker(p PortChecker) Option {
	return func(l *Launcher) { l.ports = p }
}

// WithProcessRunner sets what runs the child.
func WithProcessRunner(p ProcessRunner) Option {
	return func(l *Launcher) { l.process = p }
}

// WithLocator sets how the project root and branch are discovered.
func WithLocator(fn func(dir string) (project.Info, error)) Option {
	return func(l *Launcher) { l.locate = fn }
}

// WithSessionID sets the session ID generator.
func WithSessionID(fn func(root string) string) Option {
	return func(l *Launcher) { l.sessionID = fn }
}

// WithEnviron sets the base environment handed to the child.
func WithEnviron(fn func() []string) Option {
	return func(l *Launcher) { l.environ = fn }
}

// WithTTY allocates a terminal inside containers.
func WithTTY(tty bool) Option {
	return func(l *Launcher) { l.tty = tty }
}

// WithSignals supplies the signals Run reacts to instead of subscribing to
// the process's own.
func WithSignals(ch <-chan os.Signal) Option {
	return func(l *Launcher) { l.signals = ch }
}

// WithCleanupTimeout bounds container cleanup.
func WithCleanupTimeout(d time.Duration) Option {
	return func(l *Launcher) { l.cleanupTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// New creates a Launcher wired to the real collaborators.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		activator:      environment.NewManager(),
		runtime:        docker.NewRuntime(),
		ports:          port.NewScanner(),
		process:        supervisor.New(),
		locate:         project.NewLocator().Locate,
		sessionID:      project.NewSessionID,
		environ:        os.Environ,
		cleanupTimeout: DefaultCleanupTimeout,
		logger:         zerolog.Nop(),
		state:          model.StateNotStarted,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current launch state.
func (l *Launcher) State() model.LaunchState {
	return l.state
}

// Launch runs every step for cfg, with args appended to the configured
// target, and returns the exit code to report.
//
// A child that exits non-zero yields its code together with a
// *model.ChildExit; launcher failures yield model.ExitLauncherFailure and
// a *model.CLIError.
func (l *Launcher) Launch(ctx context.Context, cfg *config.Config, args []string) (int, error) {
	plan, err := l.Prepare(ctx, cfg, args)
	if err != nil {
		return int(model.ExitLauncherFailure), err
	}
	return l.Run(ctx, plan)
}

// Prepare resolves the mode, ensures the environment and builds the
// request, stopping at EnvironmentReady. Nothing is started.
func (l *Launcher) Prepare(ctx context.Context, cfg *config.Config, args []string) (*Plan, error) {
	if err := l.begin(); err != nil {
		return nil, err
	}

	// Step 1: Resolve the execution mode. An empty or unknown mode stops
	// here, before any collaborator is touched.
	mode, err := ResolveMode(cfg)
	if err != nil {
		return nil, l.fail(err)
	}

	// Step 2: Work out what to run. Positional arguments extend the
	// configured target, so "devlaunch run -- --port 9000" adds flags to it.
	target := append(append([]string{}, cfg.Target...), args...)
	if len(target) == 0 {
		return nil, l.fail(model.NewCLIError(model.KindConfiguration, model.StepResolve,
			"no target to run (set target, "+config.EnvTarget+", --target, or pass arguments after --)"))
	}
	l.logger.Debug().Str("mode", mode.String()).Strs("target", target).Msg("resolved")

	// Step 3: Make sure the environment for this mode is ready.
	plan, info, err := l.ready(ctx, cfg, mode)
	if err != nil {
		return nil, err
	}

	// Step 4: Build the request. This is pure; nothing has started yet.
	req, err := BuildLaunchRequest(mode, plan.Environment, target, RequestOptions{
		ProjectDir: cfg.ProjectDir,
		SessionID:  l.sessionID(info.Root),
		Branch:     info.Branch,
		BaseEnv:    l.environ(),
		Image:      plan.Image,
		TTY:        l.tty,
	})
	if err != nil {
		return nil, l.fail(err)
	}
	plan.Request = req
	return plan, nil
}

// Check resolves the mode and ensures the environment, without needing a
// target. The returned plan has no request.
func (l *Launcher) Check(ctx context.Context, cfg *config.Config) (*Plan, error) {
	if err := l.begin(); err != nil {
		return nil, err
	}
	mode, err := ResolveMode(cfg)
	if err != nil {
		return nil, l.fail(err)
	}
	plan, _, err := l.ready(ctx, cfg, mode)
	return plan, err
}

func (l *Launcher) begin() error {
	if l.state != model.StateNotStarted {
		return model.NewCLIError(model.KindLaunch, model.StepResolve,
			fmt.Sprintf("launcher already used (state %s)", l.state))
	}
	l.transition(model.StateResolving)
	return nil
}

// ready derives the environment inputs for mode and checks them, moving
// to EnvironmentReady on success.
func (l *Launcher) ready(ctx context.Context, cfg *config.Config, mode model.ExecutionMode) (*Plan, project.Info, error) {
	// Outside a Git repository the project directory itself is the root.
	// Discovery only feeds names and labels, so it never fails the launch.
	info, err := l.locate(cfg.ProjectDir)
	if err != nil {
		l.logger.Debug().Err(err).Msg("project discovery failed")
		info = project.Info{Root: cfg.ProjectDir}
	}

	// Derive what the collaborator for this mode needs from the
	// configuration. Local mode needs an environment descriptor;
	// containerized mode needs an image spec.
	var (
		desc  model.EnvironmentDescriptor
		image *model.ImageSpec
	)
	switch mode {
	case model.ModeLocal:
		desc, err = cfg.EnvironmentDescriptor()
	case model.ModeContainerized:
		image, err = cfg.ImageSpec(ImageTagBase(info.Root))
	}
	if err != nil {
		return nil, info, l.fail(asCLIError(err, model.KindConfiguration, model.StepResolve, "invalid configuration"))
	}

	activated, err := l.EnsureEnvironment(ctx, mode, desc, image)
	if err != nil {
		return nil, info, l.fail(err)
	}
	l.transition(model.StateEnvironmentReady)

	return &Plan{Mode: mode, Environment: activated, Image: image}, info, nil
}

// EnsureEnvironment checks that the target can run in mode.
//
// In local mode the environment collaborator activates desc. In
// containerized mode the container runtime and the image's build inputs
// are checked, and published ports must be free on the host.
func (l *Launcher) EnsureEnvironment(ctx context.Context, mode model.ExecutionMode, desc model.EnvironmentDescriptor, image *model.ImageSpec) (model.ActivatedEnvironment, error) {
	switch mode {
	case model.ModeLocal:
		act, err := l.activator.Activate(ctx, desc)
		if err != nil {
			return model.ActivatedEnvironment{}, asCLIError(err, model.KindEnvironmentNotReady, model.StepEnvironment,
				fmt.Sprintf("environment %q is not ready", desc.Name))
		}
		l.logger.Debug().Str("root", act.Root).Msg("environment activated")
		return act, nil

	case model.ModeContainerized:
		if image == nil {
			return model.ActivatedEnvironment{}, model.NewCLIError(model.KindConfiguration, model.StepEnvironment,
				"containerized mode needs an image, Dockerfile or compose service")
		}
		// The daemon must answer and the build inputs must exist before
		// anything is built or run.
		if err := l.runtime.Preflight(ctx, image); err != nil {
			return model.ActivatedEnvironment{}, asCLIError(err, model.KindEnvironmentNotReady, model.StepEnvironment,
				"container runtime is not ready")
		}
		// A taken host port would make "docker run" fail after the image
		// build. Report it now, as the configuration problem it is.
		if conflicts := l.ports.Conflicts(image.Ports); len(conflicts) > 0 {
			taken := make([]string, len(conflicts))
			for i, p := range conflicts {
				taken[i] = fmt.Sprintf("%d/%s", p.HostPort, p.Protocol)
			}
			return model.ActivatedEnvironment{}, model.NewCLIError(model.KindConfiguration, model.StepEnvironment,
				"host ports already in use: "+strings.Join(taken, ", "))
		}
		return model.ActivatedEnvironment{Descriptor: desc}, nil

	default:
		return model.ActivatedEnvironment{}, model.NewCLIError(model.KindConfiguration, model.StepEnvironment,
			"unsupported execution mode: "+string(mode))
	}
}

// Run executes a prepared plan: the image build step for containerized
// requests, then the child. It blocks until the child has exited and
// returns its exit code unchanged.
func (l *Launcher) Run(ctx context.Context, plan *Plan) (int, error) {
	if l.state != model.StateEnvironmentReady {
		return int(model.ExitLauncherFailure), model.NewCLIError(model.KindLaunch, model.StepLaunch,
			fmt.Sprintf("launch is not ready (state %s)", l.state))
	}
	req := plan.Request
	l.transition(model.StateRunning)

	// One subscription covers the build and the child. Handing it over
	// between the two would leave a gap where an interrupt kills the
	// launcher with its default action, skipping container cleanup.
	sigs := l.signals
	if sigs == nil {
		ch := make(chan os.Signal, 4)
		signal.Notify(ch, supervisor.Signals()...)
		defer signal.Stop(ch)
		sigs = ch
	}

	if req.Mode == model.ModeContainerized {
		// Registered after the subscription, so cleanup runs while
		// signals are still caught.
		defer l.cleanup(ctx, req)

		if err := l.build(ctx, req, sigs); err != nil {
			return int(model.ExitLauncherFailure), l.fail(err)
		}
	}

	l.logger.Debug().Str("command", req.CommandLine()).Str("session", req.SessionID).Msg("starting child")
	code, err := l.process.RunWithSignals(ctx, req, sigs)
	if err != nil {
		return int(model.ExitLauncherFailure), l.fail(asCLIError(err, model.KindLaunch, model.StepLaunch,
			fmt.Sprintf("failed to start %s", req.Path)))
	}

	// A non-zero exit is the child's outcome, not a launcher failure:
	// the state is Exited either way and the code is relayed unchanged.
	l.transition(model.StateExited)
	if code != 0 {
		return code, &model.ChildExit{Code: code}
	}
	return 0, nil
}

// build runs the image build step. A signal on sigs aborts the build, and
// the child is then never started.
func (l *Launcher) build(ctx context.Context, req *model.LaunchRequest, sigs <-chan os.Signal) error {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	finished := make(chan struct{})
	interrupted := make(chan os.Signal, 1)
	go func() {
		defer close(interrupted)
		select {
		case sig := <-sigs:
			l.logger.Debug().Str("signal", sig.String()).Msg("interrupt during image build")
			interrupted <- sig
			cancel()
		case <-finished:
		}
	}()

	decision, err := l.runtime.BuildIfNeeded(bctx, req.Image)
	close(finished)
	// The watcher may have taken a signal just as the build returned; it
	// still counts, the operator asked to stop.
	if sig, ok := <-interrupted; ok {
		return model.WrapCLIError(model.KindLaunch, model.StepBuild,
			fmt.Sprintf("build of image %s interrupted", req.Image.Tag), fmt.Errorf("received %s", sig))
	}
	if err != nil {
		return asCLIError(err, model.KindLaunch, model.StepBuild,
			fmt.Sprintf("failed to build image %s", req.Image.Tag))
	}
	l.logger.Info().Bool("built", decision.Build).Str("reason", decision.Reason).Msg("image ready")
	return nil
}

// cleanup removes the session's containers. It runs even when ctx is
// cancelled; a failure is logged and does not change the exit code.
func (l *Launcher) cleanup(ctx context.Context, req *model.LaunchRequest) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cleanupTimeout)
	defer cancel()

	if err := l.runtime.Cleanup(cctx, req); err != nil {
		l.logger.Warn().Err(err).Str("session", req.SessionID).Msg("container cleanup failed")
		return
	}
	l.logger.Debug().Str("session", req.SessionID).Msg("containers cleaned up")
}

func (l *Launcher) transition(next model.LaunchState) {
	if !l.state.CanTransition(next) {
		l.logger.Warn().Str("from", l.state.String()).Str("to", next.String()).Msg("unexpected state transition")
	}
	l.logger.Debug().Str("from", l.state.String()).Str("to", next.String()).Msg("state")
	l.state = next
}

func (l *Launcher) fail(err error) error {
	l.transition(model.StateFailed)
	return err
}

// asCLIError keeps an existing *model.CLIError and wraps anything else.
func asCLIError(err error, kind model.ErrorKind, step model.Step, msg string) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(kind, step, msg, err)
}

// ImageTagBase derives the image name fragment for a project root, as in
// "devlaunch-<base>:latest".
func ImageTagBase(root string) string {
	name := project.SanitizeName(filepath.Base(root))
	if name == "" {
		return "app"
	}
	return name
}
