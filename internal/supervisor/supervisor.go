// supervisor.go runs one child process with the launcher's own stdio and
// keeps it on a short leash: signals are forwarded to its whole process
// group, a stubborn child is killed after a grace period, and the group is
// always killed and reaped before Run returns.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// DefaultGracePeriod is how long a signalled child may take to exit before
// it is killed.
const DefaultGracePeriod = 10 * time.Second

// Signals returns the signals forwarded to a running child.
func Signals() []os.Signal {
	return append([]os.Signal(nil), forwardedSignals...)
}

// Supervisor runs one child process at a time.
type Supervisor struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	signals <-chan os.Signal
	grace   time.Duration
	logger  zerolog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStdio replaces the child's standard streams. A nil stdin reads from
// the null device.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdin, s.stdout, s.stderr = stdin, stdout, stderr
	}
}

// WithSignals supplies the signals to forward instead of subscribing to
// the process's own.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) { s.signals = ch }
}

// WithGracePeriod sets the delay between the first forwarded signal and
// SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// New creates a Supervisor attached to the launcher's own stdio.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		grace:  DefaultGracePeriod,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the child described by req and blocks until it exits.
//
// It returns the child's exit code. A child that cannot be started yields
// a LaunchError. Cancelling ctx terminates the child the same way a
// forwarded signal does; Run still waits for it to be reaped.
//
// Unless WithSignals was given, Run subscribes to the forwarded signals for
// the duration of the call.
func (s *Supervisor) Run(ctx context.Context, req *model.LaunchRequest) (int, error) {
	sigs := s.signals
	if sigs == nil {
		ch := make(chan os.Signal, 4)
		signal.Notify(ch, forwardedSignals...)
		defer signal.Stop(ch)
		sigs = ch
	}
	return s.RunWithSignals(ctx, req, sigs)
}

// RunWithSignals is Run with a signal subscription owned by the caller.
// Every signal received on sigs is forwarded to the child's process group.
// The caller must keep the subscription alive until RunWithSignals returns,
// otherwise a signal in between falls back to its default action and kills
// the launcher before the child is reaped.
func (s *Supervisor) RunWithSignals(ctx context.Context, req *model.LaunchRequest, sigs <-chan os.Signal) (int, error) {
	if req == nil || req.Path == "" {
		return int(model.ExitLauncherFailure), model.NewCLIError(model.KindLaunch, model.StepLaunch, "launch request has no executable")
	}

	cmd := exec.Command(resolvePath(req.Path, req.Env), req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	// Bounds how long Wait keeps copying from pipes that a grandchild
	// still holds open after the child itself is gone.
	cmd.WaitDelay = s.grace

	// The child leads its own process group. Signals go to the whole
	// group, so a wrapper script cannot leave its children behind.
	restoreTerminal := setProcessGroup(cmd, s.stdin)

	if err := cmd.Start(); err != nil {
		restoreTerminal()
		return int(model.ExitLauncherFailure), model.WrapCLIError(model.KindLaunch, model.StepLaunch,
			fmt.Sprintf("failed to start %s", req.Path), err)
	}
	defer restoreTerminal()
	s.logger.Debug().Int("pid", cmd.Process.Pid).Str("command", req.CommandLine()).Msg("child started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// Whatever happens below, nothing from the child's group survives Run.
	// The group is killed even after a clean exit: anything still in it
	// was left running in the background.
	reaped := false
	defer func() {
		if !reaped {
			_ = killGroup(cmd.Process)
			<-done
		}
		if err := killGroup(cmd.Process); err == nil {
			s.logger.Debug().Int("pgid", cmd.Process.Pid).Msg("killed processes left in the child's group")
		}
	}()

	var (
		killTimer *time.Timer
		killC     <-chan time.Time
		ctxDone   = ctx.Done()
	)
	armKill := func() {
		if killTimer == nil {
			killTimer = time.NewTimer(s.grace)
			killC = killTimer.C
		}
	}
	defer func() {
		if killTimer != nil {
			killTimer.Stop()
		}
	}()

	for {
		select {
		case err := <-done:
			reaped = true
			code := exitCode(cmd.ProcessState, err)
			s.logger.Debug().Int("pid", cmd.Process.Pid).Int("code", code).Msg("child exited")
			return code, nil

		case sig := <-sigs:
			s.logger.Debug().Str("signal", sig.String()).Msg("forwarding signal to child")
			if err := signalGroup(cmd.Process, sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Debug().Err(err).Msg("signal not delivered, killing child")
				_ = killGroup(cmd.Process)
			}
			armKill()

		case <-ctxDone:
			ctxDone = nil
			s.logger.Debug().Err(ctx.Err()).Msg("context cancelled, terminating child")
			if err := signalGroup(cmd.Process, terminateSignal); err != nil && !errors.Is(err, os.ErrProcessDone) {
				_ = killGroup(cmd.Process)
			}
			armKill()

		case <-killC:
			killC = nil
			s.logger.Warn().Dur("grace_period", s.grace).Msg("child did not exit in time, killing it")
			_ = killGroup(cmd.Process)
		}
	}
}

// exitCode maps the wait result to a shell-style exit status.
func exitCode(state *os.ProcessState, waitErr error) int {
	if state == nil {
		return int(model.ExitLauncherFailure)
	}
	// Shell convention: a child killed by signal N exits 128+N, so a
	// SIGKILL shows up as 137 whether the child ran locally or in docker.
	if sig, ok := signalNumber(state); ok {
		return 128 + sig
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return int(model.ExitLauncherFailure)
}
