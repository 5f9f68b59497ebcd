package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Errors returned by Runtime.Preflight for missing build inputs.
var (
	ErrDockerfileMissing  = errors.New("dockerfile not found")
	ErrContextMissing     = errors.New("build context not found")
	ErrComposeFileMissing = errors.New("compose file not found")
)

// CommandFunc runs the docker CLI with args in dir, sending output to out.
type CommandFunc func(ctx context.Context, dir string, out io.Writer, args ...string) error

// Runtime is the container collaborator used by the launcher. It connects
// to the daemon lazily, so constructing one costs nothing in local mode.
type Runtime struct {
	connect func() (*Client, error)
	client  *Client
	run     CommandFunc
	out     io.Writer
	logger  zerolog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithClient uses an existing client instead of connecting on first use.
func WithClient(c *Client) RuntimeOption {
	return func(r *Runtime) { r.client = c }
}

// WithCommandFunc replaces the docker CLI executor.
func WithCommandFunc(fn CommandFunc) RuntimeOption {
	return func(r *Runtime) { r.run = fn }
}

// WithOutput sets where build output is streamed. Defaults to stderr so
// the child's stdout stays clean.
func WithOutput(w io.Writer) RuntimeOption {
	return func(r *Runtime) { r.out = w }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates a Runtime backed by the local Docker daemon.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		connect: NewClient,
		run:     runDocker,
		out:     os.Stderr,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) dockerClient() (*Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	c, err := r.connect()
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// Close releases the daemon connection, if one was made.
func (r *Runtime) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Preflight checks that the daemon answers and that the build inputs the
// spec refers to exist. It does not build anything.
func (r *Runtime) Preflight(ctx context.Context, spec *model.ImageSpec) error {
	c, err := r.dockerClient()
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		return err
	}

	switch spec.Pattern {
	case model.PatternImage:
		return nil

	case model.PatternDockerfile:
		if _, err := os.Stat(spec.Dockerfile); err != nil {
			return fmt.Errorf("%w: %s", ErrDockerfileMissing, spec.Dockerfile)
		}
		if info, err := os.Stat(spec.Context); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrContextMissing, spec.Context)
		}
		return nil

	case model.PatternCompose:
		for _, f := range spec.ComposeFiles {
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("%w: %s", ErrComposeFileMissing, f)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown image pattern: %q", spec.Pattern)
	}
}

// BuildIfNeeded builds the image when the spec's build policy asks for it.
//
// Only the dockerfile pattern is built here. A compose service is built
// with "docker compose build" when the policy is always; otherwise compose
// builds a missing image itself on run. A plain image is pulled by run.
func (r *Runtime) BuildIfNeeded(ctx context.Context, spec *model.ImageSpec) (BuildDecision, error) {
	switch spec.Pattern {
	case model.PatternImage:
		return BuildDecision{Reason: "prebuilt image"}, nil

	case model.PatternCompose:
		if spec.Policy != model.BuildAlways {
			return BuildDecision{Reason: "compose builds missing images on run"}, nil
		}
		args := ComposeBuildArgs(spec, "")
		r.logger.Debug().Strs("args", args).Msg("building compose service")
		if err := r.run(ctx, spec.ProjectDir, r.out, args...); err != nil {
			return BuildDecision{}, err
		}
		return BuildDecision{Build: true, Reason: "build policy is always"}, nil

	case model.PatternDockerfile:
		c, err := r.dockerClient()
		if err != nil {
			return BuildDecision{}, err
		}
		state, err := c.InspectImage(ctx, spec.Tag)
		if err != nil {
			return BuildDecision{}, err
		}
		newest, haveInputs := NewestModTime(spec.WatchFiles)

		decision, err := DecideBuild(spec.Policy, state, newest, haveInputs)
		if err != nil {
			return BuildDecision{}, err
		}
		r.logger.Debug().
			Str("image", spec.Tag).
			Bool("build", decision.Build).
			Str("reason", decision.Reason).
			Msg("build decision")
		if !decision.Build {
			return decision, nil
		}

		if err := r.run(ctx, spec.ProjectDir, r.out, BuildArgs(spec)...); err != nil {
			return BuildDecision{}, err
		}
		return decision, nil

	default:
		return BuildDecision{}, fmt.Errorf("unknown image pattern: %q", spec.Pattern)
	}
}

// Cleanup removes everything the request's run may have left behind:
// the compose project for the compose pattern, and every container that
// carries the session label. It is safe to call when nothing is left.
func (r *Runtime) Cleanup(ctx context.Context, req *model.LaunchRequest) error {
	if req.Image == nil {
		return nil
	}

	var errs []error
	if req.Image.Pattern == model.PatternCompose {
		var buf bytes.Buffer
		if err := r.run(ctx, req.Image.ProjectDir, &buf, ComposeDownArgs(req.SessionID, req.Image.ComposeFiles)...); err != nil {
			errs = append(errs, fmt.Errorf("docker compose down failed: %s: %w", strings.TrimSpace(buf.String()), err))
		}
	}

	c, err := r.dockerClient()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	leftovers, err := c.ListSessionContainers(ctx, req.SessionID)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	removed, err := c.RemoveContainers(ctx, leftovers)
	if err != nil {
		errs = append(errs, err)
	}
	if len(removed) > 0 {
		r.logger.Debug().Str("session", req.SessionID).Int("count", len(removed)).Msg("removed leftover containers")
	}

	return errors.Join(errs...)
}

// CleanupAll removes every devlaunch-managed container on the host and
// returns what was removed.
func (r *Runtime) CleanupAll(ctx context.Context, dryRun bool) ([]model.ContainerInfo, error) {
	c, err := r.dockerClient()
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	containers, err := c.ListManagedContainers(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return containers, nil
	}
	return c.RemoveContainers(ctx, containers)
}

// runDocker executes the docker CLI with both output streams sent to out.
func runDocker(ctx context.Context, dir string, out io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("docker %s: exit code %d", args[0], exitErr.ExitCode())
		}
		return fmt.Errorf("docker %s: %w", args[0], err)
	}
	return nil
}
