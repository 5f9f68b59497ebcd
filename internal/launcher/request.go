// request.go holds the pure parts of a launch: reading the execution mode
// from configuration and turning mode, activated environment and target
// into a LaunchRequest. Neither touches the filesystem, the network or any
// process, so both can be tested exhaustively.
package launcher

import (
	"strings"

	"github.com/mmr-tortoise/devlaunch/internal/config"
	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/environment"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ResolveMode reads the execution mode from cfg. It never guesses: an
// empty or unrecognized mode is a ConfigurationError.
func ResolveMode(cfg *config.Config) (model.ExecutionMode, error) {
	if strings.TrimSpace(cfg.Mode) == "" {
		return "", model.NewCLIError(model.KindConfiguration, model.StepResolve,
			"execution mode is not set (use --mode or "+config.EnvMode+")")
	}
	mode, err := model.ParseExecutionMode(cfg.Mode)
	if err != nil {
		return "", model.WrapCLIError(model.KindConfiguration, model.StepResolve, "cannot resolve execution mode", err)
	}
	return mode, nil
}

// RequestOptions carries the inputs of BuildLaunchRequest that come from
// the invocation rather than from the environment.
type RequestOptions struct {
	// ProjectDir is the working directory of the child (local) or of the
	// docker CLI (containerized).
	ProjectDir string

	SessionID string
	Branch    string

	// BaseEnv is the launcher's own environment.
	BaseEnv []string

	// Image describes the container side. Required for containerized mode.
	Image *model.ImageSpec

	// TTY allocates a terminal inside the container.
	TTY bool
}

// BuildLaunchRequest derives the request to execute. It has no side
// effects: the same inputs always give the same request.
//
// A local request runs args[0] directly with the activated environment
// applied to BaseEnv. A containerized request runs the docker CLI, which
// in turn runs args inside the image or compose service.
func BuildLaunchRequest(mode model.ExecutionMode, activated model.ActivatedEnvironment, args []string, opts RequestOptions) (*model.LaunchRequest, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, model.NewCLIError(model.KindConfiguration, model.StepRequest,
			"no target to run (set target, "+config.EnvTarget+", --target, or pass arguments after --)")
	}

	req := &model.LaunchRequest{
		Mode:      mode,
		Dir:       opts.ProjectDir,
		SessionID: opts.SessionID,
		Branch:    opts.Branch,
	}

	switch mode {
	case model.ModeLocal:
		req.Path = args[0]
		req.Args = append([]string{}, args[1:]...)
		req.Env = environment.Environ(opts.BaseEnv, activated)

	case model.ModeContainerized:
		if opts.Image == nil {
			return nil, model.NewCLIError(model.KindConfiguration, model.StepRequest,
				"containerized mode needs an image, Dockerfile or compose service")
		}
		image := *opts.Image
		req.Image = &image
		req.Path = "docker"
		req.Env = append([]string{}, opts.BaseEnv...)

		runOpts := docker.RunOptions{TTY: opts.TTY}
		if image.Pattern == model.PatternCompose {
			req.Args = docker.ComposeRunArgs(req, args, runOpts)
		} else {
			req.Args = docker.RunArgs(req, args, runOpts)
		}

	default:
		return nil, model.NewCLIError(model.KindConfiguration, model.StepRequest,
			"unsupported execution mode: "+string(mode))
	}

	return req, nil
}
