package config

import (
	"errors"
	"fmt"

	"github.com/mmr-tortoise/devlaunch/internal/devcontainer"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ImageSpec builds the container side of a containerized launch.
//
// An explicit image, Dockerfile or compose file list in the configuration
// wins; otherwise the project's devcontainer.json is used. Env, ports, run
// args and watch files from the configuration are layered on top either
// way. tagBase names the image built from a Dockerfile
// ("devlaunch-<tagBase>:latest") unless an image name is configured.
func (c *Config) ImageSpec(tagBase string) (*model.ImageSpec, error) {
	ctr := c.Container

	policy, err := model.ParseBuildPolicy(ctr.BuildPolicy)
	if err != nil {
		return nil, configError("invalid build policy", err)
	}

	tag := ctr.Image
	if tag == "" {
		tag = fmt.Sprintf("devlaunch-%s:latest", tagBase)
	}

	var spec *model.ImageSpec
	switch {
	case len(ctr.ComposeFiles) > 0:
		if ctr.Service == "" {
			return nil, model.NewCLIError(model.KindConfiguration, model.StepResolve,
				"container.service is required with container.compose_files")
		}
		// Compose runs never mount the project themselves, so "-w" is only
		// passed when asked for; otherwise the service's working_dir holds.
		spec = &model.ImageSpec{
			Pattern:    model.PatternCompose,
			Service:    ctr.Service,
			ProjectDir: c.ProjectDir,
			Workdir:    ctr.workdir(false),
			Policy:     policy,
		}
		for _, f := range ctr.ComposeFiles {
			spec.ComposeFiles = append(spec.ComposeFiles, c.ResolvePath(f))
		}
		spec.WatchFiles = append(spec.WatchFiles, spec.ComposeFiles...)
		ok, err := devcontainer.HasService(spec.ComposeFiles, spec.Service)
		if err != nil {
			return nil, configError("failed to read compose files", err)
		}
		if !ok {
			return nil, model.NewCLIError(model.KindConfiguration, model.StepResolve,
				fmt.Sprintf("service %q is not defined in the compose files", spec.Service))
		}

	case ctr.Dockerfile != "":
		dockerfile := c.ResolvePath(ctr.Dockerfile)
		spec = &model.ImageSpec{
			Tag:        tag,
			Pattern:    model.PatternDockerfile,
			Dockerfile: dockerfile,
			Context:    c.ResolvePath(ctr.Context),
			BuildArgs:  ctr.BuildArgs,
			ProjectDir: c.ProjectDir,
			Workdir:    ctr.workdir(ctr.Mount),
			Mount:      ctr.Mount,
			WatchFiles: []string{dockerfile},
			Policy:     policy,
		}

	case ctr.Image != "":
		spec = &model.ImageSpec{
			Tag:        ctr.Image,
			Pattern:    model.PatternImage,
			ProjectDir: c.ProjectDir,
			Workdir:    ctr.workdir(ctr.Mount),
			Mount:      ctr.Mount,
			Policy:     policy,
		}

	default:
		spec, _, err = devcontainer.LoadImageSpec(c.ProjectDir, devcontainer.SpecOptions{
			ProjectDir: c.ProjectDir,
			Tag:        tag,
			Policy:     policy,
		})
		if err != nil {
			if errors.Is(err, devcontainer.ErrNotFound) {
				return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
					"no container image configured (set container.image, container.dockerfile, container.compose_files or add a devcontainer.json)", err)
			}
			return nil, configError("invalid devcontainer configuration", err)
		}
	}

	if err := c.layerContainerConfig(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// layerContainerConfig merges the configuration's env, ports, run args and
// watch files into spec.
func (c *Config) layerContainerConfig(spec *model.ImageSpec) error {
	ctr := c.Container

	if len(ctr.Env) > 0 {
		env := make(map[string]string, len(spec.Env)+len(ctr.Env))
		for k, v := range spec.Env {
			env[k] = v
		}
		for k, v := range ctr.Env {
			env[k] = v
		}
		spec.Env = env
	}

	for _, raw := range ctr.Ports {
		p, err := model.ParsePortMapping(raw)
		if err != nil {
			return configError("invalid container port", err)
		}
		spec.Ports = replacePort(spec.Ports, p)
	}

	spec.RunArgs = append(append([]string{}, spec.RunArgs...), ctr.RunArgs...)

	for _, f := range ctr.WatchFiles {
		spec.WatchFiles = append(spec.WatchFiles, c.ResolvePath(f))
	}
	if c.Environment.LockFile != "" {
		spec.WatchFiles = append(spec.WatchFiles, c.ResolvePath(c.Environment.LockFile))
	}

	return nil
}

// replacePort adds p, replacing any mapping for the same container port.
func replacePort(ports []model.PortMapping, p model.PortMapping) []model.PortMapping {
	out := make([]model.PortMapping, 0, len(ports)+1)
	for _, existing := range ports {
		if existing.ContainerPort == p.ContainerPort && existing.Protocol == p.Protocol {
			continue
		}
		out = append(out, existing)
	}
	return append(out, p)
}

func configError(msg string, err error) error {
	return model.WrapCLIError(model.KindConfiguration, model.StepResolve, msg, err)
}
