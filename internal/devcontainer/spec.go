package devcontainer

import (
	"fmt"
	"path/filepath"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// DefaultWorkspaceFolder is where the project is mounted when
// devcontainer.json does not set workspaceFolder.
const DefaultWorkspaceFolder = "/workspace"

// SpecOptions carries the values devcontainer.json does not provide.
type SpecOptions struct {
	// ProjectDir is the host directory mounted into the container.
	ProjectDir string

	// Tag names the image built for the dockerfile pattern.
	Tag string

	// Policy is copied into the spec.
	Policy model.BuildPolicy
}

// ToImageSpec converts a parsed devcontainer.json into an ImageSpec.
// Relative paths are resolved against the directory holding configPath,
// as the devcontainer.json spec requires.
func ToImageSpec(raw *RawDevContainer, configPath string, opts SpecOptions) (*model.ImageSpec, error) {
	if errs := ValidateConfig(raw); len(errs) > 0 {
		return nil, &errs[0]
	}

	configDir := filepath.Dir(configPath)
	spec := &model.ImageSpec{
		Pattern:    DetectPattern(raw),
		ProjectDir: opts.ProjectDir,
		Workdir:    raw.WorkspaceFolder,
		Env:        raw.ContainerEnv,
		Ports:      ExtractPorts(raw, raw.Service),
		Policy:     opts.Policy,
	}

	switch spec.Pattern {
	case model.PatternImage:
		spec.Tag = raw.Image
		spec.Mount = true
		spec.RunArgs = raw.RunArgs

	case model.PatternDockerfile:
		dockerfile := raw.Build.Dockerfile
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		ctxDir := raw.Build.Context
		if ctxDir == "" {
			ctxDir = "."
		}
		spec.Tag = opts.Tag
		spec.Dockerfile = resolvePath(configDir, dockerfile)
		spec.Context = resolvePath(configDir, ctxDir)
		spec.BuildArgs = raw.Build.Args
		spec.WatchFiles = []string{spec.Dockerfile}
		spec.Mount = true
		spec.RunArgs = raw.RunArgs

	case model.PatternCompose:
		for _, f := range GetComposeFiles(raw) {
			spec.ComposeFiles = append(spec.ComposeFiles, resolvePath(configDir, f))
		}
		spec.Service = raw.Service
		spec.WatchFiles = append([]string{}, spec.ComposeFiles...)

		ok, err := HasService(spec.ComposeFiles, spec.Service)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("service %q is not defined in %v", spec.Service, spec.ComposeFiles)
		}

	default:
		return nil, fmt.Errorf("unknown image pattern: %q", spec.Pattern)
	}

	// Compose services declare their own volumes; the default workspace
	// only applies to containers devlaunch mounts itself.
	if spec.Workdir == "" && spec.Mount {
		spec.Workdir = DefaultWorkspaceFolder
	}

	return spec, nil
}

// LoadImageSpec finds, loads and converts the project's devcontainer.json.
func LoadImageSpec(projectDir string, opts SpecOptions) (*model.ImageSpec, string, error) {
	path, err := FindDevContainerJSON(projectDir)
	if err != nil {
		return nil, "", err
	}
	raw, err := LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	spec, err := ToImageSpec(raw, path, opts)
	if err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return spec, path, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
