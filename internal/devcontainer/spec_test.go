package devcontainer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

func TestLoadImageSpec_Image(t *testing.T) {
	root := testdataPath(t, "image")

	spec, path, err := LoadImageSpec(root, SpecOptions{ProjectDir: root, Tag: "unused", Policy: model.BuildIfStale})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, ".devcontainer", "devcontainer.json"), path)
	assert.Equal(t, model.PatternImage, spec.Pattern)
	assert.Equal(t, "mcr.microsoft.com/devcontainers/python:3.10", spec.Tag)
	assert.True(t, spec.Mount)
	assert.Equal(t, root, spec.ProjectDir)
	assert.Equal(t, DefaultWorkspaceFolder, spec.Workdir)
	assert.Equal(t, []string{"--init"}, spec.RunArgs)
	assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "1"}, spec.Env)
	assert.Equal(t, []model.PortMapping{
		{HostPort: 5678, ContainerPort: 5678, Protocol: "tcp"},
		{HostPort: 8080, ContainerPort: 8080, Protocol: "tcp"},
		{HostPort: 18000, ContainerPort: 8000, Protocol: "tcp"},
	}, spec.Ports)
	assert.False(t, spec.NeedsBuild())
}

// TestLoadImageSpec_Dockerfile verifies that build paths resolve against
// the .devcontainer directory.
func TestLoadImageSpec_Dockerfile(t *testing.T) {
	root := testdataPath(t, "dockerfile")

	spec, _, err := LoadImageSpec(root, SpecOptions{ProjectDir: root, Tag: "devlaunch-agent:latest", Policy: model.BuildAlways})
	require.NoError(t, err)

	assert.Equal(t, model.PatternDockerfile, spec.Pattern)
	assert.Equal(t, "devlaunch-agent:latest", spec.Tag)
	assert.Equal(t, filepath.Join(root, ".devcontainer", "Dockerfile"), spec.Dockerfile)
	assert.Equal(t, root, spec.Context)
	assert.Equal(t, map[string]string{"PYTHON_VERSION": "3.10"}, spec.BuildArgs)
	assert.Equal(t, []string{spec.Dockerfile}, spec.WatchFiles)
	assert.Equal(t, "/app", spec.Workdir)
	assert.Equal(t, model.BuildAlways, spec.Policy)
	assert.True(t, spec.NeedsBuild())
}

func TestLoadImageSpec_Compose(t *testing.T) {
	root := testdataPath(t, "compose")

	spec, _, err := LoadImageSpec(root, SpecOptions{ProjectDir: root})
	require.NoError(t, err)

	assert.Equal(t, model.PatternCompose, spec.Pattern)
	assert.Equal(t, "app", spec.Service)
	assert.Equal(t, []string{
		filepath.Join(root, "docker-compose.yml"),
		filepath.Join(root, ".devcontainer", "docker-compose.dev.yml"),
	}, spec.ComposeFiles)
	assert.False(t, spec.Mount, "compose services declare their own volumes")
	assert.Equal(t, "/workspace", spec.Workdir)
	assert.Equal(t, []model.PortMapping{{HostPort: 5678, ContainerPort: 5678, Protocol: "tcp"}}, spec.Ports)
}

func TestToImageSpec_UnknownService(t *testing.T) {
	root := testdataPath(t, "compose")
	raw, err := LoadConfig(filepath.Join(root, ".devcontainer", "devcontainer.json"))
	require.NoError(t, err)
	raw.Service = "worker"

	_, err = ToImageSpec(raw, filepath.Join(root, ".devcontainer", "devcontainer.json"), SpecOptions{ProjectDir: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `service "worker" is not defined`)
}

func TestToImageSpec_Invalid(t *testing.T) {
	_, err := ToImageSpec(&RawDevContainer{Name: "nothing"}, "/p/.devcontainer/devcontainer.json", SpecOptions{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "(root)", verr.Field)
}

func TestLoadImageSpec_NotFound(t *testing.T) {
	_, _, err := LoadImageSpec(t.TempDir(), SpecOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}
