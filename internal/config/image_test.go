package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

func TestImageSpec_ExplicitImage(t *testing.T) {
	cfg := Default("/proj")
	cfg.Container.Image = "python:3.10"
	cfg.Container.Env = map[string]string{"A": "1"}
	cfg.Container.Ports = []string{"5678"}

	spec, err := cfg.ImageSpec("proj")
	require.NoError(t, err)
	assert.Equal(t, model.PatternImage, spec.Pattern)
	assert.Equal(t, "python:3.10", spec.Tag)
	assert.Equal(t, "/workspace", spec.Workdir)
	assert.True(t, spec.Mount)
	assert.Equal(t, model.DefaultBuildPolicy, spec.Policy)
	assert.Equal(t, map[string]string{"A": "1"}, spec.Env)
	assert.Equal(t, []model.PortMapping{{HostPort: 5678, ContainerPort: 5678, Protocol: "tcp"}}, spec.Ports)
}

func TestImageSpec_Dockerfile(t *testing.T) {
	cfg := Default("/proj")
	cfg.Container.Dockerfile = "docker/Dockerfile"
	cfg.Container.BuildPolicy = "if-missing"
	cfg.Container.WatchFiles = []string{"requirements.txt"}
	cfg.Environment.LockFile = "Pipfile.lock"

	spec, err := cfg.ImageSpec("agent")
	require.NoError(t, err)
	assert.Equal(t, model.PatternDockerfile, spec.Pattern)
	assert.Equal(t, "devlaunch-agent:latest", spec.Tag)
	assert.Equal(t, filepath.Join("/proj", "docker/Dockerfile"), spec.Dockerfile)
	assert.Equal(t, "/proj", spec.Context)
	assert.Equal(t, model.BuildIfMissing, spec.Policy)
	assert.Equal(t, []string{
		filepath.Join("/proj", "docker/Dockerfile"),
		filepath.Join("/proj", "requirements.txt"),
		filepath.Join("/proj", "Pipfile.lock"),
	}, spec.WatchFiles)
}

func TestImageSpec_Compose(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yml"), []byte("services:\n  app:\n    image: python:3.10\n"), 0o644))

	cfg := Default(dir)
	cfg.Container.ComposeFiles = []string{"compose.yml"}
	cfg.Container.Service = "app"

	spec, err := cfg.ImageSpec("x")
	require.NoError(t, err)
	assert.Equal(t, model.PatternCompose, spec.Pattern)
	assert.Equal(t, []string{filepath.Join(dir, "compose.yml")}, spec.ComposeFiles)

	assert.Empty(t, spec.Workdir)

	cfg.Container.Service = "worker"
	_, err = cfg.ImageSpec("x")
	assert.ErrorIs(t, err, model.ErrConfiguration)

	cfg.Container.Service = ""
	_, err = cfg.ImageSpec("x")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

// TestImageSpec_ComposeKeepsServiceWorkdir checks that a compose service's
// own working_dir is not overridden unless container.workdir is set.
func TestImageSpec_ComposeKeepsServiceWorkdir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"),
		[]byte("services:\n  app:\n    image: python:3.10\n    working_dir: /srv/app\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devlaunch.toml"), []byte(`
mode = "containerized"
[container]
compose_files = ["docker-compose.yml"]
service = "app"
`), 0o644))

	cfg, err := Load(Options{ProjectDir: dir, Getenv: envMap(nil)})
	require.NoError(t, err)

	spec, err := cfg.ImageSpec("x")
	require.NoError(t, err)
	assert.False(t, spec.Mount)
	assert.Empty(t, spec.Workdir, "no -w may reach docker compose run")

	cfg.Container.Workdir = "/srv/other"
	spec, err = cfg.ImageSpec("x")
	require.NoError(t, err)
	assert.Equal(t, "/srv/other", spec.Workdir)
}

// TestImageSpec_WorkdirFollowsMount checks the default mount point is only
// used when the project is mounted.
func TestImageSpec_WorkdirFollowsMount(t *testing.T) {
	cfg := Default("/proj")
	cfg.Container.Image = "python:3.10"
	cfg.Container.Mount = false

	spec, err := cfg.ImageSpec("proj")
	require.NoError(t, err)
	assert.Empty(t, spec.Workdir)

	cfg.Container.Mount = true
	spec, err = cfg.ImageSpec("proj")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkdir, spec.Workdir)
}

// TestImageSpec_DevcontainerFallback uses devcontainer.json when nothing
// explicit is configured, with config ports layered on top.
func TestImageSpec_DevcontainerFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".devcontainer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".devcontainer", "devcontainer.json"), []byte(`{
  // comment
  "image": "python:3.10-slim",
  "forwardPorts": [5678],
  "containerEnv": {"A": "from-devcontainer", "B": "kept"}
}`), 0o644))

	cfg := Default(dir)
	cfg.Container.Ports = []string{"15678:5678"}
	cfg.Container.Env = map[string]string{"A": "from-config"}

	spec, err := cfg.ImageSpec("x")
	require.NoError(t, err)
	assert.Equal(t, "python:3.10-slim", spec.Tag)
	assert.Equal(t, []model.PortMapping{{HostPort: 15678, ContainerPort: 5678, Protocol: "tcp"}}, spec.Ports)
	assert.Equal(t, map[string]string{"A": "from-config", "B": "kept"}, spec.Env)
}

func TestImageSpec_NothingConfigured(t *testing.T) {
	_, err := Default(t.TempDir()).ImageSpec("x")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Contains(t, err.Error(), "no container image configured")
}

func TestImageSpec_InvalidValues(t *testing.T) {
	cfg := Default("/proj")
	cfg.Container.Image = "python:3.10"
	cfg.Container.BuildPolicy = "sometimes"
	_, err := cfg.ImageSpec("x")
	assert.ErrorIs(t, err, model.ErrConfiguration)

	cfg.Container.BuildPolicy = ""
	cfg.Container.Ports = []string{"99999"}
	_, err = cfg.ImageSpec("x")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
