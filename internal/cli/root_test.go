package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Scenario: local mode, environment ready, child exits 0.
func TestExecute_LocalSuccess(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--mode", "local", "--", "python", "-m", "app")
	assert.Equal(t, 0, code)
	assert.Empty(t, h.stderr.String())

	require.Equal(t, 1, h.process.calls)
	assert.Equal(t, "python", h.process.req.Path)
	assert.Equal(t, []string{"-m", "app"}, h.process.req.Args)
	assert.Equal(t, h.dir, h.process.req.Dir)
}

// Scenario: local mode, activation fails.
func TestExecute_EnvironmentNotReady(t *testing.T) {
	h := newHarness(t)
	h.activator.err = errors.New("lock file missing: Pipfile.lock")

	code := h.execute("run", "--mode", "local", "--", "python", "app.py")
	assert.Equal(t, int(model.ExitLauncherFailure), code)
	assert.Contains(t, h.stderr.String(), "Error: [EnvironmentNotReadyError] environment:")
	assert.Contains(t, h.stderr.String(), "Pipfile.lock")
	assert.Zero(t, h.process.calls)
}

// Scenario: containerized, build succeeds, child killed.
func TestExecute_ContainerizedRelaysExitCode(t *testing.T) {
	h := newHarness(t)
	h.process.code = 137

	code := h.execute("run", "--mode", "containerized", "--image", "python:3.10", "--", "python", "app.py")
	assert.Equal(t, 137, code)
	assert.Empty(t, h.stderr.String(), "a child failure is relayed, not reported")
	assert.Equal(t, 1, h.runtime.buildCalls)
	assert.Equal(t, 1, h.runtime.cleanupCalls)
	assert.Equal(t, "docker", h.process.req.Path)
}

// Scenario: bogus mode.
func TestExecute_BogusMode(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--mode", "bogus", "--", "python")
	assert.Equal(t, int(model.ExitLauncherFailure), code)
	assert.Contains(t, h.stderr.String(), `[ConfigurationError] resolve: cannot resolve execution mode: invalid execution mode: "bogus"`)
	assert.Equal(t, 1, strings.Count(h.stderr.String(), "invalid execution mode"))
	assert.Zero(t, h.activator.calls)
	assert.Zero(t, h.process.calls)
}

func TestExecute_MissingMode(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--", "python")
	assert.Equal(t, int(model.ExitLauncherFailure), code)
	assert.Contains(t, h.stderr.String(), "execution mode is not set")
}

func TestExecute_EnvironmentVariables(t *testing.T) {
	h := newHarness(t)
	h.env["DEVLAUNCH_MODE"] = "local"
	h.env["DEVLAUNCH_TARGET"] = "python app.py"

	code := h.execute("run")
	assert.Equal(t, 0, code)
	assert.Equal(t, "python", h.process.req.Path)
	assert.Equal(t, []string{"app.py"}, h.process.req.Args)
}

func TestExecute_FlagBeatsEnvironment(t *testing.T) {
	h := newHarness(t)
	h.env["DEVLAUNCH_MODE"] = "bogus"

	code := h.execute("run", "--mode", "local", "--target", "python app.py")
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, h.process.calls)
}

func TestExecute_ConfigFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "devlaunch.toml"), []byte(`
mode = "local"
target = ["python", "-m", "app"]
`), 0o644))

	code := h.execute("run", "--", "--port", "8000")
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"-m", "app", "--port", "8000"}, h.process.req.Args)
}

// TestExecute_TargetFlagsPassThrough checks that flags after the first
// positional argument belong to the target.
func TestExecute_TargetFlagsPassThrough(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--mode", "local", "python", "-m", "app", "--verbose")
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"-m", "app", "--verbose"}, h.process.req.Args)
}

func TestExecute_UnknownFlag(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--no-such-flag")
	assert.Equal(t, int(model.ExitLauncherFailure), code)
	assert.Contains(t, h.stderr.String(), "[ConfigurationError]")
	assert.Zero(t, h.process.calls)
}

func TestExecute_InvalidGracePeriod(t *testing.T) {
	h := newHarness(t)

	code := h.execute("run", "--mode", "local", "--grace-period", "0s", "--", "python")
	assert.Equal(t, int(model.ExitLauncherFailure), code)
	assert.Contains(t, h.stderr.String(), "grace-period")
}

func TestExecute_JSONError(t *testing.T) {
	h := newHarness(t)

	code := h.execute("--json", "run", "--mode", "bogus", "--", "python")
	assert.Equal(t, int(model.ExitLauncherFailure), code)

	var out struct {
		Error struct {
			Kind    string `json:"kind"`
			Step    string `json:"step"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(h.stderr.Bytes(), &out), h.stderr.String())
	assert.Equal(t, "ConfigurationError", out.Error.Kind)
	assert.Equal(t, "resolve", out.Error.Step)
	assert.Equal(t, "cannot resolve execution mode", out.Error.Message)
	assert.NotEmpty(t, out.Error.Detail)
}

func TestHandleError(t *testing.T) {
	jsonOutput = false
	var buf bytes.Buffer

	assert.Equal(t, 0, handleError(&buf, nil))
	assert.Equal(t, 3, handleError(&buf, &model.ChildExit{Code: 3}))
	assert.Empty(t, buf.String())

	buf.Reset()
	err := model.WrapCLIError(model.KindLaunch, model.StepLaunch, "failed to start python", errors.New("permission denied"))
	assert.Equal(t, int(model.ExitLauncherFailure), handleError(&buf, err))
	assert.Equal(t, "Error: [LaunchError] launch: failed to start python: permission denied\n", buf.String())

	buf.Reset()
	assert.Equal(t, int(model.ExitLauncherFailure), handleError(&buf, errors.New(`unknown command "x"`)))
	assert.Contains(t, buf.String(), `[ConfigurationError] resolve: unknown command "x"`)
}
