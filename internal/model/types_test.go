package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseExecutionMode verifies string-to-mode conversion,
// including case normalization and the refusal to guess on empty input.
func TestParseExecutionMode(t *testing.T) {
	tests := []struct {
		input    string
		expected ExecutionMode
		hasError bool
	}{
		{"local", ModeLocal, false},
		{"containerized", ModeContainerized, false},
		{"LOCAL", ModeLocal, false},                   // case insensitive
		{" Containerized ", ModeContainerized, false}, // whitespace trimmed
		{"", "", true},                                // never defaults
		{"   ", "", true},
		{"bogus", "", true},
		{"docker", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			result, err := ParseExecutionMode(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestExecutionMode_IsValid checks that only defined modes pass validation.
func TestExecutionMode_IsValid(t *testing.T) {
	assert.True(t, ModeLocal.IsValid())
	assert.True(t, ModeContainerized.IsValid())
	assert.False(t, ExecutionMode("").IsValid())
	assert.False(t, ExecutionMode("Local").IsValid(), "IsValid does not normalize case")
}

// TestParseBuildPolicy verifies policy parsing and the if-stale default.
func TestParseBuildPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected BuildPolicy
		hasError bool
	}{
		{"", BuildIfStale, false},
		{"always", BuildAlways, false},
		{"if-missing", BuildIfMissing, false},
		{"IF-STALE", BuildIfStale, false},
		{"never", BuildNever, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			result, err := ParseBuildPolicy(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestLaunchState_Transitions walks the one-shot state machine and checks
// that no restart edge exists.
func TestLaunchState_Transitions(t *testing.T) {
	allowed := []struct{ from, to LaunchState }{
		{StateNotStarted, StateResolving},
		{StateResolving, StateEnvironmentReady},
		{StateResolving, StateFailed},
		{StateEnvironmentReady, StateRunning},
		{StateEnvironmentReady, StateFailed},
		{StateRunning, StateExited},
		{StateRunning, StateFailed},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	forbidden := []struct{ from, to LaunchState }{
		{StateNotStarted, StateRunning},
		{StateResolving, StateRunning},
		{StateExited, StateResolving},
		{StateFailed, StateResolving},
		{StateExited, StateRunning},
		{StateRunning, StateEnvironmentReady},
	}
	for _, tr := range forbidden {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s should be rejected", tr.from, tr.to)
	}

	assert.True(t, StateExited.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
}

// TestParsePortMapping covers the accepted -p forms and range checks.
func TestParsePortMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected PortMapping
		hasError bool
	}{
		{"5678", PortMapping{HostPort: 5678, ContainerPort: 5678, Protocol: "tcp"}, false},
		{"18080:8080", PortMapping{HostPort: 18080, ContainerPort: 8080, Protocol: "tcp"}, false},
		{"5353:53/udp", PortMapping{HostPort: 5353, ContainerPort: 53, Protocol: "udp"}, false},
		{"abc", PortMapping{}, true},
		{"80:xyz", PortMapping{}, true},
		{"70000:80", PortMapping{}, true},
		{"80:80/sctp", PortMapping{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParsePortMapping(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestPortMapping_String verifies the "docker run -p" rendering.
func TestPortMapping_String(t *testing.T) {
	assert.Equal(t, "18080:8080/tcp", PortMapping{HostPort: 18080, ContainerPort: 8080}.String())
	assert.Equal(t, "53:53/udp", PortMapping{HostPort: 53, ContainerPort: 53, Protocol: "udp"}.String())
}

// TestLaunchRequest_CommandLine checks quoting of arguments with spaces.
func TestLaunchRequest_CommandLine(t *testing.T) {
	req := &LaunchRequest{Path: "python", Args: []string{"-m", "app", "hello world", ""}}
	assert.Equal(t, `python -m app "hello world" ""`, req.CommandLine())
}

// TestCLIError verifies error formatting, unwrapping, and kind matching.
func TestCLIError(t *testing.T) {
	underlying := fmt.Errorf("lock file missing")
	err := WrapCLIError(KindEnvironmentNotReady, StepEnvironment, "environment \".venv\" is not ready", underlying)

	assert.Equal(t, ExitLauncherFailure, err.Code)
	assert.Equal(t, `[EnvironmentNotReadyError] environment: environment ".venv" is not ready: lock file missing`, err.Error())
	assert.ErrorIs(t, err, underlying)
	assert.ErrorIs(t, err, ErrEnvironmentNotReady)
	assert.NotErrorIs(t, err, ErrConfiguration)

	// errors.As must find the CLIError through an extra wrapping layer.
	wrapped := fmt.Errorf("outer: %w", err)
	var cliErr *CLIError
	require.True(t, errors.As(wrapped, &cliErr))
	assert.Equal(t, StepEnvironment, cliErr.Step)
}

// TestNewCLIError_NoUnderlying checks the message without a cause.
func TestNewCLIError_NoUnderlying(t *testing.T) {
	err := NewCLIError(KindConfiguration, StepResolve, "execution mode is not set")
	assert.Equal(t, "[ConfigurationError] resolve: execution mode is not set", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.ErrorIs(t, err, ErrConfiguration)
}

// TestChildExit verifies the relayed child failure is a distinct type.
func TestChildExit(t *testing.T) {
	var err error = &ChildExit{Code: 137}
	var ce *ChildExit
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 137, ce.Code)

	var cliErr *CLIError
	assert.False(t, errors.As(err, &cliErr), "a child failure is not a launcher failure")
}
