package model

import (
	"errors"
	"fmt"
)

// ExitCode defines the exit codes the launcher itself produces.
// Child exit codes are relayed unchanged and are not represented here.
type ExitCode int

const (
	// ExitSuccess indicates the child exited with code 0, or a non-run
	// command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitLauncherFailure is reserved for launcher-internal failures
	// (configuration, environment-not-ready, launch-error). It sits above
	// the 128+signal range and away from the codes shells and docker use
	// (125-127), so it cannot be confused with a child's own exit code.
	ExitLauncherFailure ExitCode = 250
)

// ErrorKind classifies launcher-internal failures.
type ErrorKind string

const (
	// KindConfiguration covers a bad or missing mode or target.
	KindConfiguration ErrorKind = "ConfigurationError"

	// KindEnvironmentNotReady covers a missing or unactivatable
	// dependency environment (or container runtime).
	KindEnvironmentNotReady ErrorKind = "EnvironmentNotReadyError"

	// KindLaunch covers a child process that could not be started,
	// including a failed image build.
	KindLaunch ErrorKind = "LaunchError"
)

// Sentinel errors for use with errors.Is. A *CLIError matches the
// sentinel of its Kind.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrEnvironmentNotReady = errors.New("environment not ready")
	ErrLaunch              = errors.New("launch error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindEnvironmentNotReady:
		return ErrEnvironmentNotReady
	case KindLaunch:
		return ErrLaunch
	default:
		return nil
	}
}

// Step names the launcher step an error came from.
type Step string

const (
	StepResolve     Step = "resolve"
	StepEnvironment Step = "environment"
	StepRequest     Step = "request"
	StepBuild       Step = "build"
	StepLaunch      Step = "launch"
	StepCleanup     Step = "cleanup"
)

// CLIError is a custom error type that carries an exit code together with
// the error kind and the step that failed. This allows the CLI layer to
// translate domain errors into the reserved exit code and a tagged message.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Kind is the error classification.
	Kind ErrorKind

	// Step is the launcher step that failed.
	Step Step

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
// Format: "[Kind] step: message: underlying".
func (e *CLIError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Step, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's Kind.
func (e *CLIError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewCLIError creates a new CLIError with the reserved failure exit code.
func NewCLIError(kind ErrorKind, step Step, message string) *CLIError {
	return &CLIError{Code: ExitLauncherFailure, Kind: kind, Step: step, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(kind ErrorKind, step Step, message string, err error) *CLIError {
	return &CLIError{Code: ExitLauncherFailure, Kind: kind, Step: step, Message: message, Err: err}
}

// ChildExit reports that the child ran and exited with a non-zero code.
// It is not a launcher failure: the CLI relays Code verbatim and prints
// nothing.
type ChildExit struct {
	Code int
}

func (e *ChildExit) Error() string {
	return fmt.Sprintf("child exited with code %d", e.Code)
}
