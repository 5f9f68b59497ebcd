// Package model defines the domain types for the devlaunch CLI.
//
// All entities in this package are transient: they are derived from
// configuration at the start of an invocation and discarded when the
// launcher exits. None of them is ever persisted to disk.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ExecutionMode selects how the target application is run.
// It is read once per invocation and never changes afterwards.
//
// Every switch over ExecutionMode in this repository is exhaustive and
// ends with a default branch that reports an unknown mode, so adding a new
// mode forces each call site to be revisited.
type ExecutionMode string

const (
	// ModeLocal runs the target directly on the host, inside the
	// activated dependency environment.
	ModeLocal ExecutionMode = "local"

	// ModeContainerized runs the target inside a container image built
	// (if needed) by the container collaborator.
	ModeContainerized ExecutionMode = "containerized"
)

// String returns the string representation of ExecutionMode.
func (m ExecutionMode) String() string {
	return string(m)
}

// IsValid checks whether the ExecutionMode is one of the recognized modes.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeLocal, ModeContainerized:
		return true
	default:
		return false
	}
}

// ParseExecutionMode converts a raw configuration value to an ExecutionMode.
// Matching is case-insensitive and ignores surrounding whitespace.
//
// An empty value is an error: the launcher never guesses a mode, because
// silently picking the wrong runtime during a debugging session is worse
// than refusing to start.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("execution mode is not set (valid: local, containerized)")
	}
	mode := ExecutionMode(strings.ToLower(trimmed))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid execution mode: %q (valid: local, containerized)", s)
	}
	return mode, nil
}

// BuildPolicy controls when the container image is (re)built before a
// containerized launch.
type BuildPolicy string

const (
	// BuildAlways rebuilds the image on every launch.
	BuildAlways BuildPolicy = "always"

	// BuildIfMissing builds only when the image does not exist locally.
	BuildIfMissing BuildPolicy = "if-missing"

	// BuildIfStale builds when the image is missing or older than any of
	// its watched build inputs (Dockerfile, lock file, ...).
	BuildIfStale BuildPolicy = "if-stale"

	// BuildNever requires the image to already exist.
	BuildNever BuildPolicy = "never"
)

// DefaultBuildPolicy is used when no policy is configured.
const DefaultBuildPolicy = BuildIfStale

// String returns the string representation of BuildPolicy.
func (p BuildPolicy) String() string {
	return string(p)
}

// IsValid checks whether the BuildPolicy is one of the predefined values.
func (p BuildPolicy) IsValid() bool {
	switch p {
	case BuildAlways, BuildIfMissing, BuildIfStale, BuildNever:
		return true
	default:
		return false
	}
}

// ParseBuildPolicy converts a string to a BuildPolicy.
// An empty string yields DefaultBuildPolicy.
func ParseBuildPolicy(s string) (BuildPolicy, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return DefaultBuildPolicy, nil
	}
	policy := BuildPolicy(strings.ToLower(trimmed))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid build policy: %q (valid: always, if-missing, if-stale, never)", s)
	}
	return policy, nil
}

// LaunchState is a state of the launcher's one-shot state machine:
//
//	NotStarted → Resolving → EnvironmentReady → Running → Exited(code)
//	                 ↓               ↓              ↓
//	               Failed          Failed         Failed
//
// Exited and Failed are terminal. There is no restart transition.
type LaunchState string

const (
	StateNotStarted       LaunchState = "not-started"
	StateResolving        LaunchState = "resolving"
	StateEnvironmentReady LaunchState = "environment-ready"
	StateRunning          LaunchState = "running"
	StateExited           LaunchState = "exited"
	StateFailed           LaunchState = "failed"
)

// String returns the string representation of LaunchState.
func (s LaunchState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s LaunchState) IsTerminal() bool {
	return s == StateExited || s == StateFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s LaunchState) CanTransition(next LaunchState) bool {
	switch s {
	case StateNotStarted:
		return next == StateResolving
	case StateResolving:
		return next == StateEnvironmentReady || next == StateFailed
	case StateEnvironmentReady:
		return next == StateRunning || next == StateFailed
	case StateRunning:
		return next == StateExited || next == StateFailed
	default:
		return false
	}
}

// EnvironmentStrategy selects how the environment collaborator resolves
// an Environment Descriptor.
type EnvironmentStrategy string

const (
	// StrategyVenv treats the descriptor name as a virtualenv directory.
	StrategyVenv EnvironmentStrategy = "venv"

	// StrategyCommand asks an external tool (e.g. "pipenv --venv")
	// where the environment lives.
	StrategyCommand EnvironmentStrategy = "command"
)

// IsValid checks whether the strategy is one of the predefined values.
func (s EnvironmentStrategy) IsValid() bool {
	switch s {
	case StrategyVenv, StrategyCommand:
		return true
	default:
		return false
	}
}

// ParseEnvironmentStrategy converts a string to an EnvironmentStrategy.
// An empty string yields StrategyVenv.
func ParseEnvironmentStrategy(s string) (EnvironmentStrategy, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return StrategyVenv, nil
	}
	strategy := EnvironmentStrategy(strings.ToLower(trimmed))
	if !strategy.IsValid() {
		return "", fmt.Errorf("invalid environment strategy: %q (valid: venv, command)", s)
	}
	return strategy, nil
}

// EnvironmentDescriptor identifies the dependency environment the target
// must run inside. It must exist and be activatable before any child
// process starts.
type EnvironmentDescriptor struct {
	// Name is the environment identifier. For StrategyVenv it is a
	// directory path, relative paths being resolved against ProjectDir.
	Name string `json:"name"`

	// Strategy selects how Name is resolved.
	Strategy EnvironmentStrategy `json:"strategy"`

	// ProjectDir is the directory holding the dependency manifest.
	ProjectDir string `json:"projectDir"`

	// LockFile is the manifest lock file that must exist (e.g.
	// "Pipfile.lock"). Empty disables the check.
	LockFile string `json:"lockFile,omitempty"`

	// Probe is the command asked for the environment root under
	// StrategyCommand.
	Probe []string `json:"probe,omitempty"`

	// Setup is the explicit environment-creation command. It only runs
	// automatically when AutoSetup is true.
	Setup []string `json:"setup,omitempty"`

	// AutoSetup allows one Setup run after a failed activation.
	AutoSetup bool `json:"autoSetup"`
}

// ActivatedEnvironment is the result of a successful activation: the
// variables and PATH entries that make the environment active for a child.
type ActivatedEnvironment struct {
	Descriptor EnvironmentDescriptor `json:"descriptor"`

	// Root is the resolved environment directory. Empty for containerized
	// launches, where the image is the environment.
	Root string `json:"root,omitempty"`

	// Env holds variables to set in the child.
	Env map[string]string `json:"env,omitempty"`

	// Unset lists variables to remove from the inherited environment.
	Unset []string `json:"unset,omitempty"`

	// PathPrefix lists directories to prepend to PATH, in order.
	PathPrefix []string `json:"pathPrefix,omitempty"`
}

// ImagePattern describes where a container image comes from.
type ImagePattern string

const (
	// PatternImage runs a pre-built or pullable image as-is.
	PatternImage ImagePattern = "image"

	// PatternDockerfile builds the image from a Dockerfile.
	PatternDockerfile ImagePattern = "dockerfile"

	// PatternCompose runs a service from Docker Compose file(s).
	PatternCompose ImagePattern = "compose"
)

// String returns the string representation of ImagePattern.
func (p ImagePattern) String() string {
	return string(p)
}

// IsValid checks whether the pattern is one of the predefined values.
func (p ImagePattern) IsValid() bool {
	switch p {
	case PatternImage, PatternDockerfile, PatternCompose:
		return true
	default:
		return false
	}
}

// ImageSpec describes the container side of a containerized launch.
type ImageSpec struct {
	// Tag is the image reference to build and run.
	Tag string `json:"tag,omitempty"`

	// Pattern indicates how the image is obtained.
	Pattern ImagePattern `json:"pattern"`

	// Dockerfile and Context are absolute paths (PatternDockerfile).
	Dockerfile string `json:"dockerfile,omitempty"`
	Context    string `json:"context,omitempty"`

	// BuildArgs are passed as --build-arg K=V.
	BuildArgs map[string]string `json:"buildArgs,omitempty"`

	// ComposeFiles and Service are used with PatternCompose.
	ComposeFiles []string `json:"composeFiles,omitempty"`
	Service      string   `json:"service,omitempty"`

	// ProjectDir is bind-mounted at Workdir when Mount is true.
	ProjectDir string `json:"projectDir,omitempty"`
	Workdir    string `json:"workdir,omitempty"`
	Mount      bool   `json:"mount"`

	// Env holds variables passed with -e K=V.
	Env map[string]string `json:"env,omitempty"`

	// Ports are published with -p.
	Ports []PortMapping `json:"ports,omitempty"`

	// RunArgs are extra arguments inserted before the image reference.
	RunArgs []string `json:"runArgs,omitempty"`

	// WatchFiles are build inputs whose modification time marks the image
	// stale under BuildIfStale.
	WatchFiles []string `json:"watchFiles,omitempty"`

	// Policy decides whether the image is built before running.
	Policy BuildPolicy `json:"policy"`
}

// NeedsBuild reports whether the pattern has a build step at all.
func (s *ImageSpec) NeedsBuild() bool {
	return s.Pattern == PatternDockerfile
}

// PortMapping is a single published port, "hostPort:containerPort/protocol".
type PortMapping struct {
	HostPort      int    `json:"hostPort"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

// Validate checks port ranges and the protocol value.
func (p *PortMapping) Validate() error {
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port mapping: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.HostPort < 1 || p.HostPort > 65535 {
		return fmt.Errorf("port mapping: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port mapping: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String formats the mapping the way "docker run -p" expects it.
func (p PortMapping) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	return fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, proto)
}

// ParsePortMapping parses "8080", "8080:80" or "8080:80/udp".
// A bare port publishes the same number on host and container.
func ParsePortMapping(s string) (PortMapping, error) {
	raw := strings.TrimSpace(s)
	proto := "tcp"
	if before, after, ok := strings.Cut(raw, "/"); ok {
		raw, proto = before, strings.ToLower(after)
	}

	hostStr, containerStr, hasColon := strings.Cut(raw, ":")
	if !hasColon {
		containerStr = hostStr
	}

	host, err := strconv.Atoi(hostStr)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid host port in %q: %w", s, err)
	}
	container, err := strconv.Atoi(containerStr)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid container port in %q: %w", s, err)
	}

	pm := PortMapping{HostPort: host, ContainerPort: container, Protocol: proto}
	if err := pm.Validate(); err != nil {
		return PortMapping{}, err
	}
	return pm, nil
}

// LaunchRequest is the fully resolved, side-effect-free description of
// what to execute. It is built once and never mutated.
type LaunchRequest struct {
	Mode ExecutionMode `json:"mode"`

	// Path is the executable; Args excludes argv[0].
	Path string   `json:"path"`
	Args []string `json:"args"`

	// Dir is the working directory of the child on the host.
	Dir string `json:"dir"`

	// Env is the complete child environment as KEY=VALUE pairs.
	Env []string `json:"-"`

	// SessionID names the invocation. Containers started by a
	// containerized request carry it as a label.
	SessionID string `json:"sessionId"`

	// Branch is the git branch of the project, recorded on containers.
	Branch string `json:"branch,omitempty"`

	// Image is set for containerized requests. Its build step runs
	// before the child starts.
	Image *ImageSpec `json:"image,omitempty"`
}

// CommandLine renders the request as a single shell-like string for
// display purposes only.
func (r *LaunchRequest) CommandLine() string {
	parts := make([]string, 0, len(r.Args)+1)
	parts = append(parts, quoteArg(r.Path))
	for _, a := range r.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return strconv.Quote(s)
	}
	return s
}

// ContainerInfo represents a container managed by devlaunch, as reported
// by the Docker daemon.
type ContainerInfo struct {
	// ContainerID is the Docker container ID (full 64-char hex string).
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable container name, without the
	// leading "/" the API adds.
	ContainerName string `json:"containerName"`

	// SessionID is the devlaunch session the container belongs to.
	SessionID string `json:"sessionId"`

	// ServiceName is the Compose service, empty for plain docker run.
	ServiceName string `json:"serviceName,omitempty"`

	// Status is the container state reported by Docker (e.g. "running").
	Status string `json:"status"`

	// Labels holds all Docker labels on the container.
	Labels map[string]string `json:"labels,omitempty"`
}
