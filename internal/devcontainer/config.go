package devcontainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ErrNotFound is returned by FindDevContainerJSON when neither standard
// location holds a devcontainer.json.
var ErrNotFound = errors.New("devcontainer.json not found")

// RawDevContainer represents the raw JSON structure of a devcontainer.json
// file. Only the fields the launcher uses are included; other fields are
// silently ignored during parsing.
//
// Several fields use interface{} because the devcontainer.json spec allows
// multiple value types for the same field (e.g., dockerComposeFile can be a
// string or an array of strings).
type RawDevContainer struct {
	Name string `json:"name"`

	// Image is the Docker image to run as-is.
	Image string `json:"image,omitempty"`

	// Build specifies how to build the image from a Dockerfile.
	Build *BuildConfig `json:"build,omitempty"`

	// DockerComposeFile is the path(s) to Docker Compose file(s), either a
	// single string or an array of strings.
	DockerComposeFile interface{} `json:"dockerComposeFile,omitempty"`

	// Service is the Compose service the target runs in.
	Service string `json:"service,omitempty"`

	// WorkspaceFolder is where the project is mounted inside the container.
	WorkspaceFolder string `json:"workspaceFolder,omitempty"`

	// ForwardPorts lists ports to publish. Each element can be an integer
	// or a "service:port" string.
	ForwardPorts []interface{} `json:"forwardPorts,omitempty"`

	// AppPort is a single "host:container" string, an integer, or an
	// array of these.
	AppPort interface{} `json:"appPort,omitempty"`

	// ContainerEnv sets environment variables inside the container.
	ContainerEnv map[string]string `json:"containerEnv,omitempty"`

	// RunArgs are additional `docker run` arguments (image/dockerfile only).
	RunArgs []string `json:"runArgs,omitempty"`
}

// BuildConfig holds the Dockerfile build configuration.
type BuildConfig struct {
	// Dockerfile is the path to the Dockerfile, relative to devcontainer.json.
	Dockerfile string `json:"dockerfile,omitempty"`

	// Context is the build context, relative to devcontainer.json.
	Context string `json:"context,omitempty"`

	// Args are passed via --build-arg.
	Args map[string]string `json:"args,omitempty"`
}

// LoadConfig reads a devcontainer.json file, strips JSONC comments and
// trailing commas, and parses it into a RawDevContainer.
func LoadConfig(devcontainerPath string) (*RawDevContainer, error) {
	data, err := os.ReadFile(devcontainerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, devcontainerPath)
		}
		return nil, fmt.Errorf("failed to read devcontainer.json: %w", err)
	}

	var raw RawDevContainer
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse devcontainer.json at %s: %w", devcontainerPath, err)
	}

	return &raw, nil
}

// DetectPattern determines where the image comes from:
//  1. dockerComposeFile present → PatternCompose
//  2. build present → PatternDockerfile
//  3. otherwise → PatternImage
func DetectPattern(raw *RawDevContainer) model.ImagePattern {
	if raw.DockerComposeFile != nil {
		return model.PatternCompose
	}
	if raw.Build != nil {
		return model.PatternDockerfile
	}
	return model.PatternImage
}

// ExtractPorts collects published ports from forwardPorts and appPort.
//
// A bare port publishes the same number on the host. "service:port"
// entries in forwardPorts are kept only when service matches
// primaryService, since "compose run" publishes ports of one service.
// Duplicate container ports keep their first mapping. Unparseable entries
// are skipped; ValidateConfig reports them.
func ExtractPorts(raw *RawDevContainer, primaryService string) []model.PortMapping {
	var ports []model.PortMapping
	seen := make(map[int]bool)
	add := func(p model.PortMapping) {
		if seen[p.ContainerPort] {
			return
		}
		seen[p.ContainerPort] = true
		ports = append(ports, p)
	}

	for _, fp := range raw.ForwardPorts {
		switch v := fp.(type) {
		case float64:
			add(samePort(int(v)))
		case string:
			svc, portStr, hasService := strings.Cut(v, ":")
			if !hasService {
				portStr = svc
			} else if svc != primaryService {
				continue
			}
			if n, err := strconv.Atoi(portStr); err == nil {
				add(samePort(n))
			}
		}
	}

	for _, item := range appPortItems(raw.AppPort) {
		switch v := item.(type) {
		case float64:
			add(samePort(int(v)))
		case string:
			if p, err := model.ParsePortMapping(v); err == nil {
				add(p)
			}
		}
	}

	return ports
}

// appPortItems normalizes appPort to a slice.
func appPortItems(appPort interface{}) []interface{} {
	switch v := appPort.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

func samePort(n int) model.PortMapping {
	return model.PortMapping{HostPort: n, ContainerPort: n, Protocol: "tcp"}
}

// GetComposeFiles normalizes the dockerComposeFile field into a string
// slice. Returns nil if dockerComposeFile is not set.
func GetComposeFiles(raw *RawDevContainer) []string {
	switch v := raw.DockerComposeFile.(type) {
	case string:
		return []string{v}
	case []interface{}:
		files := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				files = append(files, s)
			}
		}
		return files
	default:
		return nil
	}
}

// FindDevContainerJSON searches for devcontainer.json in the standard
// locations within a project directory, in this order:
//  1. <projectPath>/.devcontainer/devcontainer.json
//  2. <projectPath>/.devcontainer.json
//
// Returns ErrNotFound if neither exists.
func FindDevContainerJSON(projectPath string) (string, error) {
	candidates := []string{
		filepath.Join(projectPath, ".devcontainer", "devcontainer.json"),
		filepath.Join(projectPath, ".devcontainer.json"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w in %s (searched .devcontainer/devcontainer.json and .devcontainer.json)", ErrNotFound, projectPath)
}
