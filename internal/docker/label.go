package docker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Label key constants. Labels are the only record of which containers a
// launch started; cleanup finds them by label, never by name.
//
// All keys share the "devlaunch." prefix to avoid collisions with labels
// set by other tools (Docker Compose, VS Code, etc.).
const (
	LabelPrefix = "devlaunch."

	// LabelManagedBy identifies containers started by devlaunch.
	// Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelSession stores the session ID of the launch that started the
	// container. Cleanup of a single run filters on it.
	LabelSession = LabelPrefix + "session"

	// LabelProject stores the absolute project directory.
	LabelProject = LabelPrefix + "project"

	// LabelBranch stores the git branch, if any.
	LabelBranch = LabelPrefix + "branch"

	// LabelPattern stores the image pattern ("image", "dockerfile", "compose").
	LabelPattern = LabelPrefix + "pattern"

	// LabelPortPrefix is the prefix for per-port labels:
	//   "devlaunch.port.5678" = "5678/tcp"
	LabelPortPrefix = LabelPrefix + "port."
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "devlaunch"

// BuildLabels constructs the label set applied to every container a
// launch request starts.
func BuildLabels(req *model.LaunchRequest) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSession:   req.SessionID,
	}
	if req.Branch != "" {
		labels[LabelBranch] = req.Branch
	}
	if req.Image != nil {
		if req.Image.ProjectDir != "" {
			labels[LabelProject] = req.Image.ProjectDir
		}
		labels[LabelPattern] = req.Image.Pattern.String()
		for _, p := range req.Image.Ports {
			labels[BuildPortLabel(p.ContainerPort)] = fmt.Sprintf("%d/%s", p.HostPort, protocolOf(p))
		}
	}
	return labels
}

// BuildPortLabel generates the label key for a container port:
//
//	BuildPortLabel(5678) → "devlaunch.port.5678"
func BuildPortLabel(containerPort int) string {
	return fmt.Sprintf("%s%d", LabelPortPrefix, containerPort)
}

// ParsePortLabels extracts the published ports recorded on a container.
// Returns an empty slice (not nil) if no port labels are found.
func ParsePortLabels(labels map[string]string) ([]model.PortMapping, error) {
	ports := make([]model.PortMapping, 0, 4)

	for key, value := range labels {
		if !strings.HasPrefix(key, LabelPortPrefix) {
			continue
		}

		containerPort, err := strconv.Atoi(strings.TrimPrefix(key, LabelPortPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid container port in label key %q: %w", key, err)
		}

		hostStr, proto, ok := strings.Cut(value, "/")
		if !ok {
			proto = "tcp"
		}
		hostPort, err := strconv.Atoi(hostStr)
		if err != nil {
			return nil, fmt.Errorf("invalid host port in label %q=%q: %w", key, value, err)
		}

		ports = append(ports, model.PortMapping{
			HostPort:      hostPort,
			ContainerPort: containerPort,
			Protocol:      proto,
		})
	}

	return ports, nil
}

// ManagedFilter returns the Docker API filter matching every container
// started by devlaunch.
func ManagedFilter() filters.Args {
	return filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)
}

// SessionFilter returns the Docker API filter matching the containers of a
// single launch.
func SessionFilter(sessionID string) filters.Args {
	return filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelSession+"="+sessionID),
	)
}

func protocolOf(p model.PortMapping) string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}
