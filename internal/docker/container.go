// container.go implements discovery and removal of containers started by
// devlaunch.
//
// Containers are found by label only. A plain "docker run --rm" container
// normally removes itself, but a launcher killed at the wrong moment, or a
// daemon that loses the attach stream, can leave one behind. Cleanup
// therefore force-removes whatever still carries the session label.
package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ListManagedContainers returns every container (running or stopped) that
// carries the devlaunch managed-by label.
func (c *Client) ListManagedContainers(ctx context.Context) ([]model.ContainerInfo, error) {
	return c.listContainers(ctx, ManagedFilter())
}

// ListSessionContainers returns the containers of a single launch.
func (c *Client) ListSessionContainers(ctx context.Context, sessionID string) ([]model.ContainerInfo, error) {
	return c.listContainers(ctx, SessionFilter(sessionID))
}

func (c *Client) listContainers(ctx context.Context, f filters.Args) ([]model.ContainerInfo, error) {
	// All includes stopped containers: an exited container that was not
	// auto-removed still counts as a leftover.
	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Docker containers: %w", err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, s := range containers {
		result = append(result, containerToInfo(s))
	}
	return result, nil
}

// containerToInfo converts a Docker API container summary to a
// ContainerInfo. Docker returns names with a leading "/" which is stripped.
func containerToInfo(s container.Summary) model.ContainerInfo {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   s.ID,
		ContainerName: name,
		SessionID:     s.Labels[LabelSession],
		ServiceName:   s.Labels["com.docker.compose.service"],
		Status:        s.State,
		Labels:        s.Labels,
	}
}

// GroupContainersBySession groups containers by their session label.
// Containers without one are skipped.
func GroupContainersBySession(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)
	for _, c := range containers {
		if c.SessionID == "" {
			continue
		}
		groups[c.SessionID] = append(groups[c.SessionID], c)
	}
	return groups
}

// SortedSessionIDs returns the keys of a grouping in lexical order.
func SortedSessionIDs(groups map[string][]model.ContainerInfo) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemoveContainer force-removes a container, killing it first if it is
// running. A container that is already gone is not an error.
func (c *Client) RemoveContainer(ctx context.Context, containerID string) error {
	err := c.inner.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %q: %w", containerID, err)
	}
	return nil
}

// RemoveContainers removes each container and returns the ones actually
// processed. It keeps going after a failure and returns the first error.
func (c *Client) RemoveContainers(ctx context.Context, containers []model.ContainerInfo) ([]model.ContainerInfo, error) {
	var (
		removed  []model.ContainerInfo
		firstErr error
	)
	for _, ci := range containers {
		if err := c.RemoveContainer(ctx, ci.ContainerID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, ci)
	}
	return removed, firstErr
}
