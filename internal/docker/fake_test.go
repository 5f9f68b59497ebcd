package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// fakeAPI is an in-memory apiClient. Containers are filtered by the
// "label" filter values so that tests exercise the real filter builders.
type fakeAPI struct {
	pingErr    error
	images     map[string]image.InspectResponse
	inspectErr error
	containers []container.Summary
	listErr    error
	removeErr  map[string]error

	removed []string
	closed  bool
}

func (f *fakeAPI) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, f.pingErr
}

func (f *fakeAPI) ImageInspect(_ context.Context, imageID string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	if f.inspectErr != nil {
		return image.InspectResponse{}, f.inspectErr
	}
	img, ok := f.images[imageID]
	if !ok {
		return image.InspectResponse{}, fmt.Errorf("No such image: %s: %w", imageID, cerrdefs.ErrNotFound)
	}
	return img, nil
}

func (f *fakeAPI) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []container.Summary
	for _, c := range f.containers {
		if matchesLabels(c.Labels, options.Filters.Get("label")) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) ContainerRemove(_ context.Context, containerID string, options container.RemoveOptions) error {
	if err := f.removeErr[containerID]; err != nil {
		return err
	}
	if !options.Force {
		return errors.New("fake only supports forced removal")
	}
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func matchesLabels(labels map[string]string, want []string) bool {
	for _, kv := range want {
		k, v, _ := strings.Cut(kv, "=")
		if labels[k] != v {
			return false
		}
	}
	return true
}
