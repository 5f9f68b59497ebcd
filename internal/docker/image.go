package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	cerrdefs "github.com/containerd/errdefs"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ErrImageMissing is returned when the build policy forbids building and
// the image does not exist locally.
var ErrImageMissing = errors.New("image not found locally")

// ImageState describes what the daemon knows about an image.
type ImageState struct {
	Exists  bool
	Created time.Time
}

// InspectImage reports whether tag exists locally and when it was created.
// A missing image is not an error.
func (c *Client) InspectImage(ctx context.Context, tag string) (ImageState, error) {
	resp, err := c.inner.ImageInspect(ctx, tag)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ImageState{}, nil
		}
		return ImageState{}, fmt.Errorf("failed to inspect image %q: %w", tag, err)
	}

	state := ImageState{Exists: true}
	if resp.Created != "" {
		created, err := time.Parse(time.RFC3339Nano, resp.Created)
		if err != nil {
			return ImageState{}, fmt.Errorf("invalid creation time %q for image %q: %w", resp.Created, tag, err)
		}
		state.Created = created
	}
	return state, nil
}

// NewestModTime returns the latest modification time among files.
// Missing files are skipped; the second result is false if none exist.
func NewestModTime(files []string) (time.Time, bool) {
	var (
		newest time.Time
		found  bool
	)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !found || info.ModTime().After(newest) {
			newest = info.ModTime()
			found = true
		}
	}
	return newest, found
}

// BuildDecision is the outcome of DecideBuild.
type BuildDecision struct {
	Build  bool
	Reason string
}

// DecideBuild applies a build policy to the current image state. newest is
// the latest modification time of the watched build inputs, if any exist.
//
// It never touches the daemon or the filesystem, so every policy can be
// tested in isolation.
func DecideBuild(policy model.BuildPolicy, state ImageState, newest time.Time, haveInputs bool) (BuildDecision, error) {
	switch policy {
	case model.BuildAlways:
		return BuildDecision{Build: true, Reason: "build policy is always"}, nil

	case model.BuildNever:
		if !state.Exists {
			return BuildDecision{}, fmt.Errorf("%w and build policy is never", ErrImageMissing)
		}
		return BuildDecision{Reason: "build policy is never"}, nil

	case model.BuildIfMissing:
		if !state.Exists {
			return BuildDecision{Build: true, Reason: "image does not exist"}, nil
		}
		return BuildDecision{Reason: "image exists"}, nil

	case model.BuildIfStale, "":
		if !state.Exists {
			return BuildDecision{Build: true, Reason: "image does not exist"}, nil
		}
		if haveInputs && !state.Created.IsZero() && newest.After(state.Created) {
			return BuildDecision{Build: true, Reason: "build inputs changed since the image was created"}, nil
		}
		return BuildDecision{Reason: "image is up to date"}, nil

	default:
		return BuildDecision{}, fmt.Errorf("unknown build policy: %q", policy)
	}
}

// BuildArgs returns the docker CLI arguments for building spec.
func BuildArgs(spec *model.ImageSpec) []string {
	args := []string{"build", "-t", spec.Tag}
	if spec.Dockerfile != "" {
		args = append(args, "-f", spec.Dockerfile)
	}
	for _, k := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", k+"="+spec.BuildArgs[k])
	}
	ctxDir := spec.Context
	if ctxDir == "" {
		ctxDir = "."
	}
	args = append(args, ctxDir)
	return args
}

// ComposeBuildArgs returns the docker CLI arguments for building the
// service image of a compose spec.
func ComposeBuildArgs(spec *model.ImageSpec, project string) []string {
	args := buildComposeArgs(project, spec.ComposeFiles)
	return append(args, "build", spec.Service)
}
