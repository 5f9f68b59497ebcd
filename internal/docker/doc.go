// Package docker is the container collaborator of the launcher.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Image build decisions (build policy, staleness against watch files)
//     and "docker build" / "docker compose build" execution
//   - "docker run" and "docker compose run" argument construction
//   - Session labels and label-based cleanup of containers, so that no
//     container outlives the invocation that started it
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
// Interactive runs go through the docker CLI because the SDK has no
// equivalent of attaching the caller's terminal to a container.
package docker
