// Package devcontainer derives a container image spec from a project's
// devcontainer.json.
//
// The devcontainer.json specification supports JSONC (JSON with Comments),
// so this package uses github.com/tidwall/jsonc to strip comments before
// parsing with the standard encoding/json library. Compose files are read
// with gopkg.in/yaml.v3 to check that the configured service exists.
//
// Key responsibilities:
//   - Locate devcontainer.json in standard paths
//   - Detect the configuration pattern (image / dockerfile / compose)
//   - Extract published ports, container env and run args
//   - Resolve every path relative to the devcontainer.json directory
package devcontainer
