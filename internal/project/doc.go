// Package project locates the project a launch belongs to.
//
// Git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git. Only read-only plumbing
// commands are used (rev-parse), so the exact behavior the user sees in
// their terminal is preserved.
//
// The project root anchors relative paths in the configuration: the
// config file, the virtualenv directory, the Dockerfile and the bind
// mount of containerized launches.
package project
