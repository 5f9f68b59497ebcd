// Package model defines the domain types and value objects for the
// devlaunch CLI.
//
// This package contains pure data structures with no external dependencies.
// Every entity (LaunchRequest, ActivatedEnvironment, ImageSpec, etc.) lives
// for exactly one invocation of the launcher; nothing is persisted.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries the error kind, the failing step, and the exit
// code used for launcher-internal failures.
package model
