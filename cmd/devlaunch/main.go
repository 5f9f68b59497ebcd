// Package main is the entry point for the devlaunch CLI.
//
// devlaunch prepares a runtime for the target application and supervises
// it. All functionality lives in the internal/cli package, which defines
// the cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)" ./cmd/devlaunch
package main

import (
	"os"

	"github.com/mmr-tortoise/devlaunch/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Execute returns the child's exit code, or 250 when devlaunch
	// itself failed.
	rootCmd := cli.NewRootCommand(cli.DefaultDeps())
	os.Exit(cli.Execute(rootCmd))
}
