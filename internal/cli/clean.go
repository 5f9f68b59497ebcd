// Package cli: clean.go implements the "devlaunch clean" command.
//
// A containerized run removes its own containers on exit. clean exists
// for the cases that never reach that point, such as a launcher killed
// with SIGKILL: it removes every container labelled
// "devlaunch.managed-by=devlaunch".
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// dryRun lists what would be removed without removing it.
	dryRun bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand(deps *Deps) *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover devlaunch containers",
		Long: `Remove every container started by devlaunch that is still present,
running or not.

Examples:
  devlaunch clean
  devlaunch clean --dry-run --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd.OutOrStdout(), deps, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "List containers without removing them")

	return cmd
}

// runClean is the main logic function for the clean command.
func runClean(ctx context.Context, w io.Writer, deps *Deps, flags *cleanFlags) error {
	rt := deps.NewRuntime(logger)
	defer func() { _ = rt.Close() }()

	containers, err := rt.CleanupAll(ctx, flags.dryRun)
	if err != nil {
		return classify(err, model.KindEnvironmentNotReady, model.StepCleanup, "failed to remove containers")
	}
	containers = orderBySession(containers)
	VerboseLog("Found %d managed container(s)", len(containers))

	printCleanResult(w, containers, flags.dryRun)
	return nil
}

// orderBySession sorts containers by session ID, keeping the daemon's
// order within a session.
func orderBySession(containers []model.ContainerInfo) []model.ContainerInfo {
	groups := docker.GroupContainersBySession(containers)
	ordered := make([]model.ContainerInfo, 0, len(containers))
	for _, id := range docker.SortedSessionIDs(groups) {
		ordered = append(ordered, groups[id]...)
	}
	for _, c := range containers {
		if c.SessionID == "" {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func printCleanResult(w io.Writer, containers []model.ContainerInfo, dryRun bool) {
	if IsJSONOutput() {
		out := struct {
			DryRun     bool                  `json:"dryRun"`
			Containers []model.ContainerInfo `json:"containers"`
		}{dryRun, containers}
		if out.Containers == nil {
			// Show [] rather than null when nothing was found.
			out.Containers = []model.ContainerInfo{}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if len(containers) == 0 {
		fmt.Fprintln(w, "No devlaunch containers found.")
		return
	}
	fmt.Fprint(w, FormatContainerTable(containers))
	if dryRun {
		fmt.Fprintf(w, "%d container(s) would be removed.\n", len(containers))
		return
	}
	fmt.Fprintf(w, "Removed %d container(s).\n", len(containers))
}
