// Package cli: check.go implements the "devlaunch check" command.
//
// check answers "could I launch right now?": it resolves the mode and
// ensures the environment, and needs no target.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/launcher"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand(deps *Deps) *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that the environment is ready",
		Long: `Resolve the execution mode and check the environment: the dependency
environment in local mode, or the Docker daemon, build inputs and host
ports in containerized mode. Exits 0 when ready and 250 otherwise.

Examples:
  devlaunch check --mode local
  devlaunch check --mode containerized --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps, flags)
			if err != nil {
				return err
			}

			l, release := deps.NewLauncher(cfg, logger)
			defer release()

			plan, err := l.Check(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printCheck(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	addLaunchFlags(cmd, flags)

	return cmd
}

func printCheck(w io.Writer, plan *launcher.Plan) {
	if IsJSONOutput() {
		out := struct {
			Ready       bool                       `json:"ready"`
			Mode        model.ExecutionMode        `json:"mode"`
			Environment model.ActivatedEnvironment `json:"environment"`
			Image       *model.ImageSpec           `json:"image,omitempty"`
		}{true, plan.Mode, plan.Environment, plan.Image}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	s := newStyles(w)
	fmt.Fprintf(w, "%s %s mode is ready\n", s.ok.Render("✓"), plan.Mode)
	s.printRows(w, environmentRows(plan))
}
