// Package cli: plan.go implements the "devlaunch plan" command.
//
// plan runs every step up to, but not including, the build and the child:
// it shows exactly what "run" would execute.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/launcher"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand(deps *Deps) *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "plan [flags] [-- args...]",
		Short: "Show the launch request without starting anything",
		Long: `Resolve the execution mode, ensure the environment and print the
resulting launch request. No image is built and no process is started.

Examples:
  devlaunch plan --mode local -- python -m app
  devlaunch plan --mode containerized --json`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps, flags)
			if err != nil {
				return err
			}

			l, release := deps.NewLauncher(cfg, logger)
			defer release()

			plan, err := l.Prepare(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)
	addLaunchFlags(cmd, flags)

	return cmd
}

// planJSON is the JSON output of the plan command. The request is
// flattened so the full command line is visible as an argv array.
type planJSON struct {
	Mode        model.ExecutionMode        `json:"mode"`
	SessionID   string                     `json:"sessionId"`
	Dir         string                     `json:"dir"`
	Command     []string                   `json:"command"`
	Environment model.ActivatedEnvironment `json:"environment"`
	Image       *model.ImageSpec           `json:"image,omitempty"`
}

func printPlan(w io.Writer, plan *launcher.Plan) {
	req := plan.Request
	if IsJSONOutput() {
		out := planJSON{
			Mode:        plan.Mode,
			SessionID:   req.SessionID,
			Dir:         req.Dir,
			Command:     append([]string{req.Path}, req.Args...),
			Environment: plan.Environment,
			Image:       plan.Image,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	s := newStyles(w)
	rows := [][2]string{
		{"Mode", plan.Mode.String()},
		{"Session", req.SessionID},
		{"Directory", req.Dir},
	}
	rows = append(rows, environmentRows(plan)...)
	rows = append(rows, [2]string{"Command", req.CommandLine()})
	s.printRows(w, rows)
}

// environmentRows describes what the child runs inside.
func environmentRows(plan *launcher.Plan) [][2]string {
	switch plan.Mode {
	case model.ModeLocal:
		return [][2]string{{"Environment", plan.Environment.Root}}
	case model.ModeContainerized:
		img := plan.Image
		if img == nil {
			return nil
		}
		source := img.Tag
		if img.Pattern == model.PatternCompose {
			source = "service " + img.Service
		}
		rows := [][2]string{
			{"Image", fmt.Sprintf("%s (%s, build policy %s)", source, img.Pattern, img.Policy)},
		}
		if len(img.Ports) > 0 {
			ports := make([]string, len(img.Ports))
			for i, p := range img.Ports {
				ports[i] = p.String()
			}
			rows = append(rows, [2]string{"Ports", strings.Join(ports, ", ")})
		}
		return rows
	default:
		return nil
	}
}
