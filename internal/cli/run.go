// Package cli: run.go implements the "devlaunch run" command.
//
// The run command is the full launch: resolve the execution mode, ensure
// the environment, build the launch request, build the image if the policy
// asks for it, then run the child until it exits. Its exit code becomes
// devlaunch's exit code.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand(deps *Deps) *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- args...]",
		Short: "Prepare the environment and run the target",
		Long: `Prepare the runtime and run the target application in the foreground.

The child process gets the terminal directly. Interrupt and termination
signals are forwarded to it, and devlaunch waits for it to exit. Arguments
after the flags are appended to the configured target.

Examples:
  devlaunch run --mode local -- python -m app --debug
  DEVLAUNCH_MODE=containerized devlaunch run
  devlaunch run --mode containerized --image python:3.10 -- pytest -x`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, deps, flags, args)
		},
	}

	// Stop flag parsing at the first positional argument so the target's
	// own flags are passed through untouched.
	cmd.Flags().SetInterspersed(false)
	addLaunchFlags(cmd, flags)

	return cmd
}

// runRun is the main logic function for the run command.
func runRun(cmd *cobra.Command, deps *Deps, flags *launchFlags, args []string) error {
	// Step 1: Merge configuration from defaults, file, environment and flags.
	cfg, err := loadConfig(cmd, deps, flags)
	if err != nil {
		return err
	}

	// Step 2: Launch. Launch only returns a nil error for a zero exit;
	// a non-zero child exit comes back as *model.ChildExit.
	l, release := deps.NewLauncher(cfg, logger)
	defer release()

	_, err = l.Launch(cmd.Context(), cfg, args)
	return err
}
