// Package cli implements the cobra-based CLI commands for devlaunch.
//
// Each subcommand (run, plan, check, build, clean) is defined in its own
// file within this package. This file defines the root command that serves
// as the parent for all subcommands, handles global flags, and translates
// errors into exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/logging"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches command output, errors and logs to JSON.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// logger is configured from the global flags before any subcommand
	// runs. It always writes to stderr.
	logger = zerolog.Nop()
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// deps supplies everything the subcommands touch outside the process;
// pass DefaultDeps() in production.
func NewRootCommand(deps *Deps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devlaunch",
		Short: "Launch an application locally or in a container for debugging",
		Long: `devlaunch prepares a runtime for the target application and runs it,
either directly inside the project's dependency environment (local mode)
or inside a container image (containerized mode).

The child process owns the terminal while it runs. Its exit code is
relayed unchanged; devlaunch itself exits 250 when it fails before or
while starting the child.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// PersistentPreRun runs before every subcommand, after flags are
		// parsed, so the logger reflects --verbose and --json.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Options{
				Verbose: verbose,
				JSON:    jsonOutput,
				Out:     cmd.ErrOrStderr(),
			})
		},
	}

	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewRunCommand(deps))
	rootCmd.AddCommand(NewPlanCommand(deps))
	rootCmd.AddCommand(NewCheckCommand(deps))
	rootCmd.AddCommand(NewBuildCommand(deps))
	rootCmd.AddCommand(NewCleanCommand(deps))

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
// This is the main entry point called from main.go.
//
// A relayed child exit code is returned as-is and nothing is printed.
// CLIError values carry their own exit code and are printed with their
// kind and step. Any other error (such as an unknown flag) is a
// configuration error.
func Execute(rootCmd *cobra.Command) int {
	err := rootCmd.Execute()
	return handleError(rootCmd.ErrOrStderr(), err)
}

func handleError(w io.Writer, err error) int {
	if err == nil {
		return int(model.ExitSuccess)
	}

	var childExit *model.ChildExit
	if errors.As(err, &childExit) {
		return childExit.Code
	}

	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) {
		cliErr = model.NewCLIError(model.KindConfiguration, model.StepResolve, err.Error())
	}
	printError(w, cliErr)
	return int(cliErr.Code)
}

// printError outputs an error in the appropriate format (JSON or text)
// based on the --json global flag.
func printError(w io.Writer, cliErr *model.CLIError) {
	if jsonOutput {
		// Errors go to stderr even in JSON mode, because stdout is
		// reserved for successful command output.
		body := map[string]interface{}{
			"kind":    cliErr.Kind,
			"step":    cliErr.Step,
			"message": cliErr.Message,
		}
		if cliErr.Err != nil {
			body["detail"] = cliErr.Err.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"error": body}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	// Text format: "Error: [Kind] step: message: cause" on stderr. The
	// renderer is bound to w so color is only used on a terminal.
	prefix := lipgloss.NewRenderer(w).NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")).
		Render("Error:")
	fmt.Fprintf(w, "%s %s\n", prefix, cliErr.Error())
}

// VerboseLog writes a debug message through the logger. It only shows
// with --verbose (or DEVLAUNCH_LOG_LEVEL=debug).
func VerboseLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
