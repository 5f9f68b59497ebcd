// Package cli: build.go implements the "devlaunch build" command.
//
// build runs only the image build step of a containerized launch. Unlike
// run, it defaults to the "always" build policy.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/docker"
	"github.com/mmr-tortoise/devlaunch/internal/launcher"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand(deps *Deps) *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the container image",
		Long: `Build the image a containerized launch would run, without running it.

The build policy is "always" unless --build-policy is given. Build output
is streamed to stderr.

Examples:
  devlaunch build
  devlaunch build --build-policy if-stale`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd, deps, flags)
		},
	}

	addLaunchFlags(cmd, flags)

	return cmd
}

// runBuild is the main logic function for the build command.
func runBuild(ctx context.Context, cmd *cobra.Command, deps *Deps, flags *launchFlags) error {
	// Step 1: Load configuration. The policy flag, when given, wins over
	// everything; otherwise the build is forced.
	if !cmd.Flags().Changed("build-policy") {
		flags.buildPolicy = string(model.BuildAlways)
	}
	cfg, err := loadConfig(cmd, deps, flags)
	if err != nil {
		return err
	}

	// Step 2: Resolve the image spec from config or devcontainer.json.
	spec, err := cfg.ImageSpec(launcher.ImageTagBase(cfg.ProjectDir))
	if err != nil {
		return err
	}
	VerboseLog("Image pattern: %s, tag: %q", spec.Pattern, spec.Tag)

	// Step 3: Check the daemon and build inputs, then build.
	rt := deps.NewRuntime(logger)
	defer func() { _ = rt.Close() }()

	if err := rt.Preflight(ctx, spec); err != nil {
		return classify(err, model.KindEnvironmentNotReady, model.StepEnvironment, "container runtime is not ready")
	}
	decision, err := rt.BuildIfNeeded(ctx, spec)
	if err != nil {
		return classify(err, model.KindLaunch, model.StepBuild, fmt.Sprintf("failed to build image %s", spec.Tag))
	}

	// Step 4: Report.
	printBuildResult(cmd, spec, decision)
	return nil
}

func printBuildResult(cmd *cobra.Command, spec *model.ImageSpec, decision docker.BuildDecision) {
	w := cmd.OutOrStdout()
	if IsJSONOutput() {
		out := struct {
			Image   string             `json:"image,omitempty"`
			Pattern model.ImagePattern `json:"pattern"`
			Built   bool               `json:"built"`
			Reason  string             `json:"reason"`
		}{spec.Tag, spec.Pattern, decision.Build, decision.Reason}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	name := spec.Tag
	if spec.Pattern == model.PatternCompose {
		name = "service " + spec.Service
	}
	s := newStyles(w)
	if decision.Build {
		fmt.Fprintf(w, "%s built %s %s\n", s.ok.Render("✓"), name, s.muted.Render("("+decision.Reason+")"))
		return
	}
	fmt.Fprintf(w, "%s %s not rebuilt %s\n", s.ok.Render("✓"), name, s.muted.Render("("+decision.Reason+")"))
}

// classify keeps an existing *model.CLIError and wraps anything else.
func classify(err error, kind model.ErrorKind, step model.Step, msg string) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(kind, step, msg, err)
}
