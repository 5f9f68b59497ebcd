package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devlaunch/internal/config"
	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// launchFlags are the configuration flags shared by run, plan, check and
// build. They override the config file and DEVLAUNCH_* variables.
type launchFlags struct {
	configPath  string
	mode        string
	target      string
	envName     string
	buildPolicy string
	image       string
	gracePeriod time.Duration
	autoSetup   bool
}

func addLaunchFlags(cmd *cobra.Command, f *launchFlags) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default: devlaunch.toml, devlaunch.yaml or devlaunch.yml in the project root)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Execution mode: local or containerized (required unless configured)")
	cmd.Flags().StringVar(&f.target, "target", "", "Command to launch, split with shell quoting rules")
	cmd.Flags().StringVar(&f.envName, "env-name", "", "Dependency environment to activate (local mode)")
	cmd.Flags().StringVar(&f.buildPolicy, "build-policy", "", "Image build policy: always, if-missing, if-stale, never")
	cmd.Flags().StringVar(&f.image, "image", "", "Container image to run (containerized mode)")
	cmd.Flags().DurationVar(&f.gracePeriod, "grace-period", 0, "Time an interrupted child gets before it is killed (default 10s)")
	cmd.Flags().BoolVar(&f.autoSetup, "auto-setup", false, "Run the environment setup command once if activation fails")
}

// loadConfig resolves the project root and merges every configuration
// layer, with cmd's flags on top.
func loadConfig(cmd *cobra.Command, deps *Deps, f *launchFlags) (*config.Config, error) {
	cwd, err := deps.Getwd()
	if err != nil {
		return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve, "failed to get current directory", err)
	}

	// The project root is the Git top level when there is one, so the
	// config file is found from any subdirectory.
	info, err := deps.Locate(cwd)
	if err != nil {
		return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve, "failed to resolve project root", err)
	}
	VerboseLog("Project root: %s (git: %t, branch: %q)", info.Root, info.InRepo, info.Branch)

	overrides := config.Overrides{
		Mode:        f.mode,
		Target:      f.target,
		EnvName:     f.envName,
		BuildPolicy: f.buildPolicy,
		Image:       f.image,
		GracePeriod: f.gracePeriod,
	}
	if cmd.Flags().Changed("auto-setup") {
		v := f.autoSetup
		overrides.AutoSetup = &v
	}
	if cmd.Flags().Changed("grace-period") && f.gracePeriod <= 0 {
		return nil, model.NewCLIError(model.KindConfiguration, model.StepResolve, "--grace-period must be positive")
	}

	cfg, err := config.Load(config.Options{
		ProjectDir: info.Root,
		ConfigPath: f.configPath,
		Overrides:  overrides,
		Getenv:     deps.Getenv,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		VerboseLog("Loaded config file: %s", cfg.Source)
	}
	return cfg, nil
}
