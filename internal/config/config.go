package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Environment variable names read by Load.
const (
	EnvMode        = "DEVLAUNCH_MODE"
	EnvTarget      = "DEVLAUNCH_TARGET"
	EnvEnvName     = "DEVLAUNCH_ENV_NAME"
	EnvBuildPolicy = "DEVLAUNCH_BUILD_POLICY"
	EnvImage       = "DEVLAUNCH_IMAGE"
	EnvGracePeriod = "DEVLAUNCH_GRACE_PERIOD"
	EnvAutoSetup   = "DEVLAUNCH_AUTO_SETUP"
	EnvConfig      = "DEVLAUNCH_CONFIG"
)

// DefaultGracePeriod is how long an interrupted child gets before SIGKILL.
const DefaultGracePeriod = 10 * time.Second

// DefaultWorkdir is where the project is mounted inside the container when
// container.workdir is not set.
const DefaultWorkdir = "/workspace"

// fileNames are searched in the project root, in order.
var fileNames = []string{"devlaunch.toml", "devlaunch.yaml", "devlaunch.yml"}

// Config is the merged launcher configuration.
//
// Mode is kept as the raw string: deciding whether it is valid belongs to
// the launcher's resolve step, which must fail rather than default.
type Config struct {
	// Mode is the raw execution mode value, possibly empty.
	Mode string `json:"mode"`

	// Target is the command to launch, argv style.
	Target []string `json:"target"`

	// ProjectDir is the project root all relative paths resolve against.
	ProjectDir string `json:"projectDir"`

	// GracePeriod bounds how long an interrupted child may take to exit.
	GracePeriod time.Duration `json:"gracePeriod"`

	Environment EnvironmentConfig `json:"environment"`
	Container   ContainerConfig   `json:"container"`

	// Source is the config file that was loaded, empty if none.
	Source string `json:"source,omitempty"`
}

// EnvironmentConfig configures the dependency environment used in local mode.
type EnvironmentConfig struct {
	Name      string   `json:"name"`
	Strategy  string   `json:"strategy"`
	LockFile  string   `json:"lockFile,omitempty"`
	Probe     []string `json:"probe,omitempty"`
	Setup     []string `json:"setup,omitempty"`
	AutoSetup bool     `json:"autoSetup"`
}

// ContainerConfig configures containerized launches. When Image, Dockerfile
// and ComposeFiles are all empty, .devcontainer/devcontainer.json is used.
type ContainerConfig struct {
	Image        string            `json:"image,omitempty"`
	Dockerfile   string            `json:"dockerfile,omitempty"`
	Context      string            `json:"context,omitempty"`
	BuildArgs    map[string]string `json:"buildArgs,omitempty"`
	BuildPolicy  string            `json:"buildPolicy,omitempty"`
	ComposeFiles []string          `json:"composeFiles,omitempty"`
	Service      string            `json:"service,omitempty"`

	// Workdir is the working directory inside the container. Empty keeps
	// the image's or service's own, except when the project is mounted,
	// where it defaults to DefaultWorkdir.
	Workdir string `json:"workdir,omitempty"`

	Mount      bool              `json:"mount"`
	Env        map[string]string `json:"env,omitempty"`
	Ports      []string          `json:"ports,omitempty"`
	RunArgs    []string          `json:"runArgs,omitempty"`
	WatchFiles []string          `json:"watchFiles,omitempty"`
}

// Overrides holds command-line flag values. Zero values mean "not set".
type Overrides struct {
	Mode        string
	Target      string
	EnvName     string
	BuildPolicy string
	Image       string
	GracePeriod time.Duration
	AutoSetup   *bool
}

// Options controls Load.
type Options struct {
	// ProjectDir is the directory searched for a config file.
	ProjectDir string

	// ConfigPath is an explicit config file (--config). It takes
	// precedence over DEVLAUNCH_CONFIG.
	ConfigPath string

	// Overrides are flag values applied last.
	Overrides Overrides

	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Default returns the built-in configuration for a project directory.
func Default(projectDir string) *Config {
	return &Config{
		ProjectDir:  projectDir,
		GracePeriod: DefaultGracePeriod,
		Environment: EnvironmentConfig{
			Name:     ".venv",
			Strategy: string(model.StrategyVenv),
			Probe:    []string{"pipenv", "--venv"},
			Setup:    []string{"pipenv", "install", "--dev"},
		},
		Container: ContainerConfig{
			Context: ".",
			Mount:   true,
		},
	}
}

// Load builds the configuration from every layer. Any failure is a
// ConfigurationError at the resolve step.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Default(opts.ProjectDir)

	path, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		if p := strings.TrimSpace(getenv(EnvConfig)); p != "" {
			path, explicit = p, true
		}
	}
	if explicit && !filepath.IsAbs(path) {
		path = filepath.Join(opts.ProjectDir, path)
	}
	if !explicit {
		found, err := findConfigFile(opts.ProjectDir)
		if err != nil {
			return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
				"failed to search for config file", err)
		}
		path = found
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
				fmt.Sprintf("failed to load config file %s", path), err)
		}
		cfg.Source = path
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
			"invalid environment variable", err)
	}

	if err := applyOverrides(cfg, opts.Overrides); err != nil {
		return nil, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
			"invalid flag value", err)
	}

	if cfg.GracePeriod <= 0 {
		return nil, model.NewCLIError(model.KindConfiguration, model.StepResolve,
			fmt.Sprintf("grace period must be positive, got %s", cfg.GracePeriod))
	}

	return cfg, nil
}

// findConfigFile returns the first known config file in dir, or "".
func findConfigFile(dir string) (string, error) {
	for _, name := range fileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvMode)); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(getenv(EnvTarget)); v != "" {
		target, err := splitCommand(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTarget, err)
		}
		cfg.Target = target
	}
	if v := strings.TrimSpace(getenv(EnvEnvName)); v != "" {
		cfg.Environment.Name = v
	}
	if v := strings.TrimSpace(getenv(EnvBuildPolicy)); v != "" {
		cfg.Container.BuildPolicy = v
	}
	if v := strings.TrimSpace(getenv(EnvImage)); v != "" {
		cfg.Container.Image = v
	}
	if v := strings.TrimSpace(getenv(EnvGracePeriod)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGracePeriod, err)
		}
		cfg.GracePeriod = d
	}
	if v, ok := parseBool(getenv(EnvAutoSetup)); ok {
		cfg.Environment.AutoSetup = v
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	if v := strings.TrimSpace(o.Mode); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(o.Target); v != "" {
		target, err := splitCommand(v)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		cfg.Target = target
	}
	if v := strings.TrimSpace(o.EnvName); v != "" {
		cfg.Environment.Name = v
	}
	if v := strings.TrimSpace(o.BuildPolicy); v != "" {
		cfg.Container.BuildPolicy = v
	}
	if v := strings.TrimSpace(o.Image); v != "" {
		cfg.Container.Image = v
	}
	if o.GracePeriod != 0 {
		cfg.GracePeriod = o.GracePeriod
	}
	if o.AutoSetup != nil {
		cfg.Environment.AutoSetup = *o.AutoSetup
	}
	return nil
}

// splitCommand splits a command line the way a POSIX shell would, honouring
// quotes and backslash escapes. Variables and backticks are left as
// literal text, and shell operators are rejected: the target is never run
// through a shell.
func splitCommand(line string) ([]string, error) {
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false

	args, err := p.Parse(line)
	if err != nil {
		return nil, err
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("shell operator at offset %d is not supported in %q", p.Position, line)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// EnvironmentDescriptor converts the environment section into the
// descriptor handed to the environment collaborator.
func (c *Config) EnvironmentDescriptor() (model.EnvironmentDescriptor, error) {
	strategy, err := model.ParseEnvironmentStrategy(c.Environment.Strategy)
	if err != nil {
		return model.EnvironmentDescriptor{}, model.WrapCLIError(model.KindConfiguration, model.StepResolve,
			"invalid environment configuration", err)
	}
	return model.EnvironmentDescriptor{
		Name:       c.Environment.Name,
		Strategy:   strategy,
		ProjectDir: c.ProjectDir,
		LockFile:   c.Environment.LockFile,
		Probe:      append([]string(nil), c.Environment.Probe...),
		Setup:      append([]string(nil), c.Environment.Setup...),
		AutoSetup:  c.Environment.AutoSetup,
	}, nil
}

// workdir returns the container working directory for a launch that
// mounts the project (mount) or not.
func (c ContainerConfig) workdir(mount bool) string {
	if c.Workdir == "" && mount {
		return DefaultWorkdir
	}
	return c.Workdir
}

// ResolvePath makes p absolute relative to the project directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}
