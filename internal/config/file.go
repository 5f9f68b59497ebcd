package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk layout. The same keys are used for TOML
// and YAML files.
type fileConfig struct {
	Mode        string   `toml:"mode" yaml:"mode"`
	Target      []string `toml:"target" yaml:"target"`
	GracePeriod string   `toml:"grace_period" yaml:"grace_period"`

	Environment struct {
		Name      string   `toml:"name" yaml:"name"`
		Strategy  string   `toml:"strategy" yaml:"strategy"`
		LockFile  string   `toml:"lock_file" yaml:"lock_file"`
		Probe     []string `toml:"probe" yaml:"probe"`
		Setup     []string `toml:"setup" yaml:"setup"`
		AutoSetup bool     `toml:"auto_setup" yaml:"auto_setup"`
	} `toml:"environment" yaml:"environment"`

	Container struct {
		Image        string            `toml:"image" yaml:"image"`
		Dockerfile   string            `toml:"dockerfile" yaml:"dockerfile"`
		Context      string            `toml:"context" yaml:"context"`
		BuildArgs    map[string]string `toml:"build_args" yaml:"build_args"`
		BuildPolicy  string            `toml:"build_policy" yaml:"build_policy"`
		ComposeFiles []string          `toml:"compose_files" yaml:"compose_files"`
		Service      string            `toml:"service" yaml:"service"`
		Workdir      string            `toml:"workdir" yaml:"workdir"`
		Mount        bool              `toml:"mount" yaml:"mount"`
		Env          map[string]string `toml:"env" yaml:"env"`
		Ports        []string          `toml:"ports" yaml:"ports"`
		RunArgs      []string          `toml:"run_args" yaml:"run_args"`
		WatchFiles   []string          `toml:"watch_files" yaml:"watch_files"`
	} `toml:"container" yaml:"container"`
}

// definedFunc reports whether a dotted key path was present in the file.
type definedFunc func(keys ...string) bool

// loadFile decodes path according to its extension and layers the keys it
// defines onto cfg.
func loadFile(path string, cfg *Config) error {
	var (
		raw     fileConfig
		defined definedFunc
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
		defined = meta.IsDefined

	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		var tree map[string]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return err
		}
		defined = yamlDefined(tree)

	default:
		return fmt.Errorf("unsupported config file extension %q (valid: .toml, .yaml, .yml)", ext)
	}

	return apply(cfg, &raw, defined)
}

// yamlDefined walks a decoded YAML document the way toml.MetaData.IsDefined
// walks a TOML one.
func yamlDefined(tree map[string]interface{}) definedFunc {
	return func(keys ...string) bool {
		var node interface{} = tree
		for _, k := range keys {
			m, ok := node.(map[string]interface{})
			if !ok {
				return false
			}
			node, ok = m[k]
			if !ok {
				return false
			}
		}
		return true
	}
}

func apply(cfg *Config, raw *fileConfig, defined definedFunc) error {
	if defined("mode") {
		cfg.Mode = strings.TrimSpace(raw.Mode)
	}
	if defined("target") {
		cfg.Target = append([]string{}, raw.Target...)
	}
	if defined("grace_period") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.GracePeriod))
		if err != nil {
			return fmt.Errorf("parse grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}

	env := &cfg.Environment
	if defined("environment", "name") {
		env.Name = strings.TrimSpace(raw.Environment.Name)
	}
	if defined("environment", "strategy") {
		env.Strategy = strings.TrimSpace(raw.Environment.Strategy)
	}
	if defined("environment", "lock_file") {
		env.LockFile = strings.TrimSpace(raw.Environment.LockFile)
	}
	if defined("environment", "probe") {
		env.Probe = normalizeList(raw.Environment.Probe)
	}
	if defined("environment", "setup") {
		env.Setup = normalizeList(raw.Environment.Setup)
	}
	if defined("environment", "auto_setup") {
		env.AutoSetup = raw.Environment.AutoSetup
	}

	ctr := &cfg.Container
	if defined("container", "image") {
		ctr.Image = strings.TrimSpace(raw.Container.Image)
	}
	if defined("container", "dockerfile") {
		ctr.Dockerfile = strings.TrimSpace(raw.Container.Dockerfile)
	}
	if defined("container", "context") {
		ctr.Context = strings.TrimSpace(raw.Container.Context)
	}
	if defined("container", "build_args") {
		ctr.BuildArgs = raw.Container.BuildArgs
	}
	if defined("container", "build_policy") {
		ctr.BuildPolicy = strings.TrimSpace(raw.Container.BuildPolicy)
	}
	if defined("container", "compose_files") {
		ctr.ComposeFiles = normalizeList(raw.Container.ComposeFiles)
	}
	if defined("container", "service") {
		ctr.Service = strings.TrimSpace(raw.Container.Service)
	}
	if defined("container", "workdir") {
		ctr.Workdir = strings.TrimSpace(raw.Container.Workdir)
	}
	if defined("container", "mount") {
		ctr.Mount = raw.Container.Mount
	}
	if defined("container", "env") {
		ctr.Env = raw.Container.Env
	}
	if defined("container", "ports") {
		ctr.Ports = normalizeList(raw.Container.Ports)
	}
	if defined("container", "run_args") {
		ctr.RunArgs = normalizeList(raw.Container.RunArgs)
	}
	if defined("container", "watch_files") {
		ctr.WatchFiles = normalizeList(raw.Container.WatchFiles)
	}

	return nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
