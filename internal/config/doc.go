// Package config assembles the launcher configuration.
//
// Values are layered from lowest to highest precedence:
//
//	built-in defaults < config file < DEVLAUNCH_* environment variables < flags
//
// The config file is devlaunch.toml, devlaunch.yaml or devlaunch.yml in the
// project root, or the file named by --config / DEVLAUNCH_CONFIG. Only keys
// present in the file override the defaults, so an empty file is valid.
package config
