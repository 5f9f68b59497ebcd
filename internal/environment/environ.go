package environment

import (
	"os"
	"sort"
	"strings"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Environ applies an activated environment to a base KEY=VALUE list and
// returns a new list. base is not modified.
//
// Unset variables are dropped, Env entries replace or extend the base, and
// PathPrefix directories are prepended to PATH in order. Added keys are
// appended in sorted order so the result is deterministic.
func Environ(base []string, act model.ActivatedEnvironment) []string {
	drop := make(map[string]bool, len(act.Unset)+len(act.Env))
	for _, k := range act.Unset {
		drop[k] = true
	}
	for k := range act.Env {
		drop[k] = true
	}

	out := make([]string, 0, len(base)+len(act.Env)+1)
	path, hasPath := "", false
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		if drop[k] {
			continue
		}
		if k == "PATH" {
			path, hasPath = v, true
			continue
		}
		out = append(out, kv)
	}

	if len(act.PathPrefix) > 0 || hasPath {
		parts := append([]string{}, act.PathPrefix...)
		if path != "" {
			parts = append(parts, path)
		}
		out = append(out, "PATH="+strings.Join(parts, string(os.PathListSeparator)))
	}

	keys := make([]string, 0, len(act.Env))
	for k := range act.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+act.Env[k])
	}

	return out
}
