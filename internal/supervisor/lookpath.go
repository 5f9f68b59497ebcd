// lookpath.go resolves a bare command name against the child's PATH.
// exec.Command would use the launcher's own PATH, which does not yet
// contain the activated environment's bin directory.
package supervisor

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// resolvePath finds name on the PATH of the child's environment rather
// than the launcher's, so an activated environment's bin directory wins.
// Names with a separator, and names not found, are returned unchanged and
// left to exec's own lookup.
func resolvePath(name string, env []string) string {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	path, ok := lookupEnv(env, "PATH")
	if !ok {
		return name
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		for _, candidate := range candidates(filepath.Join(dir, name)) {
			if isExecutable(candidate) {
				return candidate
			}
		}
	}
	return name
}

func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && (k == key || (runtime.GOOS == "windows" && strings.EqualFold(k, key))) {
			return v, true
		}
	}
	return "", false
}

func candidates(p string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(p) != "" {
		return []string{p}
	}
	return []string{p + ".exe", p + ".bat", p + ".cmd"}
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
