package project

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Info describes the project a launch runs in.
type Info struct {
	// Root is the absolute project root: the Git top-level directory when
	// inside a repository, otherwise the starting directory.
	Root string

	// Branch is the checked-out branch, or empty outside a repository or
	// on a detached HEAD.
	Branch string

	// InRepo reports whether Root came from Git.
	InRepo bool
}

// Locator discovers project information by invoking the git CLI.
//
// It is stateless; the struct exists as a receiver so a custom git binary
// can be configured later without breaking callers.
type Locator struct{}

// NewLocator creates a new Locator instance.
func NewLocator() *Locator {
	return &Locator{}
}

// Locate resolves project information for the directory start.
// Not being inside a Git repository is not an error: the directory itself
// becomes the root.
func (l *Locator) Locate(start string) (Info, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return Info{}, fmt.Errorf("resolve %q: %w", start, err)
	}

	root, err := l.RepoRoot(abs)
	if err != nil {
		return Info{Root: abs}, nil
	}

	info := Info{Root: root, InRepo: true}
	if branch, err := l.CurrentBranch(root); err == nil && branch != "HEAD" {
		info.Branch = branch
	}
	return info, nil
}

// RepoRoot returns the absolute path to the top-level directory of the
// Git repository containing path, using `git rev-parse --show-toplevel`.
func (l *Locator) RepoRoot(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(output)), nil
}

// CurrentBranch returns the short name of the checked-out branch.
// Returns "HEAD" on a detached HEAD.
func (l *Locator) CurrentBranch(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// runGit executes a git command in repoPath and returns stdout.
// On failure the trimmed stderr is included in the error.
func runGit(repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}

	return stdout.String(), nil
}

// SanitizeName converts an arbitrary string (directory or branch name) to
// a Docker-safe name fragment: lowercase alphanumerics and hyphens, with
// no leading, trailing or repeated hyphens.
func SanitizeName(s string) string {
	name := strings.ToLower(s)
	name = strings.NewReplacer("/", "-", "_", "-", ".", "-", " ", "-").Replace(name)

	var result strings.Builder
	lastHyphen := true
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			result.WriteRune(r)
			lastHyphen = false
		case r == '-' && !lastHyphen:
			result.WriteRune(r)
			lastHyphen = true
		}
	}

	return strings.TrimRight(result.String(), "-")
}

// NewSessionID returns "devlaunch-<project>-<6 hex chars>". The random
// suffix keeps concurrent invocations from colliding on container names.
func NewSessionID(projectRoot string) string {
	base := SanitizeName(filepath.Base(projectRoot))
	if base == "" {
		base = "app"
	}

	buf := make([]byte, 3)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)

	return fmt.Sprintf("devlaunch-%s-%s", base, hex.EncodeToString(buf))
}
