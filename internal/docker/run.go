package docker

import (
	"sort"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// RunOptions are the per-invocation settings of a run command that do not
// come from the launch request.
type RunOptions struct {
	// TTY allocates a pseudo-terminal. Set it only when the launcher's own
	// stdin is a terminal.
	TTY bool
}

// RunArgs returns the docker CLI arguments that run target inside the
// request's image:
//
//	docker run --rm -i [-t] --name <session> --label ... [-v project:workdir]
//	    [-w workdir] -e K=V -p host:container/proto [runArgs...] <image> <target...>
//
// The container is named after the session and labelled with it, so it can
// be found and removed even if "--rm" never gets the chance to run.
func RunArgs(req *model.LaunchRequest, target []string, opts RunOptions) []string {
	spec := req.Image
	args := []string{"run", "--rm", "-i"}
	if opts.TTY {
		args = append(args, "-t")
	}
	args = append(args, "--name", req.SessionID)
	args = appendLabels(args, "--label", BuildLabels(req))

	if spec.Mount && spec.ProjectDir != "" && spec.Workdir != "" {
		args = append(args, "-v", spec.ProjectDir+":"+spec.Workdir)
	}
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	for _, p := range spec.Ports {
		args = append(args, "-p", p.String())
	}
	args = append(args, spec.RunArgs...)
	args = append(args, spec.Tag)
	args = append(args, target...)
	return args
}

// ComposeRunArgs returns the docker CLI arguments that run target in a
// compose service:
//
//	docker compose -p <session> -f f1 -f f2 run --rm --name <session>
//	    --label ... [-T] [-v project:workdir] [-w workdir] -e K=V
//	    --publish host:container/proto <service> <target...>
//
// The compose project is named after the session so that dependency
// services started by "run" can be torn down with ComposeDownArgs.
func ComposeRunArgs(req *model.LaunchRequest, target []string, opts RunOptions) []string {
	spec := req.Image
	args := buildComposeArgs(req.SessionID, spec.ComposeFiles)
	args = append(args, "run", "--rm", "--name", req.SessionID)
	args = appendLabels(args, "--label", BuildLabels(req))
	if !opts.TTY {
		args = append(args, "-T")
	}
	if spec.Mount && spec.ProjectDir != "" && spec.Workdir != "" {
		args = append(args, "-v", spec.ProjectDir+":"+spec.Workdir)
	}
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	for _, p := range spec.Ports {
		args = append(args, "--publish", p.String())
	}
	args = append(args, spec.Service)
	args = append(args, target...)
	return args
}

// ComposeDownArgs returns the docker CLI arguments that stop and remove
// everything a compose run for the session created.
func ComposeDownArgs(sessionID string, composeFiles []string) []string {
	args := buildComposeArgs(sessionID, composeFiles)
	return append(args, "down", "--remove-orphans", "--timeout", "0")
}

// buildComposeArgs constructs the common arguments for docker compose
// commands. Each compose file gets its own -f flag; docker compose merges
// them in order.
func buildComposeArgs(project string, composeFiles []string) []string {
	args := make([]string, 0, len(composeFiles)*2+3)
	args = append(args, "compose")
	if project != "" {
		args = append(args, "-p", project)
	}
	for _, f := range composeFiles {
		args = append(args, "-f", f)
	}
	return args
}

func appendLabels(args []string, flag string, labels map[string]string) []string {
	for _, k := range sortedKeys(labels) {
		args = append(args, flag, k+"="+labels[k])
	}
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
