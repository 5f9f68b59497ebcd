// Package environment adapts external dependency environment tools to the
// launcher.
//
// An EnvironmentDescriptor names an environment; Manager.Activate turns it
// into an ActivatedEnvironment (VIRTUAL_ENV, PATH prefix, variables to
// unset) or fails. Two strategies are supported:
//
//   - venv: the descriptor name is a virtualenv directory.
//   - command: a probe command such as "pipenv --venv" prints the
//     environment root.
//
// Activation never creates anything unless the descriptor opts in with
// AutoSetup, in which case the setup command runs at most once.
package environment
