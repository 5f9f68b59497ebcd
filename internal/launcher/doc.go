// Package launcher turns a launch intent into a supervised child process.
//
// A launch moves through a one-shot state machine:
//
//	NotStarted -> Resolving -> EnvironmentReady -> Running -> Exited | Failed
//
// Resolving reads the execution mode and target, EnvironmentReady is
// reached once the dependency environment (local) or the container runtime
// and build inputs (containerized) have been checked, and Running covers
// the optional image build and the child itself. Every failure aborts the
// remaining steps and is reported as a *model.CLIError naming the step;
// nothing is retried. A containerized launch removes the containers it
// labelled on every exit path.
package launcher
