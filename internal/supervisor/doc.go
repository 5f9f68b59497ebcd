// Package supervisor owns the child process of a launch.
//
// A Supervisor starts the child with the launcher's own standard streams,
// forwards termination signals to it, and blocks until it has been reaped.
// The child's exit code is returned unchanged; a child killed by a signal
// reports 128+signal, the way POSIX shells do. Every return path, including
// a panic in the forwarding loop, kills and reaps the child first, so no
// process outlives the invocation.
package supervisor
