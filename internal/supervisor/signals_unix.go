//go:build unix

package supervisor

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// forwardedSignals are relayed to the child while it runs.
var forwardedSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGHUP,
	syscall.SIGQUIT,
}

var terminateSignal os.Signal = syscall.SIGTERM

// setProcessGroup starts the child in a process group of its own, so that
// forwarded signals and the final kill reach everything it spawns.
//
// When the launcher is the foreground job of the terminal on stdin, the
// child's group also takes over the terminal: keyboard signals then go to
// the child alone, and the returned func hands the terminal back.
func setProcessGroup(cmd *exec.Cmd, stdin io.Reader) func() {
	attr := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attr

	fd, ok := foregroundTerminal(stdin)
	if !ok {
		return func() {}
	}
	attr.Foreground = true
	attr.Ctty = fd
	return func() { reclaimTerminal(fd) }
}

// foregroundTerminal returns stdin's descriptor when it is a terminal whose
// foreground process group is the launcher's own.
func foregroundTerminal(stdin io.Reader) (int, bool) {
	f, ok := stdin.(*os.File)
	if !ok || f == nil || !isatty.IsTerminal(f.Fd()) {
		return 0, false
	}
	fd := int(f.Fd())
	pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil || pgrp != syscall.Getpgrp() {
		return 0, false
	}
	return fd, true
}

// reclaimTerminal makes the launcher's group the foreground job again.
// tcsetpgrp from a background group raises SIGTTOU unless it is ignored.
func reclaimTerminal(fd int) {
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)
	_ = unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, syscall.Getpgrp())
}

// signalGroup delivers sig to every process in p's group.
func signalGroup(p *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}
	if err := syscall.Kill(-p.Pid, s); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}

// killGroup sends SIGKILL to p's group. It reports os.ErrProcessDone when
// nothing was left to kill.
func killGroup(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// signalNumber reports the signal that killed the process, if any.
func signalNumber(state *os.ProcessState) (int, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}
