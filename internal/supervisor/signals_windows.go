//go:build windows

package supervisor

import (
	"io"
	"os"
	"os/exec"
)

// Windows cannot deliver signals to another process; an interrupt kills
// the child instead.
var forwardedSignals = []os.Signal{os.Interrupt}

var terminateSignal os.Signal = os.Kill

// setProcessGroup is a no-op: Windows has no process groups that can be
// signalled as a unit.
// TODO: assign the child to a job object with KILL_ON_JOB_CLOSE so that
// grandchildren die with it.
func setProcessGroup(*exec.Cmd, io.Reader) func() {
	return func() {}
}

func signalGroup(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func signalNumber(*os.ProcessState) (int, bool) {
	return 0, false
}
