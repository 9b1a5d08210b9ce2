//go:build unix

package monitor

import (
	"os/exec"
	"syscall"
)

// exitStatus extracts the exit code and terminating signal from a
// non-nil ExitError. A signal-terminated process has no exit code of
// its own and reports 1.
func exitStatus(exitErr *exec.ExitError) (code, signal int) {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 1, int(ws.Signal())
	}
	return exitErr.ExitCode(), 0
}
