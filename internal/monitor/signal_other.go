//go:build !unix

package monitor

import "os/exec"

// exitStatus extracts the exit code from a non-nil ExitError. Signal
// extraction has no meaning on this platform.
func exitStatus(exitErr *exec.ExitError) (code, signal int) {
	code = exitErr.ExitCode()
	if code < 0 {
		code = 1
	}
	return code, 0
}
