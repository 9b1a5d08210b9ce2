package monitor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// CommandResult is the terminal state of one wrapped command run. It is
// built once, after the child process exits, and read-only afterwards.
// A nonzero exit code or a signal death is normal data here, not an
// error: the wrapped command's failure is the payload being monitored.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Signal is the terminating signal number, 0 when the process
	// exited normally or the platform has no signal semantics.
	Signal int
}

// RunCommand executes argv with inherited stdin and captured
// stdout/stderr. The only error it returns is a spawn failure (for
// example, executable not found); everything else, including nonzero
// exits, lands in the result.
func RunCommand(argv []string) (*CommandResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command specified")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executing %q: %w", argv[0], err)
	}

	err := cmd.Wait()
	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode, result.Signal = exitStatus(exitErr)
		} else {
			// Wait failed for a non-exit reason; treat as a generic
			// failure of the child.
			result.ExitCode = 1
		}
	}
	return result, nil
}
