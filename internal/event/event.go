// Package event defines the unified lifecycle event shared by every
// monitoring protocol adapter. A PingEvent is pure data: constructing
// one performs no I/O.
package event

import (
	"os"
	"time"
)

// Type is the lifecycle phase a ping reports.
type Type string

const (
	TypeStart   Type = "start"
	TypeSuccess Type = "success"
	TypeFail    Type = "fail"
)

// OutputMaxBytes caps the captured output carried on a fail event.
// Only the tail is kept: errors are usually at the end.
const OutputMaxBytes = 4 * 1024

const truncationMarker = "…truncated\n"

// PingEvent is one job-lifecycle event, mapped by each adapter to its
// service's wire format. CheckIdentifier holds either a check slug or a
// public id, depending on how the CLI was invoked.
type PingEvent struct {
	CheckIdentifier string    `json:"check_identifier"`
	EventType       Type      `json:"event_type"`
	ExitCode        *int      `json:"exit_code,omitempty"`
	DurationMs      *uint64   `json:"duration_ms,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Host            string    `json:"host,omitempty"`
	Output          string    `json:"output,omitempty"`
}

// Start returns a start event. Start events never carry an exit code,
// duration, or output.
func Start(checkIdentifier string) PingEvent {
	return PingEvent{
		CheckIdentifier: checkIdentifier,
		EventType:       TypeStart,
		Timestamp:       time.Now().UTC(),
		Host:            hostname(),
	}
}

// Success returns a success completion event.
func Success(checkIdentifier string, durationMs uint64) PingEvent {
	zero := 0
	return PingEvent{
		CheckIdentifier: checkIdentifier,
		EventType:       TypeSuccess,
		ExitCode:        &zero,
		DurationMs:      &durationMs,
		Timestamp:       time.Now().UTC(),
		Host:            hostname(),
	}
}

// Fail returns a failure completion event carrying the tail of stderr.
func Fail(checkIdentifier string, exitCode int, durationMs uint64, stderr string) PingEvent {
	return PingEvent{
		CheckIdentifier: checkIdentifier,
		EventType:       TypeFail,
		ExitCode:        &exitCode,
		DurationMs:      &durationMs,
		Timestamp:       time.Now().UTC(),
		Host:            hostname(),
		Output:          buildOutput(stderr),
	}
}

// ManualFail returns a failure event for an operator-initiated ping.
// It carries exit code 1 and no duration or output, since no command
// actually ran.
func ManualFail(checkIdentifier string) PingEvent {
	one := 1
	return PingEvent{
		CheckIdentifier: checkIdentifier,
		EventType:       TypeFail,
		ExitCode:        &one,
		Timestamp:       time.Now().UTC(),
		Host:            hostname(),
	}
}

// Completion dispatches to Success or Fail based on the exit code.
func Completion(checkIdentifier string, exitCode int, durationMs uint64, stderr string) PingEvent {
	if exitCode == 0 {
		return Success(checkIdentifier, durationMs)
	}
	return Fail(checkIdentifier, exitCode, durationMs, stderr)
}

// buildOutput keeps the last OutputMaxBytes bytes of stderr, prefixed
// with a truncation marker when anything was cut. Empty stderr yields
// an empty output so the field is omitted on the wire.
func buildOutput(stderr string) string {
	if stderr == "" {
		return ""
	}
	if len(stderr) <= OutputMaxBytes {
		return stderr
	}
	return truncationMarker + stderr[len(stderr)-OutputMaxBytes:]
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
