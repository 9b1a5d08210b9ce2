// Package monitor wraps execution of an arbitrary command, reports its
// lifecycle to the primary Pakyas backend, fans the same events out to
// any configured external monitors, and resolves the process exit code
// from those possibly-conflicting signals.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/api"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/event"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/external"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/output"
)

// ExitMonitoringFailure is returned when the primary backend could not
// be notified of completion and no external monitor rescued the run.
// 3 avoids colliding with 1 (generic failure) and 2 (usage error).
const ExitMonitoringFailure = 3

// migrationMaxWait caps the arbiter wait in migration mode. The exit
// code is blocked on this decision, so it must not hang as long as an
// ordinary best-effort notification may.
const migrationMaxWait = 2 * time.Second

// PrimaryPinger is the primary-backend surface the engine needs.
// *api.Client satisfies it.
type PrimaryPinger interface {
	PingStart(ctx context.Context, publicID uuid.UUID, runID string) error
	PingCompletion(ctx context.Context, publicID uuid.UUID, comp api.Completion) error
}

// Options configures one monitored run.
type Options struct {
	// CheckIdentifier is the slug or public id used in external events.
	CheckIdentifier string
	// PublicID addresses the primary backend's ping endpoint.
	PublicID uuid.UUID
	// Command is the argv of the wrapped program.
	Command []string

	Primary       PrimaryPinger
	Targets       []external.Target
	MigrationMode bool
	// ExternalTimeout bounds each external call and each join wait.
	ExternalTimeout time.Duration

	// HTTPClient is shared by all external adapters for this
	// invocation. Nil gets a fresh default client.
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Run executes the wrapped command. Nil means RunCommand; tests
	// substitute a canned result.
	Run func(argv []string) (*CommandResult, error)
}

// Run drives one monitored invocation to completion and returns the
// final process exit code. The returned error is fatal: the command
// could not be spawned or the start ping never reached the backend, so
// there is no meaningful lifecycle to report.
func Run(ctx context.Context, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	runCmd := opts.Run
	if runCmd == nil {
		runCmd = RunCommand
	}
	timeout := opts.ExternalTimeout
	if timeout <= 0 {
		timeout = external.DefaultTimeout
	}

	// One run id pairs the start ping with its completion so the
	// backend can account duration across concurrent runs.
	runID := uuid.NewString()

	// The start ping resolves fully before the command runs: without
	// it, duration pairing has no meaning, so a failure here aborts.
	if err := opts.Primary.PingStart(ctx, opts.PublicID, runID); err != nil {
		return 0, fmt.Errorf("sending start ping: %w", err)
	}
	logger.Debug("start ping sent", "check", opts.CheckIdentifier, "run_id", runID)

	startHandle := external.Dispatch(client, opts.Targets, event.Start(opts.CheckIdentifier), timeout, logger)

	started := time.Now()
	result, err := runCmd(opts.Command)
	if err != nil {
		return 0, err
	}
	durationMs := uint64(time.Since(started).Milliseconds())
	logger.Debug("command finished",
		"exit_code", result.ExitCode,
		"signal", result.Signal,
		"duration_ms", durationMs,
	)

	// Externals get stderr, or stdout when stderr is blank: the same
	// fallback the primary error body uses.
	captured := result.Stderr
	if strings.TrimSpace(captured) == "" {
		captured = result.Stdout
	}
	completionEvent := event.Completion(opts.CheckIdentifier, result.ExitCode, durationMs, captured)

	primaryErr := opts.Primary.PingCompletion(ctx, opts.PublicID, api.Completion{
		ExitCode:   result.ExitCode,
		Signal:     result.Signal,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		DurationMs: durationMs,
		RunID:      runID,
	})

	var completionHandle *external.Handle
	exitCode := result.ExitCode

	switch {
	case primaryErr == nil:
		completionHandle = external.Dispatch(client, opts.Targets, completionEvent, timeout, logger)

	case opts.MigrationMode:
		// The primary is unreachable but an external monitor may still
		// vouch for this run.
		wait := timeout
		if wait > migrationMaxWait {
			wait = migrationMaxWait
		}
		if external.AwaitAnySuccess(client, opts.Targets, completionEvent, wait, logger) {
			output.Warning("Pakyas ping failed (%v), but external monitor succeeded (migration mode)", primaryErr)
		} else {
			output.Errorf("Pakyas ping failed: %v", primaryErr)
			exitCode = ExitMonitoringFailure
		}

	default:
		// Strict mode: the run is reported as a monitoring failure, but
		// externals still get their best-effort telemetry.
		completionHandle = external.Dispatch(client, opts.Targets, completionEvent, timeout, logger)
		output.Errorf("Pakyas ping failed: %v", primaryErr)
		exitCode = ExitMonitoringFailure
	}

	// Join the fan-out before exiting. A timeout here only warns; the
	// exit code is already decided.
	if !startHandle.Wait(timeout) {
		logger.Warn("external start ping timed out")
	}
	if !completionHandle.Wait(timeout) {
		logger.Warn("external completion ping timed out")
	}

	return exitCode, nil
}
