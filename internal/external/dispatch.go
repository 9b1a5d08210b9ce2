package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/event"
)

// DefaultTimeout bounds a single external ping when no timeout is
// configured.
const DefaultTimeout = 5 * time.Second

// cronitorMessageMaxBytes caps the message query parameter; cronitor
// rejects oversized URLs.
const cronitorMessageMaxBytes = 2000

// Handle represents all in-flight fan-out work for one event. It is
// returned at dispatch time and joined later, so the caller can run the
// wrapped command while notifications are still on the wire.
type Handle struct {
	done chan struct{}
}

// Wait blocks until the fan-out finishes or the timeout elapses. It
// reports whether the work completed in time; on timeout the underlying
// sends keep running, only the wait is abandoned. A nil handle (empty
// dispatch) returns true immediately.
func (h *Handle) Wait(timeout time.Duration) bool {
	if h == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Dispatch fans one event out to every target concurrently, sharing the
// given client, each send bounded by perCallTimeout. Failures are
// logged as warnings and isolated: one broken target never affects
// another. An empty target list returns nil immediately with no
// goroutine spawned and no HTTP call made.
func Dispatch(client *http.Client, targets []Target, ev event.PingEvent, perCallTimeout time.Duration, logger *slog.Logger) *Handle {
	if len(targets) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if perCallTimeout <= 0 {
		perCallTimeout = DefaultTimeout
	}

	h := &Handle{done: make(chan struct{})}

	go func() {
		defer close(h.done)

		var wg conc.WaitGroup
		for _, target := range targets {
			target := target
			wg.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), perCallTimeout)
				defer cancel()

				if err := send(ctx, client, target, ev); err != nil {
					logger.Warn("external ping failed",
						"target", target.Name(),
						"url", target.DisplayURL(),
						"error", err,
					)
					return
				}
				logger.Debug("external ping sent",
					"target", target.Name(),
					"url", target.DisplayURL(),
					"event", string(ev.EventType),
				)
			})
		}
		wg.Wait()
	}()

	return h
}

// AwaitAnySuccess races the completion event against every target and
// reports whether at least one succeeded. It returns true on the first
// success without cancelling the slower sends: they finish on their own
// for their telemetry value. It returns false once every target has
// reported failure or the timeout elapses, and immediately when the
// target list is empty.
func AwaitAnySuccess(client *http.Client, targets []Target, ev event.PingEvent, timeout time.Duration, logger *slog.Logger) bool {
	if len(targets) == 0 {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}

	results := make(chan bool, len(targets))
	for _, target := range targets {
		target := target
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			err := send(ctx, client, target, ev)
			if err != nil {
				logger.Warn("external ping failed",
					"target", target.Name(),
					"url", target.DisplayURL(),
					"error", err,
				)
			}
			results <- err == nil
		}()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for pending := len(targets); pending > 0; {
		select {
		case ok := <-results:
			if ok {
				return true
			}
			pending--
		case <-deadline.C:
			return false
		}
	}
	return false
}

// send delivers one event to one target. The switch is the single
// protocol-selection point: adding a Kind means adding a case here.
func send(ctx context.Context, client *http.Client, target Target, ev event.PingEvent) error {
	switch target.Kind {
	case KindHealthchecks:
		return sendHealthchecks(ctx, client, target, ev)
	case KindCronitor:
		return sendCronitor(ctx, client, target, ev)
	case KindWebhook:
		return sendWebhook(ctx, client, target.URL, ev)
	}
	return fmt.Errorf("unknown target kind %q", target.Kind)
}

// sendHealthchecks pings {endpoint}/{uuid} with suffix /start, empty,
// or /fail. Captured output, when present, rides in a text POST body;
// otherwise the ping is a plain GET.
func sendHealthchecks(ctx context.Context, client *http.Client, target Target, ev event.PingEvent) error {
	var suffix string
	switch ev.EventType {
	case event.TypeStart:
		suffix = "/start"
	case event.TypeFail:
		suffix = "/fail"
	}

	pingURL := fmt.Sprintf("%s/%s%s", strings.TrimRight(target.Endpoint, "/"), target.UUID, suffix)

	var req *http.Request
	var err error
	if ev.Output != "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pingURL, strings.NewReader(ev.Output))
		if err == nil {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	}
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	return doAndClassify(client, req, "healthchecks.io")
}

// sendCronitor pings {endpoint}/p/{api_key}/{monitor_key} with
// state=run|complete|fail, an optional url-encoded message, and an
// optional duration metric. Always GET.
func sendCronitor(ctx context.Context, client *http.Client, target Target, ev event.PingEvent) error {
	var state string
	switch ev.EventType {
	case event.TypeStart:
		state = "run"
	case event.TypeSuccess:
		state = "complete"
	case event.TypeFail:
		state = "fail"
	}

	pingURL := fmt.Sprintf("%s/p/%s/%s?state=%s",
		strings.TrimRight(target.Endpoint, "/"), target.APIKey, target.MonitorKey, state)

	if ev.Output != "" {
		message := ev.Output
		if len(message) > cronitorMessageMaxBytes {
			message = message[:cronitorMessageMaxBytes]
		}
		pingURL += "&message=" + url.QueryEscape(message)
	}
	if ev.DurationMs != nil {
		pingURL += fmt.Sprintf("&metric=duration:%d", *ev.DurationMs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	return doAndClassify(client, req, "cronitor")
}

// sendWebhook POSTs the event as JSON to a fixed URL, with no per-event
// path shaping.
func sendWebhook(ctx context.Context, client *http.Client, webhookURL string, ev event.PingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doAndClassify(client, req, "webhook")
}

func doAndClassify(client *http.Client, req *http.Request, service string) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", service, resp.StatusCode)
	}
	return nil
}
