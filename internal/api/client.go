// Package api is the client for the primary Pakyas backend: the ping
// endpoints consumed by the monitor engine and the check-listing API
// used for slug resolution.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/version"
)

// errorBodyMaxBytes caps the failure body sent with a nonzero-exit
// ping. The server enforces plan-based limits; this only avoids huge
// uploads from the CLI side.
const errorBodyMaxBytes = 100 * 1024

// Correlation headers understood by the ping ingestion endpoint.
const (
	runIDHeader    = "X-Pakyas-Run"
	durationHeader = "X-Pakyas-Duration"
)

// ErrCheckNotFound is returned when a slug does not match any check in
// the active project.
var ErrCheckNotFound = errors.New("check not found")

// Client talks to the Pakyas API and ping endpoints.
type Client struct {
	apiURL     string
	pingURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. Pass nil httpClient to use a default with
// a 10 second timeout.
func NewClient(apiURL, pingURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		pingURL:    strings.TrimRight(pingURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Completion describes a finished command run for the completion ping.
type Completion struct {
	ExitCode   int
	Signal     int // 0 when the process was not signal-terminated
	Stdout     string
	Stderr     string
	DurationMs uint64
	RunID      string
}

// PingStart sends the start ping: GET {ping_base}/{public_id}/start
// with the run id header for start/end pairing.
func (c *Client) PingStart(ctx context.Context, publicID uuid.UUID, runID string) error {
	return c.ping(ctx, publicID, "/start", runID, nil, "")
}

// PingCompletion sends the completion ping. A zero exit code is a plain
// GET on {ping_base}/{public_id}; a nonzero exit is a POST on
// {ping_base}/{public_id}/{exit_code} with a text error body. Both
// carry the run id and duration headers.
func (c *Client) PingCompletion(ctx context.Context, publicID uuid.UUID, comp Completion) error {
	duration := &comp.DurationMs
	if comp.ExitCode == 0 {
		return c.ping(ctx, publicID, "", comp.RunID, duration, "")
	}
	modifier := fmt.Sprintf("/%d", comp.ExitCode)
	return c.ping(ctx, publicID, modifier, comp.RunID, duration, buildErrorBody(comp))
}

// Ping sends a one-shot ping with an explicit modifier ("/start", "",
// or "/{exit_code}"), used by the manual ping command.
func (c *Client) Ping(ctx context.Context, publicID uuid.UUID, modifier string) error {
	return c.ping(ctx, publicID, modifier, "", nil, "")
}

func (c *Client) ping(ctx context.Context, publicID uuid.UUID, modifier, runID string, durationMs *uint64, body string) error {
	pingURL := fmt.Sprintf("%s/%s%s", c.pingURL, publicID, modifier)

	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pingURL, strings.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	}
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	if runID != "" {
		req.Header.Set(runIDHeader, runID)
	}
	if durationMs != nil {
		req.Header.Set(durationHeader, fmt.Sprintf("%d", *durationMs))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// buildErrorBody formats the failure payload: exit code and signal
// header lines, a separator, then stderr (stdout as fallback when
// stderr is blank), truncated to the byte cap.
func buildErrorBody(comp Completion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exit code: %d", comp.ExitCode)
	if comp.Signal != 0 {
		fmt.Fprintf(&b, "\nSignal: %d", comp.Signal)
	}
	b.WriteString("\n---\n")

	details := comp.Stderr
	if strings.TrimSpace(details) == "" {
		details = comp.Stdout
	}
	b.WriteString(details)

	body := b.String()
	if len(body) > errorBodyMaxBytes {
		body = body[:errorBodyMaxBytes] + "\n…(truncated)\n"
	}
	return body
}

// Check is the subset of check metadata the CLI needs for resolution.
type Check struct {
	ID       uuid.UUID `json:"id"`
	PublicID uuid.UUID `json:"public_id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
}

// ListChecks fetches all checks in a project.
func (c *Client) ListChecks(ctx context.Context, projectID string) ([]Check, error) {
	listURL := fmt.Sprintf("%s/api/projects/%s/checks", c.apiURL, projectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing checks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("listing checks: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var payload struct {
		Checks []Check `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding checks response: %w", err)
	}
	return payload.Checks, nil
}

// ResolveCheck finds a check by slug (case-insensitive) in a project.
func (c *Client) ResolveCheck(ctx context.Context, projectID, slug string) (Check, error) {
	checks, err := c.ListChecks(ctx, projectID)
	if err != nil {
		return Check{}, err
	}
	for _, check := range checks {
		if strings.EqualFold(check.Slug, slug) {
			return check, nil
		}
	}
	return Check{}, fmt.Errorf("%w: %q in project %s", ErrCheckNotFound, slug, projectID)
}
