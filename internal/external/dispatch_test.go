package external_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/event"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/external"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

// requestLog captures requests from concurrent handler goroutines.
type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

func recordingServer(t *testing.T, status int) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.add(recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func waitAndGet(t *testing.T, h *external.Handle, reqs *requestLog) []recordedRequest {
	t.Helper()
	if !h.Wait(2 * time.Second) {
		t.Fatal("dispatch did not finish in time")
	}
	return reqs.all()
}

func TestDispatchHealthchecksStart(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{Kind: external.KindHealthchecks, Endpoint: srv.URL, UUID: "abc-123"}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Start("my-check"), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	if got[0].method != http.MethodGet || got[0].path != "/abc-123/start" {
		t.Errorf("start ping = %s %s, want GET /abc-123/start", got[0].method, got[0].path)
	}
}

func TestDispatchHealthchecksSuccess(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{Kind: external.KindHealthchecks, Endpoint: srv.URL, UUID: "abc-123"}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Success("my-check", 100), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if got[0].method != http.MethodGet || got[0].path != "/abc-123" {
		t.Errorf("success ping = %s %s, want GET /abc-123", got[0].method, got[0].path)
	}
}

func TestDispatchHealthchecksFailPostsOutput(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{Kind: external.KindHealthchecks, Endpoint: srv.URL, UUID: "abc-123"}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Fail("my-check", 1, 100, "disk full"), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if got[0].method != http.MethodPost || got[0].path != "/abc-123/fail" {
		t.Errorf("fail ping = %s %s, want POST /abc-123/fail", got[0].method, got[0].path)
	}
	if got[0].body != "disk full" {
		t.Errorf("fail body = %q, want captured output", got[0].body)
	}
}

func TestDispatchCronitorURLShape(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{
		Kind:       external.KindCronitor,
		Endpoint:   srv.URL,
		APIKey:     "key1",
		MonitorKey: "mon1",
	}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Fail("my-check", 1, 250, "oops"), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if got[0].method != http.MethodGet {
		t.Errorf("cronitor method = %s, want GET", got[0].method)
	}
	if got[0].path != "/p/key1/mon1" {
		t.Errorf("cronitor path = %s, want /p/key1/mon1", got[0].path)
	}
	for _, want := range []string{"state=fail", "message=oops", "metric=duration:250"} {
		if !strings.Contains(got[0].query, want) {
			t.Errorf("cronitor query %q missing %q", got[0].query, want)
		}
	}
}

func TestDispatchCronitorStates(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{Kind: external.KindCronitor, Endpoint: srv.URL, APIKey: "k", MonitorKey: "m"}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Start("c"), time.Second, nil)
	waitAndGet(t, h, reqs)
	h = external.Dispatch(srv.Client(), []external.Target{target}, event.Success("c", 10), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if !strings.Contains(got[0].query, "state=run") {
		t.Errorf("start query = %q, want state=run", got[0].query)
	}
	if !strings.Contains(got[1].query, "state=complete") {
		t.Errorf("success query = %q, want state=complete", got[1].query)
	}
}

func TestDispatchWebhookPostsEventJSON(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	target := external.Target{Kind: external.KindWebhook, URL: srv.URL + "/hook"}

	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Fail("my-check", 7, 100, "boom"), time.Second, nil)
	got := waitAndGet(t, h, reqs)

	if got[0].method != http.MethodPost || got[0].path != "/hook" {
		t.Errorf("webhook = %s %s, want POST /hook", got[0].method, got[0].path)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(got[0].body), &payload); err != nil {
		t.Fatalf("webhook body is not JSON: %v", err)
	}
	if payload["check_identifier"] != "my-check" {
		t.Errorf("check_identifier = %v", payload["check_identifier"])
	}
	if payload["event_type"] != "fail" {
		t.Errorf("event_type = %v", payload["event_type"])
	}
	if payload["exit_code"] != float64(7) {
		t.Errorf("exit_code = %v", payload["exit_code"])
	}
}

func TestDispatchEmptyTargetsIsNil(t *testing.T) {
	h := external.Dispatch(&http.Client{}, nil, event.Start("c"), time.Second, nil)
	if h != nil {
		t.Fatal("expected nil handle for empty target list")
	}
	// Nil handles join instantly.
	start := time.Now()
	if !h.Wait(5 * time.Second) {
		t.Error("nil handle wait reported timeout")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("nil handle wait blocked")
	}
}

func TestDispatchIsolatesFailingSibling(t *testing.T) {
	okSrv, okReqs := recordingServer(t, http.StatusOK)
	badSrv, _ := recordingServer(t, http.StatusInternalServerError)

	targets := []external.Target{
		{Kind: external.KindHealthchecks, Endpoint: badSrv.URL, UUID: "bad"},
		{Kind: external.KindWebhook, URL: okSrv.URL},
	}

	h := external.Dispatch(okSrv.Client(), targets, event.Success("c", 10), time.Second, nil)
	got := waitAndGet(t, h, okReqs)

	if len(got) != 1 {
		t.Errorf("healthy sibling got %d requests, want 1", len(got))
	}
}

func TestHandleWaitTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	target := external.Target{Kind: external.KindWebhook, URL: srv.URL}
	h := external.Dispatch(srv.Client(), []external.Target{target}, event.Start("c"), 5*time.Second, nil)

	if h.Wait(50 * time.Millisecond) {
		t.Error("expected wait to time out while send is blocked")
	}
}

func TestAwaitAnySuccessOneOfThree(t *testing.T) {
	okSrv, _ := recordingServer(t, http.StatusOK)
	badSrv, _ := recordingServer(t, http.StatusBadGateway)

	targets := []external.Target{
		{Kind: external.KindWebhook, URL: badSrv.URL},
		{Kind: external.KindWebhook, URL: okSrv.URL},
		{Kind: external.KindWebhook, URL: badSrv.URL},
	}

	if !external.AwaitAnySuccess(okSrv.Client(), targets, event.Success("c", 10), 2*time.Second, nil) {
		t.Error("expected true when one of three targets succeeds")
	}
}

func TestAwaitAnySuccessAllFail(t *testing.T) {
	badSrv, reqs := recordingServer(t, http.StatusBadGateway)

	targets := []external.Target{
		{Kind: external.KindWebhook, URL: badSrv.URL},
		{Kind: external.KindWebhook, URL: badSrv.URL},
		{Kind: external.KindWebhook, URL: badSrv.URL},
	}

	if external.AwaitAnySuccess(badSrv.Client(), targets, event.Success("c", 10), 2*time.Second, nil) {
		t.Error("expected false when all targets fail")
	}
	if got := len(reqs.all()); got != 3 {
		t.Errorf("expected all 3 targets attempted, got %d", got)
	}
}

func TestAwaitAnySuccessEmptyTargets(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	start := time.Now()
	if external.AwaitAnySuccess(srv.Client(), nil, event.Success("c", 10), 2*time.Second, nil) {
		t.Error("expected false for empty target list")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("empty target list should short-circuit without waiting")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("empty target list made network calls")
	}
}

func TestAwaitAnySuccessDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	targets := []external.Target{{Kind: external.KindWebhook, URL: srv.URL}}

	start := time.Now()
	ok := external.AwaitAnySuccess(srv.Client(), targets, event.Success("c", 10), 100*time.Millisecond, nil)
	elapsed := time.Since(start)

	if ok {
		t.Error("expected false when the deadline elapses first")
	}
	if elapsed > time.Second {
		t.Errorf("deadline not respected: waited %v", elapsed)
	}
}
