package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/transport"
)

type scriptedTransport struct {
	mu        sync.Mutex
	responses map[string][]scriptedResponse
	calls     map[string]int
	requests  []transport.Request
}

type scriptedResponse struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		responses: map[string][]scriptedResponse{},
		calls:     map[string]int{},
	}
}

func (s *scriptedTransport) script(url string, responses ...scriptedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = responses
}

func (s *scriptedTransport) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	idx := s.calls[req.URL]
	s.calls[req.URL] = idx + 1
	script := s.responses[req.URL]
	if len(script) == 0 {
		return transport.Response{StatusCode: http.StatusOK}, nil
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	next := script[idx]
	if next.err != nil {
		return transport.Response{}, next.err
	}
	return transport.Response{StatusCode: next.status, Body: []byte(next.body), Headers: next.headers}, nil
}

func (s *scriptedTransport) callCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestDispatcher(outbound Transport) *Dispatcher {
	return NewDispatcher(outbound, WithSleep(noSleep))
}

func TestDispatchRetriesServerErrorsUpToBound(t *testing.T) {
	outbound := newScriptedTransport()
	outbound.script("https://hooks.example.com/a", scriptedResponse{status: 503, body: "unavailable"})
	dispatcher := newTestDispatcher(outbound)

	outcomes := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: "https://hooks.example.com/a"},
	})
	if len(outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(outcomes))
	}
	if outcomes[0].Success {
		t.Fatalf("expected failure")
	}
	if got := outbound.callCount("https://hooks.example.com/a"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if outcomes[0].StatusCode != 503 || outcomes[0].Message != "HTTP 503: unavailable" {
		t.Fatalf("unexpected outcome %#v", outcomes[0])
	}
}

func TestDispatchDoesNotRetryClientErrors(t *testing.T) {
	outbound := newScriptedTransport()
	outbound.script("https://hooks.example.com/a", scriptedResponse{status: 404, body: "no such hook"})
	dispatcher := newTestDispatcher(outbound)

	outcomes := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindChatVariantA, Destination: "https://hooks.example.com/a"},
	})
	if outcomes[0].Success || outcomes[0].StatusCode != 404 {
		t.Fatalf("unexpected outcome %#v", outcomes[0])
	}
	if got := outbound.callCount("https://hooks.example.com/a"); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestDispatchRetriesRateLimitedThenSucceeds(t *testing.T) {
	outbound := newScriptedTransport()
	outbound.script("https://hooks.example.com/a",
		scriptedResponse{status: 429, headers: map[string]string{"Retry-After": "1"}},
		scriptedResponse{status: 204},
	)
	var delays []time.Duration
	dispatcher := NewDispatcher(outbound, WithSleep(func(_ context.Context, delay time.Duration) error {
		delays = append(delays, delay)
		return nil
	}))

	outcome := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: "https://hooks.example.com/a"},
	})[0]
	if !outcome.Success || outcome.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %#v", outcome)
	}
	if len(delays) != 1 || delays[0] != time.Second {
		t.Fatalf("expected Retry-After delay of 1s, got %v", delays)
	}
}

func TestDispatchRetriesConnectionErrors(t *testing.T) {
	outbound := newScriptedTransport()
	outbound.script("https://hooks.example.com/a",
		scriptedResponse{err: errors.New("connection refused")},
		scriptedResponse{status: 200},
	)
	outcome := newTestDispatcher(outbound).Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: "https://hooks.example.com/a"},
	})[0]
	if !outcome.Success || outcome.Attempts != 2 {
		t.Fatalf("expected recovery after connection error, got %#v", outcome)
	}
}

func TestDispatchIsolatesTargets(t *testing.T) {
	var healthyCalls int
	var mu sync.Mutex
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		healthyCalls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unreachable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachableURL := unreachable.URL
	unreachable.Close()

	dispatcher := NewDispatcher(transport.NewRESTAdapter(nil), WithSleep(noSleep), WithTimeout(2*time.Second))
	outcomes := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: unreachableURL},
		{Kind: core.TargetKindChatVariantB, Destination: healthy.URL},
	})
	if len(outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Success {
		t.Fatalf("expected unreachable target to fail")
	}
	if outcomes[0].Attempts != 3 {
		t.Fatalf("expected connection failures to be retried, got %d attempts", outcomes[0].Attempts)
	}
	if !outcomes[1].Success || outcomes[1].StatusCode != http.StatusOK {
		t.Fatalf("expected healthy target to succeed, got %#v", outcomes[1])
	}
	mu.Lock()
	defer mu.Unlock()
	if healthyCalls != 1 {
		t.Fatalf("expected healthy target to be called once, got %d", healthyCalls)
	}
}

func TestDispatchTreatsOversizedSuccessBodyAsDelivered(t *testing.T) {
	var posts int32
	var mu sync.Mutex
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("x", 2<<20)))
	}))
	defer target.Close()

	dispatcher := NewDispatcher(transport.NewRESTAdapter(nil), WithSleep(noSleep), WithTimeout(2*time.Second))
	outcome := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindChatVariantA, Destination: target.URL},
	})[0]
	if !outcome.Success || outcome.StatusCode != http.StatusOK || outcome.Attempts != 1 {
		t.Fatalf("expected a single successful attempt, got %#v", outcome)
	}
	mu.Lock()
	defer mu.Unlock()
	if posts != 1 {
		t.Fatalf("expected the event to be posted once, got %d", posts)
	}
}

func TestDispatchTreatsStalledSuccessBodyAsDelivered(t *testing.T) {
	release := make(chan struct{})
	var posts int32
	var mu sync.Mutex
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer target.Close()
	defer close(release)

	dispatcher := NewDispatcher(transport.NewRESTAdapter(nil), WithSleep(noSleep), WithTimeout(100*time.Millisecond))
	outcome := dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: target.URL},
	})[0]
	if !outcome.Success || outcome.StatusCode != http.StatusAccepted || outcome.Attempts != 1 {
		t.Fatalf("expected the 202 to count as delivered, got %#v", outcome)
	}
	mu.Lock()
	defer mu.Unlock()
	if posts != 1 {
		t.Fatalf("expected the event to be posted once, got %d", posts)
	}
}

func TestDispatchSignsGenericTargetsWithSecret(t *testing.T) {
	outbound := newScriptedTransport()
	dispatcher := newTestDispatcher(outbound)
	dispatcher.Dispatch(context.Background(), sampleEvent(), []core.DeliveryTarget{
		{Kind: core.TargetKindGeneric, Destination: "https://hooks.example.com/a", Secret: "s3cret"},
	})
	if len(outbound.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(outbound.requests))
	}
	req := outbound.requests[0]
	if err := VerifySignature("s3cret", req.Body, req.Headers[SignatureHeader]); err != nil {
		t.Fatalf("verify signature: %v", err)
	}
	if req.Method != http.MethodPost || req.Headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected request %#v", req)
	}
}

func TestDispatchTestMakesSingleAttempt(t *testing.T) {
	outbound := newScriptedTransport()
	outbound.script("https://hooks.example.com/a", scriptedResponse{status: 500, body: strings.Repeat("x", 400)})
	dispatcher := newTestDispatcher(outbound)

	outcome := dispatcher.DispatchTest(context.Background(), core.DeliveryEvent{
		Name:       core.EventTest,
		Submission: core.SyntheticSubmission("scope-1"),
	}, core.DeliveryTarget{Kind: core.TargetKindGeneric, Destination: "https://hooks.example.com/a"})
	if outcome.Success || outcome.Attempts != 1 {
		t.Fatalf("expected one failed attempt, got %#v", outcome)
	}
	if got := outbound.callCount("https://hooks.example.com/a"); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
	if !strings.HasSuffix(outcome.Message, "...") {
		t.Fatalf("expected truncated message, got %q", outcome.Message)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, Initial: time.Second, Max: 5 * time.Second}
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, want := range expected {
		if got := policy.NextDelay(i + 1); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, want, got)
		}
	}
	if policy.MaxAttempts() != 5 {
		t.Fatalf("expected 5 attempts, got %d", policy.MaxAttempts())
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 425, 429, 500, 502, 503} {
		if !isRetryableStatus(code) {
			t.Fatalf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 410, 422} {
		if isRetryableStatus(code) {
			t.Fatalf("expected %d to be terminal", code)
		}
	}
}
