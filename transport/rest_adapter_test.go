package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

func TestRESTAdapter_OversizedBodyIsTruncatedNotFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	res, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err != nil {
		t.Fatalf("expected oversized body to keep the status, got %v", err)
	}
	if res.StatusCode != http.StatusOK || !res.Success() {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if !res.Truncated || string(res.Body) != "1234" {
		t.Fatalf("expected truncated body, got %q truncated=%v", res.Body, res.Truncated)
	}
}

func TestRESTAdapter_BodyWithinLimitIsNotTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("1234"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	res, err := adapter.Do(context.Background(), Request{URL: server.URL})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.Truncated || string(res.Body) != "1234" || res.Success() {
		t.Fatalf("unexpected response %#v", res)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected nil adapter error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ServiceErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

func TestRESTAdapter_RelativeURLIsInputError(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), Request{Method: http.MethodPost, URL: "/hooks/relative"})
	if err == nil {
		t.Fatalf("expected relative url to be rejected")
	}
	if !IsInputError(err) {
		t.Fatalf("expected input error classification, got %v", err)
	}
}

func TestRESTAdapter_TimeoutIsExternalGatewayError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Body:    []byte(`{}`),
		Timeout: 20 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if IsInputError(err) {
		t.Fatalf("timeout must not be classified as input error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected %d code, got %d", http.StatusGatewayTimeout, rich.Code)
	}
}

func TestRESTAdapter_SendsHeadersAndBody(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"ok":true}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || !res.Success() {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}
	if res.Header("retry-after") != "3" {
		t.Fatalf("expected canonical header lookup, got %q", res.Header("retry-after"))
	}
	if gotContentType != "application/json" || gotBody != `{"ok":true}` {
		t.Fatalf("unexpected request: %q %q", gotContentType, gotBody)
	}
}

func TestRESTAdapter_RequestHeadersOverrideDefaults(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.DefaultHeaders["User-Agent"] = "default-agent"
	res, err := adapter.Do(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{"User-Agent": " leads-test "},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAgent != "leads-test" {
		t.Fatalf("expected request header to win, got %q", gotAgent)
	}
	if res.Success() {
		t.Fatalf("expected 503 to be unsuccessful")
	}
	if IsTimeout(err) {
		t.Fatalf("nil error is not a timeout")
	}
}
