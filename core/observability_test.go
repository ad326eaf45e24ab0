package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}

func (l stubLogger) WithContext(context.Context) Logger { return l }

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func TestServiceObservability_SubmitSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc, err := NewService(DefaultConfig(),
		WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1", OwnerID: "owner_1"})),
		WithDispatchScheduler(&recordingScheduler{}),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{ScopeID: "scope_1", PrimaryContact: "a@b.co"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !hasCounter(metrics.counters, "leads.submit.total", "success") {
		t.Fatalf("expected leads.submit.total success counter")
	}
	if !hasHistogram(metrics.histograms, "leads.submit.duration_ms", "success") {
		t.Fatalf("expected leads.submit.duration_ms histogram")
	}
	if !hasLog(logger.snapshot(), "info", "submit succeeded", "submit") {
		t.Fatalf("expected submit succeeded structured log")
	}
	for _, counter := range metrics.counters {
		if _, leaked := counter.tags["scope_id"]; leaked {
			t.Fatalf("expected scope_id to stay out of metric tags, got %#v", counter.tags)
		}
	}
}

func TestServiceObservability_SubmitFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc, err := NewService(DefaultConfig(),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{ScopeID: "missing", PrimaryContact: "a@b.co"}})
	if err == nil {
		t.Fatalf("expected submit error for missing scope")
	}
	if !hasCounter(metrics.counters, "leads.submit.total", "failure") {
		t.Fatalf("expected submit failure counter")
	}
	if !hasLog(logger.snapshot(), "error", "submit failed", "submit") {
		t.Fatalf("expected submit failure log")
	}
}

func TestServiceObservability_DeliveryFailuresAreLoggedWithRedaction(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	dispatcher := &scriptedDispatcher{outcomes: map[string]DeliveryOutcome{
		"https://hooks.example.com/services/T/B/secret": {StatusCode: 500, Message: "HTTP 500: boom", Attempts: 3},
	}}
	svc, err := NewService(DefaultConfig(),
		WithDispatcher(dispatcher),
		WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1", Targets: []DeliveryTarget{
			{Kind: TargetKindChatVariantA, Destination: "https://hooks.example.com/services/T/B/secret"},
		}})),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	record := Submission{ID: "lead_1", ScopeID: "scope_1"}
	if err := svc.RunDispatch(context.Background(), DispatchJob{SubmissionID: "lead_1", Submission: &record}); err != nil {
		t.Fatalf("run dispatch: %v", err)
	}

	var warned *capturedLog
	records := logger.snapshot()
	for i := range records {
		if records[i].level == "warn" && records[i].msg == "delivery failed" {
			warned = &records[i]
		}
	}
	if warned == nil {
		t.Fatalf("expected delivery failure warning")
	}
	if warned.fields["destination"] != "https://hooks.example.com/..." {
		t.Fatalf("expected redacted destination, got %#v", warned.fields["destination"])
	}
	found := false
	for _, counter := range metrics.counters {
		if counter.name == "leads.delivery.total" && counter.tags["outcome"] == "failed" && counter.tags["target_kind"] == "chat_variant_a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected failed delivery counter")
	}
	found = false
	for _, histogram := range metrics.histograms {
		if histogram.name == "leads.delivery.attempts" && histogram.value == 3 && histogram.tags["outcome"] == "failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected attempts histogram for the failed target, got %#v", metrics.histograms)
	}
}

func TestServiceObservability_DispatchTestTagsKindAndOutcome(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	svc, err := NewService(DefaultConfig(),
		WithDispatcher(&scriptedDispatcher{}),
		WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1", OwnerID: "owner_1"})),
		WithMetricsRecorder(metrics),
		WithLogger(stubLogger{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.DispatchTest(context.Background(), DispatchTestRequest{
		ScopeID:  "scope_1",
		CallerID: "owner_1",
		Target:   DeliveryTarget{Kind: TargetKindChatVariantB, Destination: "https://hooks.example.com/x"},
	}); err != nil {
		t.Fatalf("dispatch test: %v", err)
	}
	for _, counter := range metrics.counters {
		if counter.name != "leads.dispatch_test.total" {
			continue
		}
		if counter.tags["target_kind"] != "chat_variant_b" || counter.tags["outcome"] != "delivered" {
			t.Fatalf("unexpected dispatch_test tags %#v", counter.tags)
		}
		if _, leaked := counter.tags["scope_id"]; leaked {
			t.Fatalf("expected scope_id to stay out of metric tags")
		}
		return
	}
	t.Fatalf("expected leads.dispatch_test.total counter")
}

func TestServiceObservability_IncludesErrorText(t *testing.T) {
	logger := newCaptureLogger()
	svc, err := NewService(DefaultConfig(),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	richErr := goerrors.New("provider timeout", goerrors.CategoryExternal).
		WithCode(502).
		WithTextCode(ServiceErrorExternalFailure)
	svc.observeOperation(
		context.Background(),
		time.Now().UTC().Add(-100*time.Millisecond),
		"resolve_reference",
		richErr,
		map[string]any{"canonical_id": "abc"},
	)

	records := logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.fields["canonical_id"] != "abc" {
		t.Fatalf("expected operation field propagation, got %#v", last.fields)
	}
	if last.fields["error"] == nil {
		t.Fatalf("expected error text field")
	}
	if last.fields["status"] != "failure" {
		t.Fatalf("expected failure status, got %#v", last.fields["status"])
	}
	if last.fields["error_code"] != ServiceErrorExternalFailure {
		t.Fatalf("expected text code in log fields, got %#v", last.fields["error_code"])
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, operation string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["operation"] == operation {
			return true
		}
	}
	return false
}
