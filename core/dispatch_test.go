package core

import (
	"context"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type scriptedDispatcher struct {
	mu       sync.Mutex
	events   []DeliveryEvent
	targets  [][]DeliveryTarget
	outcomes map[string]DeliveryOutcome
	tested   []DeliveryTarget
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, event DeliveryEvent, targets []DeliveryTarget) []DeliveryOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	d.targets = append(d.targets, targets)
	out := make([]DeliveryOutcome, 0, len(targets))
	for _, target := range targets {
		outcome, ok := d.outcomes[target.Destination]
		if !ok {
			outcome = DeliveryOutcome{Success: true, StatusCode: 200, Message: "Webhook delivered successfully", Attempts: 1}
		}
		outcome.Target = target
		out = append(out, outcome)
	}
	return out
}

func (d *scriptedDispatcher) DispatchTest(_ context.Context, event DeliveryEvent, target DeliveryTarget) DeliveryOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	d.tested = append(d.tested, target)
	return DeliveryOutcome{Target: target, Success: true, StatusCode: 200, Message: "Webhook delivered successfully", Attempts: 1}
}

type memoryAttemptLedger struct {
	mu       sync.Mutex
	attempts []DeliveryAttempt
}

func (l *memoryAttemptLedger) RecordAttempts(_ context.Context, attempts []DeliveryAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempts...)
	return nil
}

func (l *memoryAttemptLedger) ListDeliveryAttempts(_ context.Context, submissionID string) ([]DeliveryAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []DeliveryAttempt
	for _, attempt := range l.attempts {
		if attempt.SubmissionID == submissionID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func newDispatchTestService(t *testing.T, dispatcher Dispatcher, ledger *memoryAttemptLedger) *Service {
	t.Helper()
	svc, err := NewService(Config{},
		WithDispatcher(dispatcher),
		WithDeliveryAttemptRecorder(ledger),
		WithDispatchScheduler(&recordingScheduler{}),
		WithScopeDirectory(NewStaticScopeDirectory(
			Scope{
				ID:      "scope_1",
				Name:    "Launch",
				OwnerID: "owner_1",
				Targets: []DeliveryTarget{
					{Kind: TargetKindGeneric, Destination: "https://ok.example.com/hook"},
					{Kind: TargetKindChatVariantA, Destination: "https://down.example.com/hook"},
				},
			},
			Scope{ID: "scope_empty", OwnerID: "owner_1"},
			Scope{ID: "scope_orphan", Name: "Orphan"},
			Scope{ID: "scope_gone", OwnerID: "owner_1", Deleted: true, Targets: []DeliveryTarget{
				{Kind: TargetKindGeneric, Destination: "https://ok.example.com/hook"},
			}},
		)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunDispatch_RecordsEveryOutcome(t *testing.T) {
	dispatcher := &scriptedDispatcher{outcomes: map[string]DeliveryOutcome{
		"https://down.example.com/hook": {Success: false, StatusCode: 503, Message: "HTTP 503: unavailable", Attempts: 3},
	}}
	ledger := &memoryAttemptLedger{}
	svc := newDispatchTestService(t, dispatcher, ledger)

	record := Submission{ID: "lead_1", ScopeID: "scope_1", PrimaryContact: "a@b.co"}
	if err := svc.RunDispatch(context.Background(), DispatchJob{SubmissionID: record.ID, Submission: &record}); err != nil {
		t.Fatalf("run dispatch: %v", err)
	}

	if len(dispatcher.events) != 1 {
		t.Fatalf("expected one fan-out, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Name != EventLeadCreated || event.ScopeName != "Launch" || event.Submission.ID != "lead_1" {
		t.Fatalf("unexpected event %#v", event)
	}
	attempts, err := svc.ListDeliveryAttempts(context.Background(), "lead_1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected one ledger row per target, got %d", len(attempts))
	}
	if !attempts[0].Outcome.Success || attempts[1].Outcome.Success || attempts[1].Outcome.Attempts != 3 {
		t.Fatalf("unexpected outcomes %#v", attempts)
	}
}

func TestRunDispatch_LoadsRecordWhenOnlyIDIsQueued(t *testing.T) {
	dispatcher := &scriptedDispatcher{}
	svc := newDispatchTestService(t, dispatcher, &memoryAttemptLedger{})
	result, err := svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{ScopeID: "scope_1", PrimaryContact: "a@b.co"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.RunDispatch(context.Background(), DispatchJob{SubmissionID: result.Record.ID}); err != nil {
		t.Fatalf("run dispatch: %v", err)
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].Submission.PrimaryContact != "a@b.co" {
		t.Fatalf("expected stored record to be dispatched, got %#v", dispatcher.events)
	}
}

func TestRunDispatch_SkipsDeletedAndEmptyScopes(t *testing.T) {
	dispatcher := &scriptedDispatcher{}
	ledger := &memoryAttemptLedger{}
	svc := newDispatchTestService(t, dispatcher, ledger)

	for _, scopeID := range []string{"scope_gone", "scope_empty", "scope_missing"} {
		record := Submission{ID: "lead_" + scopeID, ScopeID: scopeID}
		if err := svc.RunDispatch(context.Background(), DispatchJob{SubmissionID: record.ID, Submission: &record}); err != nil {
			t.Fatalf("run dispatch for %s: %v", scopeID, err)
		}
	}
	if len(dispatcher.events) != 0 || len(ledger.attempts) != 0 {
		t.Fatalf("expected no deliveries, got %d events and %d attempts", len(dispatcher.events), len(ledger.attempts))
	}
}

func TestDispatchTest_UsesSyntheticRecordAndChecksOwnership(t *testing.T) {
	dispatcher := &scriptedDispatcher{}
	svc := newDispatchTestService(t, dispatcher, &memoryAttemptLedger{})
	ctx := context.Background()

	outcome, err := svc.DispatchTest(ctx, DispatchTestRequest{
		ScopeID:  "scope_1",
		CallerID: "owner_1",
		Target:   DeliveryTarget{Kind: "slack", Destination: " https://hooks.example.com/x "},
	})
	if err != nil {
		t.Fatalf("dispatch test: %v", err)
	}
	if !outcome.Success || outcome.Attempts != 1 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if dispatcher.tested[0].Kind != TargetKindChatVariantA || dispatcher.tested[0].Destination != "https://hooks.example.com/x" {
		t.Fatalf("expected normalized target, got %#v", dispatcher.tested[0])
	}
	event := dispatcher.events[0]
	if event.Name != EventTest || event.Submission.ID != SyntheticSubmission("scope_1").ID {
		t.Fatalf("expected synthetic test event, got %#v", event)
	}

	_, err = svc.DispatchTest(ctx, DispatchTestRequest{
		ScopeID:  "scope_1",
		CallerID: "intruder",
		Target:   DeliveryTarget{Kind: TargetKindGeneric, Destination: "https://hooks.example.com/x"},
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != ServiceErrorPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}

	_, err = svc.DispatchTest(ctx, DispatchTestRequest{
		ScopeID: "scope_1",
		Target:  DeliveryTarget{Kind: "teams", Destination: "https://hooks.example.com/x"},
	})
	if !goerrors.As(err, &richErr) || richErr.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input for unknown kind, got %v", err)
	}

	_, err = svc.DispatchTest(ctx, DispatchTestRequest{
		ScopeID: "scope_gone",
		Target:  DeliveryTarget{Kind: TargetKindGeneric, Destination: "https://hooks.example.com/x"},
	})
	if !goerrors.As(err, &richErr) || richErr.TextCode != ServiceErrorScopeNotFound {
		t.Fatalf("expected scope not found for deleted scope, got %v", err)
	}
	if len(dispatcher.tested) != 1 {
		t.Fatalf("expected rejected requests not to reach the dispatcher")
	}
}

func TestDispatchTest_OwnerlessScopeRejectsNamedCallers(t *testing.T) {
	dispatcher := &scriptedDispatcher{}
	svc := newDispatchTestService(t, dispatcher, &memoryAttemptLedger{})
	ctx := context.Background()
	target := DeliveryTarget{Kind: TargetKindGeneric, Destination: "https://hooks.example.com/x"}

	_, err := svc.DispatchTest(ctx, DispatchTestRequest{ScopeID: "scope_orphan", CallerID: "someone", Target: target})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != ServiceErrorPermissionDenied {
		t.Fatalf("expected permission denied for ownerless scope, got %v", err)
	}
	if len(dispatcher.tested) != 0 {
		t.Fatalf("expected denied request not to reach the dispatcher")
	}

	if _, err := svc.DispatchTest(ctx, DispatchTestRequest{ScopeID: "scope_orphan", Target: target}); err != nil {
		t.Fatalf("expected operator test without caller to run, got %v", err)
	}
	if len(dispatcher.tested) != 1 {
		t.Fatalf("expected one dispatched test, got %d", len(dispatcher.tested))
	}
}

type stubResolver struct {
	doc ReferenceDocument
	err error
}

func (r stubResolver) Resolve(context.Context, string) (ReferenceDocument, error) {
	return r.doc, r.err
}

func (r stubResolver) ResolveByID(context.Context, string) (ReferenceDocument, error) {
	return r.doc, r.err
}

func TestResolve_DelegatesAndMapsErrors(t *testing.T) {
	svc, err := NewService(Config{}, WithReferenceResolver(stubResolver{doc: ReferenceDocument{CanonicalID: "abc", Provider: "p1"}}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	doc, err := svc.Resolve(context.Background(), "https://www.notion.so/x-abc")
	if err != nil || doc.CanonicalID != "abc" {
		t.Fatalf("unexpected resolve result %#v / %v", doc, err)
	}

	svc, err = NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ResolveByID(context.Background(), "abc"); err == nil {
		t.Fatalf("expected missing resolver error")
	}
}
