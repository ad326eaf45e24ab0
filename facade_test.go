package leads

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	leadscommand "github.com/goliatone/go-leads/command"
	"github.com/goliatone/go-leads/core"
	leadsquery "github.com/goliatone/go-leads/query"
)

var _ CommandQueryService = (*Service)(nil)

type capturedHook struct {
	mu      sync.Mutex
	payload map[string]any
	calls   int
}

func (c *capturedHook) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read hook body: %v", err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls++
		_ = json.Unmarshal(body, &c.payload)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestFacade_SubmitLeadFansOutAndIsIdempotent(t *testing.T) {
	hook := &capturedHook{}
	server := httptest.NewServer(hook.handler(t))
	defer server.Close()

	scopes := core.NewStaticScopeDirectory(core.Scope{
		ID:      "scope_1",
		Name:    "Launch",
		OwnerID: "owner_1",
		Targets: []core.DeliveryTarget{{Kind: core.TargetKindGeneric, Destination: server.URL}},
	})
	svc, err := NewService(DefaultConfig(), WithScopeDirectory(scopes))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	submit := func(email string) core.SubmitResult {
		collector := gocmd.NewResult[core.SubmitResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := facade.Commands().SubmitLead.Execute(ctx, leadscommand.SubmitLeadMessage{
			Request: core.SubmitRequest{Candidate: core.Candidate{ScopeID: "scope_1", PrimaryContact: email}},
		}); err != nil {
			t.Fatalf("submit lead: %v", err)
		}
		result, ok := collector.Load()
		if !ok {
			t.Fatalf("expected submit result")
		}
		return result
	}

	first := submit("Jane@Example.com ")
	second := submit("jane@example.com")
	if !first.IsNew || second.IsNew {
		t.Fatalf("expected first insert new and second duplicate, got %v/%v", first.IsNew, second.IsNew)
	}
	if first.Record.ID != second.Record.ID {
		t.Fatalf("expected duplicate to return original id %q, got %q", first.Record.ID, second.Record.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.WaitForDispatches(ctx); err != nil {
		t.Fatalf("wait for dispatches: %v", err)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", hook.calls)
	}
	if hook.payload["event"] != core.EventLeadCreated || hook.payload["project_id"] != "scope_1" {
		t.Fatalf("unexpected payload %#v", hook.payload)
	}

	record, err := facade.Queries().GetSubmission.Query(context.Background(), leadsquery.GetSubmissionMessage{ID: first.Record.ID})
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if record.PrimaryContact != "jane@example.com" {
		t.Fatalf("expected normalized contact, got %q", record.PrimaryContact)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}
