package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-leads/core"
)

type stubReferenceReader struct {
	lastURL string
	lastID  string
}

func (s *stubReferenceReader) Resolve(_ context.Context, rawURL string) (core.ReferenceDocument, error) {
	s.lastURL = rawURL
	return core.ReferenceDocument{CanonicalID: "page", Content: json.RawMessage(`{}`)}, nil
}

func (s *stubReferenceReader) ResolveByID(_ context.Context, canonicalID string) (core.ReferenceDocument, error) {
	s.lastID = canonicalID
	return core.ReferenceDocument{CanonicalID: canonicalID, Content: json.RawMessage(`{}`)}, nil
}

type stubLeadReader struct{}

func (stubLeadReader) GetSubmission(_ context.Context, id string) (core.Submission, error) {
	return core.Submission{ID: id, PrimaryContact: "ada@example.com"}, nil
}

func (stubLeadReader) ListDeliveryAttempts(_ context.Context, submissionID string) ([]core.DeliveryAttempt, error) {
	return []core.DeliveryAttempt{{SubmissionID: submissionID, Outcome: core.DeliveryOutcome{Success: true}}}, nil
}

func TestReferenceQueries_DelegateTrimmedInput(t *testing.T) {
	reader := &stubReferenceReader{}
	if _, err := NewResolveReferenceQuery(reader).Query(context.Background(), ResolveReferenceMessage{
		URL: "  https://acme.notion.site/Page-1234567890abcdef1234567890abcdef ",
	}); err != nil {
		t.Fatalf("resolve query: %v", err)
	}
	if reader.lastURL != "https://acme.notion.site/Page-1234567890abcdef1234567890abcdef" {
		t.Fatalf("unexpected url %q", reader.lastURL)
	}
	doc, err := NewResolveReferenceByIDQuery(reader).Query(context.Background(), ResolveReferenceByIDMessage{ID: " abc "})
	if err != nil {
		t.Fatalf("resolve by id query: %v", err)
	}
	if doc.CanonicalID != "abc" {
		t.Fatalf("unexpected canonical id %q", doc.CanonicalID)
	}
}

func TestLeadQueries_Delegate(t *testing.T) {
	record, err := NewGetSubmissionQuery(stubLeadReader{}).Query(context.Background(), GetSubmissionMessage{ID: "lead_1"})
	if err != nil {
		t.Fatalf("get submission query: %v", err)
	}
	if record.ID != "lead_1" {
		t.Fatalf("unexpected record %#v", record)
	}
	attempts, err := NewListDeliveryAttemptsQuery(stubLeadReader{}).Query(context.Background(), ListDeliveryAttemptsMessage{SubmissionID: "lead_1"})
	if err != nil {
		t.Fatalf("list attempts query: %v", err)
	}
	if len(attempts) != 1 || attempts[0].SubmissionID != "lead_1" {
		t.Fatalf("unexpected attempts %#v", attempts)
	}
}

func TestResolveReferenceMessage_RejectsRelativeURL(t *testing.T) {
	if err := (ResolveReferenceMessage{URL: "/Page-Title"}).Validate(); err == nil {
		t.Fatalf("expected relative url to fail validation")
	}
	if err := (ResolveReferenceMessage{URL: "https://acme.notion.site/Page"}).Validate(); err != nil {
		t.Fatalf("expected absolute url to pass, got %v", err)
	}
}
