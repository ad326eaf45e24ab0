package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := serviceErrorMapper(fmt.Errorf("%w: id %q", ErrScopeNotFound, "scope_1"))
	if mapped.TextCode != ServiceErrorScopeNotFound {
		t.Fatalf("expected scope not found text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = serviceErrorMapper(ErrSubmissionNotFound)
	if mapped.TextCode != ServiceErrorSubmissionNotFound {
		t.Fatalf("expected submission not found code, got %q", mapped.TextCode)
	}

	mapped = serviceErrorMapper(stderrors.New("upstream throttled the request"))
	if mapped.TextCode != ServiceErrorRateLimited || mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit mapping, got %q/%q", mapped.TextCode, mapped.Category)
	}

	for _, raw := range []string{
		"sqlstore: submission fingerprint is required",
		"pq: invalid input syntax for type uuid",
	} {
		mapped = serviceErrorMapper(stderrors.New(raw))
		if mapped.Category != goerrors.CategoryInternal || mapped.Code != http.StatusInternalServerError {
			t.Fatalf("expected %q to map to an internal error, got %q/%d", raw, mapped.Category, mapped.Code)
		}
		if mapped.TextCode != ServiceErrorInternal {
			t.Fatalf("expected internal text code for %q, got %q", raw, mapped.TextCode)
		}
	}

	rich := goerrors.New("already rich", goerrors.CategoryExternal)
	mapped = serviceErrorMapper(rich)
	if mapped.Code != http.StatusBadGateway || mapped.TextCode != ServiceErrorExternalFailure {
		t.Fatalf("expected envelope defaults on rich error, got %d/%q", mapped.Code, mapped.TextCode)
	}
}

// conflictingStore reports a fingerprint conflict but never returns a row,
// which is what a broken uniqueness constraint looks like from the service.
type conflictingStore struct {
	reads int
}

func (s *conflictingStore) Insert(context.Context, Submission) (Submission, error) {
	return Submission{}, ErrFingerprintConflict
}

func (s *conflictingStore) GetByFingerprint(context.Context, string) (Submission, error) {
	s.reads++
	return Submission{}, ErrSubmissionNotFound
}

func (s *conflictingStore) GetByID(context.Context, string) (Submission, error) {
	return Submission{}, ErrSubmissionNotFound
}

func TestSubmit_ConflictWithoutWinnerIsStorageInvariantViolation(t *testing.T) {
	store := &conflictingStore{}
	svc, err := NewService(Config{},
		WithSubmissionStore(store),
		WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1", OwnerID: "owner"})),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{ScopeID: "scope_1", PrimaryContact: "a@b.co"}})
	if err == nil {
		t.Fatalf("expected storage invariant violation")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ServiceErrorStorageInvariantViolation {
		t.Fatalf("expected invariant violation code, got %q", richErr.TextCode)
	}
	if richErr.Metadata["fingerprint"] != "a@b.co_scope_1" {
		t.Fatalf("expected fingerprint metadata, got %#v", richErr.Metadata)
	}
	if store.reads != 2 {
		t.Fatalf("expected pre-check and post-conflict reads, got %d", store.reads)
	}
}

func TestSubmit_ValidationErrorsCarryFields(t *testing.T) {
	svc, err := NewService(Config{}, WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1"})))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	name := string(long)

	_, err = svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{
		ScopeID:        "scope_1",
		PrimaryContact: "not-an-email",
		Attributes:     Attributes{Name: &name},
	}})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors validation error, got %v", err)
	}
	if richErr.TextCode != ServiceErrorBadInput || richErr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input 400, got %q/%d", richErr.TextCode, richErr.Code)
	}
	fields := map[string]bool{}
	for _, fieldErr := range richErr.AllValidationErrors() {
		fields[fieldErr.Field] = true
	}
	if !fields["email"] || !fields["attributes.name"] {
		t.Fatalf("expected email and attributes.name field errors, got %#v", fields)
	}
}

type brokenStore struct {
	conflictingStore
}

func (brokenStore) Insert(context.Context, Submission) (Submission, error) {
	return Submission{}, stderrors.New("sqlstore: submission fingerprint is required")
}

func TestSubmit_UntypedStorageFailureIsInternal(t *testing.T) {
	svc, err := NewService(Config{},
		WithSubmissionStore(&brokenStore{}),
		WithScopeDirectory(NewStaticScopeDirectory(Scope{ID: "scope_1", OwnerID: "owner"})),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequest{Candidate: Candidate{ScopeID: "scope_1", PrimaryContact: "a@b.co"}})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if richErr.Code != http.StatusInternalServerError || richErr.TextCode != ServiceErrorInternal {
		t.Fatalf("expected 500 %s, got %d %s", ServiceErrorInternal, richErr.Code, richErr.TextCode)
	}
}
