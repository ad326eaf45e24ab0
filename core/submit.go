package core

import (
	"context"
	"errors"
	"time"
)

// Submit stores a candidate exactly once per fingerprint. A duplicate is not
// an error: it returns the first stored record with IsNew=false. Only a first
// insert hands a dispatch job to the scheduler, and hand-off failures never
// change the result.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (result SubmitResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"scope_id": req.Candidate.ScopeID}
	defer func() {
		if err == nil {
			fields["submission_id"] = result.Record.ID
			fields["outcome"] = "duplicate"
			if result.IsNew {
				fields["outcome"] = "created"
			}
		}
		s.observeOperation(ctx, startedAt, "submit", err, fields)
	}()
	if s == nil || s.submissionStore == nil {
		return SubmitResult{}, serviceDependencyError("core: submission store is required")
	}

	candidate := normalizeCandidate(req.Candidate)
	if err := validateCandidate(candidate); err != nil {
		return SubmitResult{}, s.mapError(err)
	}
	if _, err := s.requireLiveScope(ctx, candidate.ScopeID); err != nil {
		return SubmitResult{}, err
	}

	record, isNew, err := s.deduplicate(ctx, candidate)
	if err != nil {
		return SubmitResult{}, s.mapError(err)
	}
	if isNew {
		s.handOffDispatch(ctx, record)
	}
	return SubmitResult{Record: record, IsNew: isNew}, nil
}

// deduplicate is a compare-and-insert: the pre-check read is an optimization
// and the storage uniqueness constraint decides the winner.
func (s *Service) deduplicate(ctx context.Context, candidate Candidate) (Submission, bool, error) {
	fingerprint := Fingerprint(candidate.PrimaryContact, candidate.ScopeID)

	existing, err := s.submissionStore.GetByFingerprint(ctx, fingerprint)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrSubmissionNotFound) {
		return Submission{}, false, err
	}

	record := Submission{
		ID:             s.newID(),
		ScopeID:        candidate.ScopeID,
		PrimaryContact: candidate.PrimaryContact,
		Attributes:     candidate.Attributes,
		Consents:       candidate.Consents,
		Attribution:    cloneAttribution(candidate.Attribution),
		Origin:         candidate.Origin,
		Fingerprint:    fingerprint,
		CreatedAt:      s.now(),
	}
	stored, insertErr := s.submissionStore.Insert(ctx, record)
	if insertErr == nil {
		return stored, true, nil
	}
	if !errors.Is(insertErr, ErrFingerprintConflict) {
		return Submission{}, false, insertErr
	}

	winner, err := s.submissionStore.GetByFingerprint(ctx, fingerprint)
	if err == nil {
		return winner, false, nil
	}
	if errors.Is(err, ErrSubmissionNotFound) {
		return Submission{}, false, NewStorageInvariantViolation(fingerprint, insertErr)
	}
	return Submission{}, false, err
}

func (s *Service) requireLiveScope(ctx context.Context, scopeID string) (Scope, error) {
	if s.scopeDirectory == nil {
		return Scope{}, serviceDependencyError("core: scope directory is required")
	}
	scope, err := s.scopeDirectory.GetScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, ErrScopeNotFound) {
			return Scope{}, NewScopeNotFoundError(scopeID)
		}
		return Scope{}, s.mapError(err)
	}
	if scope.Deleted {
		return Scope{}, NewScopeNotFoundError(scopeID)
	}
	return scope, nil
}

func (s *Service) handOffDispatch(ctx context.Context, record Submission) {
	if s.dispatchScheduler == nil {
		return
	}
	snapshot := record
	job := DispatchJob{
		SubmissionID: record.ID,
		ScopeID:      record.ScopeID,
		Submission:   &snapshot,
	}
	if err := s.dispatchScheduler.Schedule(context.WithoutCancel(ctx), job); err != nil {
		s.recordCounter(ctx, "leads.dispatch_handoff.failures", 1, map[string]string{"operation": "submit"})
		s.logWarn(ctx, "dispatch hand-off failed", map[string]any{
			"submission_id": record.ID,
			"scope_id":      record.ScopeID,
			"error":         err.Error(),
		})
	}
}
