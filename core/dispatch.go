package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SyntheticSubmission is the fixed record sent by dispatch tests.
func SyntheticSubmission(scopeID string) Submission {
	return Submission{
		ID:             "test-lead-id",
		ScopeID:        scopeID,
		PrimaryContact: "test@example.com",
		Attributes: Attributes{
			Name:    StringPtr("Test User"),
			Company: StringPtr("Test Company"),
			Role:    StringPtr("Tester"),
		},
		Consents:    Consents{Privacy: true},
		Fingerprint: Fingerprint("test@example.com", scopeID),
		CreatedAt:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// RunDispatch fans a stored submission out to the targets configured for its
// scope. Delivery failures are logged and recorded, never returned; an error
// means the job itself could not run (record or scope unavailable).
func (s *Service) RunDispatch(ctx context.Context, job DispatchJob) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"submission_id": job.SubmissionID,
		"scope_id":      job.ScopeID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "dispatch", err, fields)
	}()
	if s == nil || s.dispatcher == nil {
		return serviceDependencyError("core: dispatcher is required")
	}

	var record Submission
	if job.Submission != nil {
		record = *job.Submission
	} else {
		if s.submissionStore == nil {
			return serviceDependencyError("core: submission store is required")
		}
		loaded, loadErr := s.submissionStore.GetByID(ctx, job.SubmissionID)
		if loadErr != nil {
			return s.mapError(loadErr)
		}
		record = loaded
	}
	scopeID := record.ScopeID
	if scopeID == "" {
		scopeID = job.ScopeID
	}

	scope, err := s.scopeDirectory.GetScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, ErrScopeNotFound) {
			fields["targets"] = 0
			fields["skipped"] = "scope_not_found"
			return nil
		}
		return s.mapError(err)
	}
	if scope.Deleted || len(scope.Targets) == 0 {
		fields["targets"] = 0
		return nil
	}
	fields["targets"] = len(scope.Targets)

	outcomes := s.dispatcher.Dispatch(ctx, DeliveryEvent{
		Name:       EventLeadCreated,
		Submission: record,
		ScopeName:  scope.Name,
	}, scope.Targets)

	failed := 0
	attempts := make([]DeliveryAttempt, 0, len(outcomes))
	for _, outcome := range outcomes {
		if s.observeDelivery(ctx, record, scopeID, outcome) == deliveryFailed {
			failed++
		}
		attempts = append(attempts, DeliveryAttempt{
			ID:           s.newID(),
			SubmissionID: record.ID,
			ScopeID:      scopeID,
			Outcome:      outcome,
			CreatedAt:    s.now(),
		})
	}
	fields["failed_targets"] = failed

	if s.attemptRecorder != nil && len(attempts) > 0 {
		if recordErr := s.attemptRecorder.RecordAttempts(ctx, attempts); recordErr != nil {
			s.logWarn(ctx, "delivery attempt ledger write failed", map[string]any{
				"submission_id": record.ID,
				"error":         recordErr.Error(),
			})
		}
	}
	return nil
}

// DispatchTest performs exactly one delivery attempt of the synthetic record
// against one target and reports the outcome to the caller.
func (s *Service) DispatchTest(ctx context.Context, req DispatchTestRequest) (outcome DeliveryOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"scope_id":    req.ScopeID,
		"target_kind": string(req.Target.Kind),
	}
	defer func() {
		if err == nil {
			fields["outcome"] = deliveryFailed
			if outcome.Success {
				fields["outcome"] = deliveryDelivered
			}
			fields["status_code"] = outcome.StatusCode
		}
		s.observeOperation(ctx, startedAt, "dispatch_test", err, fields)
	}()
	if s == nil || s.dispatcher == nil {
		return DeliveryOutcome{}, serviceDependencyError("core: dispatcher is required")
	}

	target, err := normalizeTarget(req.Target)
	if err != nil {
		return DeliveryOutcome{}, err
	}
	scopeID := strings.TrimSpace(req.ScopeID)
	if scopeID == "" {
		return DeliveryOutcome{}, newValidationError(goerrors.FieldError{Field: "scope_id", Message: "cannot be blank"})
	}
	scope, err := s.requireLiveScope(ctx, scopeID)
	if err != nil {
		return DeliveryOutcome{}, err
	}
	// An empty caller is an operator; any named caller must own the scope,
	// and an ownerless scope has no owner to match.
	caller := strings.TrimSpace(req.CallerID)
	if caller != "" && caller != strings.TrimSpace(scope.OwnerID) {
		return DeliveryOutcome{}, newPermissionDeniedError(scopeID)
	}

	return s.dispatcher.DispatchTest(ctx, DeliveryEvent{
		Name:       EventTest,
		Submission: SyntheticSubmission(scopeID),
		ScopeName:  scope.Name,
	}, target), nil
}

func normalizeTarget(target DeliveryTarget) (DeliveryTarget, error) {
	kind, ok := ParseTargetKind(string(target.Kind))
	if !ok {
		return DeliveryTarget{}, newValidationError(goerrors.FieldError{
			Field:   "kind",
			Message: "must be one of generic, chat_variant_a, chat_variant_b",
		})
	}
	destination := strings.TrimSpace(target.Destination)
	if err := ValidateDestination(destination); err != nil {
		return DeliveryTarget{}, newValidationError(goerrors.FieldError{Field: "destination", Message: err.Error()})
	}
	return DeliveryTarget{Kind: kind, Destination: destination, Secret: strings.TrimSpace(target.Secret)}, nil
}

// ValidateDestination accepts absolute http(s) URLs only.
func ValidateDestination(destination string) error {
	parsed, err := url.Parse(strings.TrimSpace(destination))
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// RedactDestination keeps scheme and host. Chat webhook paths embed tokens.
func RedactDestination(destination string) string {
	parsed, err := url.Parse(strings.TrimSpace(destination))
	if err != nil || parsed.Host == "" {
		return "<invalid>"
	}
	return parsed.Scheme + "://" + parsed.Host + "/..."
}
