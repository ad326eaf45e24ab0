package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-leads/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryAttemptStore is the append-only ledger of fan-out outcomes.
type DeliveryAttemptStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryAttemptRecord]
}

func NewDeliveryAttemptStore(db *bun.DB) (*DeliveryAttemptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryAttemptRecord](db, deliveryAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery attempt repository wiring: %w", err)
		}
	}
	return &DeliveryAttemptStore{db: db, repo: repo}, nil
}

func (s *DeliveryAttemptStore) RecordAttempts(ctx context.Context, attempts []core.DeliveryAttempt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery attempt store is not configured")
	}
	if len(attempts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*deliveryAttemptRecord, 0, len(attempts))
	for _, attempt := range attempts {
		id := strings.TrimSpace(attempt.ID)
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := attempt.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		records = append(records, &deliveryAttemptRecord{
			ID:           id,
			SubmissionID: strings.TrimSpace(attempt.SubmissionID),
			ScopeID:      strings.TrimSpace(attempt.ScopeID),
			TargetKind:   string(attempt.Outcome.Target.Kind),
			Destination:  core.RedactDestination(attempt.Outcome.Target.Destination),
			Success:      attempt.Outcome.Success,
			StatusCode:   attempt.Outcome.StatusCode,
			Message:      attempt.Outcome.Message,
			Attempts:     attempt.Outcome.Attempts,
			CreatedAt:    createdAt.UTC(),
		})
	}
	_, err := s.db.NewInsert().Model(&records).Exec(ctx)
	return err
}

func (s *DeliveryAttemptStore) ListDeliveryAttempts(ctx context.Context, submissionID string) ([]core.DeliveryAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery attempt store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("submission_id", "=", strings.TrimSpace(submissionID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.DeliveryAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
