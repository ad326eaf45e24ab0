package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-leads/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubmissionStore persists submissions in lead_submissions. The unique index
// on fingerprint is what makes concurrent submits safe.
type SubmissionStore struct {
	db   *bun.DB
	repo repository.Repository[*submissionRecord]
}

func NewSubmissionStore(db *bun.DB) (*SubmissionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*submissionRecord](db, submissionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid submission repository wiring: %w", err)
		}
	}
	return &SubmissionStore{db: db, repo: repo}, nil
}

func (s *SubmissionStore) Insert(ctx context.Context, record core.Submission) (core.Submission, error) {
	if s == nil || s.db == nil {
		return core.Submission{}, fmt.Errorf("sqlstore: submission store is not configured")
	}
	record.Fingerprint = strings.TrimSpace(record.Fingerprint)
	if record.Fingerprint == "" {
		return core.Submission{}, fmt.Errorf("sqlstore: submission fingerprint is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	row := newSubmissionRecord(record)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Submission{}, fmt.Errorf("%w: %v", core.ErrFingerprintConflict, err)
		}
		return core.Submission{}, err
	}
	return row.toDomain(), nil
}

func (s *SubmissionStore) GetByFingerprint(ctx context.Context, fingerprint string) (core.Submission, error) {
	return s.getBy(ctx, "fingerprint", fingerprint)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id string) (core.Submission, error) {
	return s.getBy(ctx, "id", id)
}

func (s *SubmissionStore) getBy(ctx context.Context, column string, value string) (core.Submission, error) {
	if s == nil || s.db == nil {
		return core.Submission{}, fmt.Errorf("sqlstore: submission store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Submission{}, core.ErrSubmissionNotFound
	}
	record := &submissionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Submission{}, fmt.Errorf("%w: %s %q", core.ErrSubmissionNotFound, column, value)
		}
		return core.Submission{}, err
	}
	return record.toDomain(), nil
}

// ListByScope returns the newest submissions of a scope first.
func (s *SubmissionStore) ListByScope(ctx context.Context, scopeID string, limit int) ([]core.Submission, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: submission store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("scope_id", "=", strings.TrimSpace(scopeID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Submission, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
