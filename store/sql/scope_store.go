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

// ScopeStore is the SQL-backed scope directory: projects and the delivery
// targets configured on them.
type ScopeStore struct {
	db         *bun.DB
	scopeRepo  repository.Repository[*scopeRecord]
	targetRepo repository.Repository[*deliveryTargetRecord]
}

func NewScopeStore(db *bun.DB) (*ScopeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	scopeRepo := repository.NewRepository[*scopeRecord](db, scopeHandlers())
	if validator, ok := scopeRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid scope repository wiring: %w", err)
		}
	}
	targetRepo := repository.NewRepository[*deliveryTargetRecord](db, deliveryTargetHandlers())
	if validator, ok := targetRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery target repository wiring: %w", err)
		}
	}
	return &ScopeStore{db: db, scopeRepo: scopeRepo, targetRepo: targetRepo}, nil
}

// GetScope returns soft-deleted scopes with Deleted set so callers can tell
// them apart from unknown ids.
func (s *ScopeStore) GetScope(ctx context.Context, scopeID string) (core.Scope, error) {
	if s == nil || s.db == nil {
		return core.Scope{}, fmt.Errorf("sqlstore: scope store is not configured")
	}
	scopeID = strings.TrimSpace(scopeID)
	if scopeID == "" {
		return core.Scope{}, core.ErrScopeNotFound
	}
	record := &scopeRecord{}
	err := s.db.NewSelect().
		Model(record).
		WhereAllWithDeleted().
		Where("?TableAlias.id = ?", scopeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Scope{}, fmt.Errorf("%w: id %q", core.ErrScopeNotFound, scopeID)
		}
		return core.Scope{}, err
	}

	targets, _, err := s.targetRepo.List(ctx,
		repository.SelectBy("scope_id", "=", scopeID),
		repository.OrderBy("position ASC"),
	)
	if err != nil {
		return core.Scope{}, err
	}
	scope := core.Scope{
		ID:      record.ID,
		Name:    record.Name,
		OwnerID: record.OwnerID,
		Deleted: record.DeletedAt != nil,
		Targets: make([]core.DeliveryTarget, 0, len(targets)),
	}
	for _, target := range targets {
		scope.Targets = append(scope.Targets, target.toDomain())
	}
	return scope, nil
}

// RegisterScope creates or renames a scope and replaces its delivery
// targets in one transaction.
func (s *ScopeStore) RegisterScope(ctx context.Context, scope core.Scope) (core.Scope, error) {
	if s == nil || s.db == nil {
		return core.Scope{}, fmt.Errorf("sqlstore: scope store is not configured")
	}
	scope.ID = strings.TrimSpace(scope.ID)
	scope.Name = strings.TrimSpace(scope.Name)
	scope.OwnerID = strings.TrimSpace(scope.OwnerID)
	if scope.ID == "" || scope.OwnerID == "" {
		return core.Scope{}, fmt.Errorf("sqlstore: scope id and owner id are required")
	}
	now := time.Now().UTC()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &scopeRecord{
			ID:        scope.ID,
			Name:      scope.Name,
			OwnerID:   scope.OwnerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("owner_id = EXCLUDED.owner_id").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}
		return replaceTargetsTx(ctx, tx, scope.ID, scope.Targets, now)
	})
	if err != nil {
		return core.Scope{}, err
	}
	return s.GetScope(ctx, scope.ID)
}

// SaveTargets replaces the delivery targets of an existing scope.
func (s *ScopeStore) SaveTargets(ctx context.Context, scopeID string, targets []core.DeliveryTarget) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: scope store is not configured")
	}
	scopeID = strings.TrimSpace(scopeID)
	if _, err := s.GetScope(ctx, scopeID); err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return replaceTargetsTx(ctx, tx, scopeID, targets, time.Now().UTC())
	})
}

// DeleteScope soft-deletes the scope; submissions for it are rejected and
// pending fan-outs skip it.
func (s *ScopeStore) DeleteScope(ctx context.Context, scopeID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: scope store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*scopeRecord)(nil)).
		Where("id = ?", strings.TrimSpace(scopeID)).
		Exec(ctx)
	return err
}

func replaceTargetsTx(ctx context.Context, tx bun.Tx, scopeID string, targets []core.DeliveryTarget, now time.Time) error {
	if _, err := tx.NewDelete().
		Model((*deliveryTargetRecord)(nil)).
		Where("scope_id = ?", scopeID).
		Exec(ctx); err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	records := make([]*deliveryTargetRecord, 0, len(targets))
	for i, target := range targets {
		kind, ok := core.ParseTargetKind(string(target.Kind))
		if !ok {
			return fmt.Errorf("sqlstore: unsupported delivery target kind %q", target.Kind)
		}
		if err := core.ValidateDestination(target.Destination); err != nil {
			return err
		}
		records = append(records, &deliveryTargetRecord{
			ID:          uuid.NewString(),
			ScopeID:     scopeID,
			Kind:        string(kind),
			Destination: strings.TrimSpace(target.Destination),
			Secret:      strings.TrimSpace(target.Secret),
			Position:    i,
			CreatedAt:   now,
		})
	}
	_, err := tx.NewInsert().Model(&records).Exec(ctx)
	return err
}
