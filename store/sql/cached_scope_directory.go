package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-leads/core"
)

const scopeCacheKeyPrefix = "go-leads::scope::v1"

// scopeMutator is the write side CachedScopeDirectory invalidates around.
type scopeMutator interface {
	RegisterScope(ctx context.Context, scope core.Scope) (core.Scope, error)
	SaveTargets(ctx context.Context, scopeID string, targets []core.DeliveryTarget) error
	DeleteScope(ctx context.Context, scopeID string) error
}

// CachedScopeDirectory fronts a scope directory with go-repository-cache.
// Every submit and every fan-out reads the scope, while writes are rare.
type CachedScopeDirectory struct {
	base  core.ScopeDirectory
	cache repositorycache.CacheService
}

func NewCachedScopeDirectory(base core.ScopeDirectory, cacheService repositorycache.CacheService) (*CachedScopeDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base scope directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: scope cache service is required")
	}
	return &CachedScopeDirectory{base: base, cache: cacheService}, nil
}

// ScopeCacheKey returns go-leads::scope::v1::<scope_id> with the id URL-path
// escaped.
func ScopeCacheKey(scopeID string) (string, error) {
	scopeID = strings.TrimSpace(scopeID)
	if scopeID == "" {
		return "", fmt.Errorf("sqlstore: scope id is required")
	}
	return scopeCacheKeyPrefix + "::" + url.PathEscape(scopeID), nil
}

func (d *CachedScopeDirectory) GetScope(ctx context.Context, scopeID string) (core.Scope, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return core.Scope{}, fmt.Errorf("sqlstore: cached scope directory is not configured")
	}
	cacheKey, err := ScopeCacheKey(scopeID)
	if err != nil {
		return core.Scope{}, core.ErrScopeNotFound
	}
	scope, err := repositorycache.GetOrFetch(ctx, d.cache, cacheKey, func(ctx context.Context) (core.Scope, error) {
		fetched, fetchErr := d.base.GetScope(ctx, strings.TrimSpace(scopeID))
		if fetchErr != nil {
			return core.Scope{}, fetchErr
		}
		return cloneScope(fetched), nil
	})
	if err != nil {
		return core.Scope{}, err
	}
	return cloneScope(scope), nil
}

func (d *CachedScopeDirectory) RegisterScope(ctx context.Context, scope core.Scope) (core.Scope, error) {
	mutator, err := d.mutator()
	if err != nil {
		return core.Scope{}, err
	}
	saved, err := mutator.RegisterScope(ctx, scope)
	if err != nil {
		return core.Scope{}, err
	}
	return saved, d.Invalidate(ctx, saved.ID)
}

func (d *CachedScopeDirectory) SaveTargets(ctx context.Context, scopeID string, targets []core.DeliveryTarget) error {
	mutator, err := d.mutator()
	if err != nil {
		return err
	}
	if err := mutator.SaveTargets(ctx, scopeID, targets); err != nil {
		return err
	}
	return d.Invalidate(ctx, scopeID)
}

func (d *CachedScopeDirectory) DeleteScope(ctx context.Context, scopeID string) error {
	mutator, err := d.mutator()
	if err != nil {
		return err
	}
	if err := mutator.DeleteScope(ctx, scopeID); err != nil {
		return err
	}
	return d.Invalidate(ctx, scopeID)
}

func (d *CachedScopeDirectory) Invalidate(ctx context.Context, scopeID string) error {
	if d == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached scope directory is not configured")
	}
	cacheKey, err := ScopeCacheKey(scopeID)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, cacheKey)
}

func (d *CachedScopeDirectory) mutator() (scopeMutator, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached scope directory is not configured")
	}
	mutator, ok := d.base.(scopeMutator)
	if !ok {
		return nil, fmt.Errorf("sqlstore: base scope directory %T is read-only", d.base)
	}
	return mutator, nil
}

func cloneScope(scope core.Scope) core.Scope {
	cloned := scope
	if scope.Targets != nil {
		cloned.Targets = append([]core.DeliveryTarget(nil), scope.Targets...)
	}
	return cloned
}

var _ core.ScopeDirectory = (*CachedScopeDirectory)(nil)
