package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-leads/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db           *bun.DB
	scopeCache   repositorycache.CacheService
	submissions  *SubmissionStore
	scopes       *ScopeStore
	attempts     *DeliveryAttemptStore
	cachedScopes *CachedScopeDirectory
}

type FactoryOption func(*RepositoryFactory)

// WithScopeCache puts scope reads behind the given cache service.
func WithScopeCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.scopeCache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.submissions != nil && f.scopes != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) SubmissionStore() core.SubmissionStore {
	if f == nil || f.submissions == nil {
		return nil
	}
	return f.submissions
}

func (f *RepositoryFactory) ScopeDirectory() core.ScopeDirectory {
	if f == nil {
		return nil
	}
	if f.cachedScopes != nil {
		return f.cachedScopes
	}
	if f.scopes == nil {
		return nil
	}
	return f.scopes
}

func (f *RepositoryFactory) DeliveryAttemptRecorder() core.DeliveryAttemptRecorder {
	if f == nil || f.attempts == nil {
		return nil
	}
	return f.attempts
}

func (f *RepositoryFactory) Submissions() *SubmissionStore {
	if f == nil {
		return nil
	}
	return f.submissions
}

func (f *RepositoryFactory) Scopes() *ScopeStore {
	if f == nil {
		return nil
	}
	return f.scopes
}

func (f *RepositoryFactory) DeliveryAttempts() *DeliveryAttemptStore {
	if f == nil {
		return nil
	}
	return f.attempts
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	submissions, err := NewSubmissionStore(f.db)
	if err != nil {
		return err
	}
	scopes, err := NewScopeStore(f.db)
	if err != nil {
		return err
	}
	attempts, err := NewDeliveryAttemptStore(f.db)
	if err != nil {
		return err
	}
	f.submissions = submissions
	f.scopes = scopes
	f.attempts = attempts
	if f.scopeCache != nil {
		cached, cacheErr := NewCachedScopeDirectory(scopes, f.scopeCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.cachedScopes = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
