package core

import (
	"context"
	"errors"

	glog "github.com/goliatone/go-logger/glog"
)

// ErrFingerprintConflict is returned by SubmissionStore.Insert when the
// storage layer rejects a row because its fingerprint already exists.
var ErrFingerprintConflict = errors.New("core: submission fingerprint already exists")

// ErrSubmissionNotFound is returned by store reads that find no row.
var ErrSubmissionNotFound = errors.New("core: submission not found")

// ErrScopeNotFound is returned by scope directories for unknown scopes.
var ErrScopeNotFound = errors.New("core: scope not found")

type SubmissionStore interface {
	// Insert must enforce fingerprint uniqueness at the storage layer and
	// report a violation as ErrFingerprintConflict.
	Insert(ctx context.Context, record Submission) (Submission, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (Submission, error)
	GetByID(ctx context.Context, id string) (Submission, error)
}

type ScopeDirectory interface {
	GetScope(ctx context.Context, scopeID string) (Scope, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event DeliveryEvent, targets []DeliveryTarget) []DeliveryOutcome
	DispatchTest(ctx context.Context, event DeliveryEvent, target DeliveryTarget) DeliveryOutcome
}

type ReferenceResolver interface {
	Resolve(ctx context.Context, rawURL string) (ReferenceDocument, error)
	ResolveByID(ctx context.Context, canonicalID string) (ReferenceDocument, error)
}

// DispatchScheduler hands a dispatch job off the request path.
type DispatchScheduler interface {
	Schedule(ctx context.Context, job DispatchJob) error
}

type DispatchRunner interface {
	RunDispatch(ctx context.Context, job DispatchJob) error
}

type DeliveryAttemptRecorder interface {
	RecordAttempts(ctx context.Context, attempts []DeliveryAttempt) error
}

type DeliveryAttemptReader interface {
	ListDeliveryAttempts(ctx context.Context, submissionID string) ([]DeliveryAttempt, error)
}

type StoreProvider interface {
	SubmissionStore() SubmissionStore
	ScopeDirectory() ScopeDirectory
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type DispatcherFactory func(cfg Config) (Dispatcher, error)

type ReferenceResolverFactory func(cfg Config) (ReferenceResolver, error)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
