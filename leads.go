package leads

import (
	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/delivery"
	"github.com/goliatone/go-leads/reference"
)

type Config = core.Config

type DispatchConfig = core.DispatchConfig

type ReferenceConfig = core.ReferenceConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type SubmissionStore = core.SubmissionStore
type ScopeDirectory = core.ScopeDirectory
type Dispatcher = core.Dispatcher
type ReferenceResolver = core.ReferenceResolver
type DispatchScheduler = core.DispatchScheduler

type Candidate = core.Candidate
type Submission = core.Submission
type SubmitRequest = core.SubmitRequest
type SubmitResult = core.SubmitResult
type DispatchTestRequest = core.DispatchTestRequest
type DeliveryTarget = core.DeliveryTarget
type DeliveryOutcome = core.DeliveryOutcome
type ReferenceDocument = core.ReferenceDocument

var (
	WithLogger                   = core.WithLogger
	WithLoggerProvider           = core.WithLoggerProvider
	WithMetricsRecorder          = core.WithMetricsRecorder
	WithErrorFactory             = core.WithErrorFactory
	WithErrorMapper              = core.WithErrorMapper
	WithPersistenceClient        = core.WithPersistenceClient
	WithRepositoryFactory        = core.WithRepositoryFactory
	WithConfigProvider           = core.WithConfigProvider
	WithOptionsResolver          = core.WithOptionsResolver
	WithSubmissionStore          = core.WithSubmissionStore
	WithScopeDirectory           = core.WithScopeDirectory
	WithDispatcher               = core.WithDispatcher
	WithDispatcherFactory        = core.WithDispatcherFactory
	WithReferenceResolver        = core.WithReferenceResolver
	WithReferenceResolverFactory = core.WithReferenceResolverFactory
	WithDispatchScheduler        = core.WithDispatchScheduler
	WithDeliveryAttemptRecorder  = core.WithDeliveryAttemptRecorder
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds the core service with the HTTP dispatcher and the
// multi-provider reference resolver as defaults. Options passed by the caller
// override them.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	defaults := []Option{
		core.WithDispatcherFactory(delivery.FactoryFromConfig),
		core.WithReferenceResolverFactory(reference.FactoryFromConfig),
	}
	return core.NewService(cfg, append(defaults, opts...)...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}
