package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	submissionStore   SubmissionStore
	scopeDirectory    ScopeDirectory
	dispatcher        Dispatcher
	referenceResolver ReferenceResolver
	dispatchScheduler DispatchScheduler
	attemptRecorder   DeliveryAttemptRecorder
	newID             func() string
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	SubmissionStore   SubmissionStore
	ScopeDirectory    ScopeDirectory
	Dispatcher        Dispatcher
	ReferenceResolver ReferenceResolver
	DispatchScheduler DispatchScheduler
	AttemptRecorder   DeliveryAttemptRecorder
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("leads", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("leads"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil && (builder.submissionStore == nil || builder.scopeDirectory == nil) {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if existing, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = existing
		}
		if stores != nil {
			if builder.submissionStore == nil {
				builder.submissionStore = stores.SubmissionStore()
			}
			if builder.scopeDirectory == nil {
				builder.scopeDirectory = stores.ScopeDirectory()
			}
		}
	}
	if builder.attemptRecorder == nil && builder.repositoryFactory != nil {
		if provider, ok := builder.repositoryFactory.(interface {
			DeliveryAttemptRecorder() DeliveryAttemptRecorder
		}); ok {
			builder.attemptRecorder = provider.DeliveryAttemptRecorder()
		}
	}
	if builder.submissionStore == nil {
		builder.submissionStore = NewMemorySubmissionStore()
	}
	if builder.scopeDirectory == nil {
		builder.scopeDirectory = NewStaticScopeDirectory()
	}
	if builder.dispatcher == nil && builder.dispatcherFactory != nil {
		dispatcher, buildErr := builder.dispatcherFactory(finalConfig)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.dispatcher = dispatcher
	}
	if builder.referenceResolver == nil && builder.resolverFactory != nil {
		resolver, buildErr := builder.resolverFactory(finalConfig)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.referenceResolver = resolver
	}

	svc := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		submissionStore:   builder.submissionStore,
		scopeDirectory:    builder.scopeDirectory,
		dispatcher:        builder.dispatcher,
		referenceResolver: builder.referenceResolver,
		dispatchScheduler: builder.dispatchScheduler,
		attemptRecorder:   builder.attemptRecorder,
		newID:             uuid.NewString,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if svc.dispatchScheduler == nil {
		svc.dispatchScheduler = NewAsyncDispatchScheduler(svc, finalConfig.Dispatch.MaxConcurrent, 0)
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		SubmissionStore:   s.submissionStore,
		ScopeDirectory:    s.scopeDirectory,
		Dispatcher:        s.dispatcher,
		ReferenceResolver: s.referenceResolver,
		DispatchScheduler: s.dispatchScheduler,
		AttemptRecorder:   s.attemptRecorder,
	}
}

// WaitForDispatches drains background fan-outs when the scheduler supports
// it. Used on shutdown.
func (s *Service) WaitForDispatches(ctx context.Context) error {
	if s == nil || s.dispatchScheduler == nil {
		return nil
	}
	waiter, ok := s.dispatchScheduler.(interface{ Wait(context.Context) error })
	if !ok {
		return nil
	}
	return waiter.Wait(ctx)
}

func (s *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	if s == nil || s.submissionStore == nil {
		return Submission{}, serviceDependencyError("core: submission store is required")
	}
	record, err := s.submissionStore.GetByID(ctx, id)
	if err != nil {
		return Submission{}, s.mapError(err)
	}
	return record, nil
}

func (s *Service) ListDeliveryAttempts(ctx context.Context, submissionID string) ([]DeliveryAttempt, error) {
	if s == nil {
		return nil, serviceDependencyError("core: service is nil")
	}
	reader, ok := s.attemptRecorder.(DeliveryAttemptReader)
	if !ok || reader == nil {
		return nil, serviceDependencyError("core: delivery attempt ledger is not configured")
	}
	attempts, err := reader.ListDeliveryAttempts(ctx, submissionID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return attempts, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func serviceDependencyError(message string) error {
	return NewDependencyError(message)
}
