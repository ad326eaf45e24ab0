package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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
	dispatcherFactory DispatcherFactory
	referenceResolver ReferenceResolver
	resolverFactory   ReferenceResolverFactory
	dispatchScheduler DispatchScheduler
	attemptRecorder   DeliveryAttemptRecorder
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithSubmissionStore(store SubmissionStore) Option {
	return func(b *serviceBuilder) {
		b.submissionStore = store
	}
}

func WithScopeDirectory(directory ScopeDirectory) Option {
	return func(b *serviceBuilder) {
		b.scopeDirectory = directory
	}
}

func WithDispatcher(dispatcher Dispatcher) Option {
	return func(b *serviceBuilder) {
		b.dispatcher = dispatcher
	}
}

// WithDispatcherFactory builds the dispatcher from the resolved config when no
// dispatcher instance was supplied.
func WithDispatcherFactory(factory DispatcherFactory) Option {
	return func(b *serviceBuilder) {
		b.dispatcherFactory = factory
	}
}

func WithReferenceResolver(resolver ReferenceResolver) Option {
	return func(b *serviceBuilder) {
		b.referenceResolver = resolver
	}
}

func WithReferenceResolverFactory(factory ReferenceResolverFactory) Option {
	return func(b *serviceBuilder) {
		b.resolverFactory = factory
	}
}

func WithDispatchScheduler(scheduler DispatchScheduler) Option {
	return func(b *serviceBuilder) {
		b.dispatchScheduler = scheduler
	}
}

func WithDeliveryAttemptRecorder(recorder DeliveryAttemptRecorder) Option {
	return func(b *serviceBuilder) {
		b.attemptRecorder = recorder
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("leads", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader serves a fixed raw map, mostly for tests and
// embedding applications that already parsed their configuration.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

// Resolve merges defaults < loaded config < runtime overrides. Zero values
// in the loaded and runtime layers are treated as unset.
func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configToLayerMap(defaults, true), opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configToLayerMap(loaded, false), opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configToLayerMap(runtime, false), opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge: %w", err)
	}
	return cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	dispatch := map[string]any{}
	if includeZero || cfg.Dispatch.TimeoutSeconds > 0 {
		dispatch["timeout_seconds"] = cfg.Dispatch.TimeoutSeconds
	}
	// max_retries=0 is meaningful, so runtime layers may only raise it.
	if includeZero || cfg.Dispatch.MaxRetries > 0 {
		dispatch["max_retries"] = cfg.Dispatch.MaxRetries
	}
	if includeZero || cfg.Dispatch.InitialBackoffMS > 0 {
		dispatch["initial_backoff_ms"] = cfg.Dispatch.InitialBackoffMS
	}
	if includeZero || cfg.Dispatch.MaxBackoffMS > 0 {
		dispatch["max_backoff_ms"] = cfg.Dispatch.MaxBackoffMS
	}
	if includeZero || cfg.Dispatch.MaxConcurrent > 0 {
		dispatch["max_concurrent"] = cfg.Dispatch.MaxConcurrent
	}
	if includeZero || strings.TrimSpace(cfg.Dispatch.UserAgent) != "" {
		dispatch["user_agent"] = cfg.Dispatch.UserAgent
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}

	reference := map[string]any{}
	if includeZero || len(cfg.Reference.Providers) > 0 {
		reference["providers"] = append([]string(nil), cfg.Reference.Providers...)
	}
	if includeZero || cfg.Reference.TimeoutSeconds > 0 {
		reference["timeout_seconds"] = cfg.Reference.TimeoutSeconds
	}
	if includeZero || cfg.Reference.MaxResponseBytes > 0 {
		reference["max_response_bytes"] = cfg.Reference.MaxResponseBytes
	}
	if len(reference) > 0 {
		layer["reference"] = reference
	}
	return layer
}
