package main

import (
	"context"
	"fmt"
	"time"

	leads "github.com/goliatone/go-leads"
	"github.com/goliatone/go-leads/adapters/gologger"
	"github.com/goliatone/go-leads/adapters/promadapter"
	"github.com/goliatone/go-leads/core"
	sqlstore "github.com/goliatone/go-leads/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const scopeCacheTTL = 30 * time.Second

// appRuntime bundles what every subcommand needs: the service and the handles
// that must be closed on exit.
type appRuntime struct {
	config   AppConfig
	logs     *gologger.ZapProvider
	client   *persistence.Client
	factory  *sqlstore.RepositoryFactory
	registry *prometheus.Registry
	service  *leads.Service
}

type runtimeOptions struct {
	migrate bool
	extra   []core.Option
}

func newRuntime(ctx context.Context, loader core.RawConfigLoader, opts runtimeOptions) (*appRuntime, error) {
	loaded, err := loadConfig(ctx, loader)
	if err != nil {
		return nil, err
	}
	logs, err := gologger.NewProductionZapProvider(loaded.App.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("leads: logger: %w", err)
	}

	rt := &appRuntime{config: loaded.App, logs: logs, registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt.client, err = openDatabase(ctx, loaded.App.Database)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if opts.migrate {
		if err := rt.client.Migrate(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("leads: migrate: %w", err)
		}
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = scopeCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("leads: scope cache: %w", err)
	}
	rt.factory, err = sqlstore.NewRepositoryFactoryFromPersistence(rt.client, sqlstore.WithScopeCache(cacheService))
	if err != nil {
		rt.Close()
		return nil, err
	}

	options := []core.Option{
		core.WithLoggerProvider(logs),
		core.WithMetricsRecorder(promadapter.NewRecorder(rt.registry)),
		core.WithConfigProvider(core.NewCfgxConfigProvider(loaded.Service)),
		core.WithPersistenceClient(rt.client),
		core.WithRepositoryFactory(rt.factory),
	}
	rt.service, err = leads.NewService(leads.Config{}, append(options, opts.extra...)...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *appRuntime) Close() {
	if rt == nil {
		return
	}
	if rt.client != nil {
		_ = rt.client.Close()
	}
	if rt.logs != nil {
		_ = rt.logs.Sync()
	}
}
