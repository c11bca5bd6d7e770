package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/fetcher"
	"github.com/AlissonDuarte/itssafe-backend/internal/geometry"
	"github.com/AlissonDuarte/itssafe-backend/internal/metrics"
	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
	"github.com/AlissonDuarte/itssafe-backend/internal/service"
	"github.com/AlissonDuarte/itssafe-backend/internal/store"
	"github.com/AlissonDuarte/itssafe-backend/internal/tilecache"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// defaultSQLitePath is used when the sqlite driver has no database_url.
const defaultSQLitePath = "itssafe.db"

func initStore(ctx context.Context) (store.Store, error) {
	retry := cfg.Resilience.Retry("store")
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn, retry)
	case "postgres":
		pool := cfg.Store.Pool
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &pool, retry)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newGenerator() (*zones.Generator, error) {
	gen, err := zones.NewGenerator(geometry.New(), cfg.Zones)
	if err != nil {
		return nil, eris.Wrap(err, "zone generator")
	}
	return gen, nil
}

func newSources() *fetcher.Sources {
	return fetcher.New(fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:   cfg.Import.UserAgent,
			RatePerHost: cfg.Import.RatePerHost,
			Retry:       cfg.Resilience.Retry("import download"),
		},
	})
}

// serveEnv holds the collaborators of the HTTP server.
type serveEnv struct {
	Store   store.Store
	Memory  *tilecache.Memory
	Redis   *tilecache.Redis
	Metrics *metrics.Metrics
	Zones   *service.ZoneService
}

func initServeEnv(ctx context.Context) (*serveEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &serveEnv{Store: st, Metrics: metrics.New()}

	var levels []tilecache.Backend
	if cfg.Cache.MemoryEntries > 0 {
		env.Memory = tilecache.NewMemory(cfg.Cache.MemoryEntries, cfg.Service.CacheTTL)
		levels = append(levels, env.Memory)
	}
	if client := tilecache.OpenRedis(cfg.Cache.Redis); client != nil {
		breaker := resilience.NewCircuitBreaker(cfg.Resilience.Breaker("redis"))
		env.Redis = tilecache.NewRedis(client, breaker, cfg.Service.CacheTTL)
		levels = append(levels, env.Redis)
		if err := env.Redis.Ping(ctx); err != nil {
			zap.L().Warn("redis unreachable, continuing with the local cache", zap.Error(err))
		}
	}

	var cache tilecache.Cache
	if len(levels) > 0 {
		cache = tilecache.New(tilecache.NewChain(levels...))
	}
	env.Zones = service.New(st, gen, cache, env.Metrics, cfg.Service)
	return env, nil
}

// Health reports whether the store answers.
func (e *serveEnv) Health(ctx context.Context) error {
	return e.Store.Ping(ctx)
}

func (e *serveEnv) Close() {
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			zap.L().Warn("close redis", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
