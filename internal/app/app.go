// Package app assembles the adapters, fiscal resolver, gate and audit sinks
// from configuration. pit-fetch, pit-gate and pitd all build through it.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/audit"
	"github.com/Checker-Finance/pitdata/internal/fiscal"
	"github.com/Checker-Finance/pitdata/internal/fundamentals"
	"github.com/Checker-Finance/pitdata/internal/gate"
	"github.com/Checker-Finance/pitdata/internal/graph"
	"github.com/Checker-Finance/pitdata/internal/news"
	"github.com/Checker-Finance/pitdata/internal/publisher"
	"github.com/Checker-Finance/pitdata/internal/qa"
	"github.com/Checker-Finance/pitdata/internal/rate"
	internalsecrets "github.com/Checker-Finance/pitdata/internal/secrets"
	"github.com/Checker-Finance/pitdata/pkg/cache"
	"github.com/Checker-Finance/pitdata/pkg/config"
	"github.com/Checker-Finance/pitdata/pkg/secrets"
	"github.com/Checker-Finance/pitdata/pkg/utils"
)

// Options selects the optional parts of the runtime.
type Options struct {
	// Service names the process in logs, events and audit rows.
	Service string
	// Audit connects the verdict sinks (NATS and, when enabled, Postgres).
	Audit bool
}

// App is the assembled runtime.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *adapter.Registry
	Validator *gate.Validator
	Resolver  *fiscal.Resolver
	// Publisher is nil unless NATS is configured and reachable.
	Publisher *publisher.Publisher
	// Sinks receives every gate verdict. Empty when auditing is off.
	Sinks audit.Fanout

	pool        *pgxpool.Pool
	rdb         *redis.Client
	nc          *nats.Conn
	stopCleaner chan struct{}
}

// Build wires the runtime. Unreachable optional backends (Postgres, Redis,
// NATS) are logged and left out; the affected sources then report config
// gaps instead of failing the process. Only a broken secrets backend is fatal.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Service == "" {
		opts.Service = cfg.ServiceName
	}
	a := &App{Config: cfg, Logger: logger, stopCleaner: make(chan struct{})}

	// --- Credentials (environment, then the secrets backend) ---
	var provider secrets.Provider
	switch cfg.SecretsBackend {
	case "aws":
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		provider = awsProvider
	case "file":
		fileProvider, err := secrets.NewFileProvider(cfg.SecretsFile)
		if err != nil {
			return nil, err
		}
		provider = fileProvider
	}
	credCache := cache.New[internalsecrets.Credentials](cfg.CredentialCacheTTL, 0)
	go credCache.StartCleaner(time.Minute, a.stopCleaner)
	creds := internalsecrets.NewResolver(logger, cfg.Env, provider, credCache)

	// --- Entity graph (Postgres) ---
	var reader graph.Reader
	var periods fiscal.PeriodSource
	if cfg.DatabaseURL != "" {
		logger.Info("app.postgres_connecting", zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
		pool, err := graph.Connect(ctx, cfg.DatabaseURL, graph.PoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		})
		if err == nil {
			err = pool.Ping(ctx)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			logger.Warn("app.postgres_unavailable", zap.Error(err))
		} else {
			a.pool = pool
			store := graph.NewStore(pool, logger)
			reader, periods = store, store
		}
	}

	// --- Fiscal cache (Redis, else process memory) ---
	var fiscalCache fiscal.Cache = fiscal.NewMemoryCache(cfg.FiscalCacheTTL, cfg.FiscalCacheMaxEntries)
	if cfg.RedisAddr != "" {
		rdb, err := fiscal.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			logger.Warn("app.redis_unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			a.rdb = rdb
			fiscalCache = fiscal.NewRedisCache(rdb, "", cfg.FiscalCacheTTL, logger)
		}
	}
	a.Resolver = fiscal.NewResolver(logger, periods, fiscalCache)

	// --- Source adapters ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	httpOpts := func(base string) adapter.HTTPOptions {
		return adapter.HTTPOptions{BaseURL: base, OverfetchFactor: cfg.OverfetchFactor, MaxPages: cfg.MaxPages}
	}

	a.Registry = adapter.NewRegistry(logger,
		graph.NewAdapter(reader, logger, cfg.OverfetchFactor),
		news.NewAdapter(news.NewClient(logger, rateMgr, httpClient), creds, httpOpts(cfg.NewsBaseURL), logger),
		qa.NewAdapter(qa.NewClient(logger, rateMgr, httpClient), creds, httpOpts(cfg.QABaseURL), cfg.QAModel, logger),
		fundamentals.NewAdapter(fundamentals.NewClient(logger, rateMgr, httpClient), creds, httpOpts(cfg.FundamentalsBaseURL), a.Resolver, logger),
	)

	a.Validator = gate.New(GateConfig(cfg), logger)

	if opts.Audit {
		a.connectAudit(cfg, opts.Service)
	}
	return a, nil
}

// GateConfig maps configuration onto the gate policy. Unset lists keep the
// built-in defaults.
func GateConfig(cfg *config.Config) gate.Config {
	gc := gate.DefaultConfig()
	if len(cfg.GateWrappers) > 0 {
		gc.Wrappers = cfg.GateWrappers
	}
	if len(cfg.GateForbiddenKeys) > 0 {
		gc.ForbiddenKeys = cfg.GateForbiddenKeys
	}
	if cfg.GateMaxDepth > 0 {
		gc.MaxDepth = cfg.GateMaxDepth
	}
	return gc
}

func (a *App) connectAudit(cfg *config.Config, service string) {
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(service), nats.Timeout(2*time.Second))
		if err != nil {
			a.Logger.Warn("app.nats_unavailable", zap.Error(err))
		} else if pub, err := publisher.New(nc, cfg.VerdictSubject, service, a.Logger); err != nil {
			a.Logger.Warn("app.publisher_init_failed", zap.Error(err))
			nc.Close()
		} else {
			a.nc = nc
			a.Publisher = pub
			a.Sinks = append(a.Sinks, pub)
		}
	}
	if cfg.AuditVerdicts && a.pool != nil {
		a.Sinks = append(a.Sinks, audit.NewVerdictWriter(a.pool, a.Logger, service))
	}
}

// HealthCheck probes one backend.
type HealthCheck = func(ctx context.Context) error

// HealthChecks returns a probe per connected backend.
func (a *App) HealthChecks() map[string]HealthCheck {
	checks := make(map[string]HealthCheck)
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	if a.pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return a.pool.Ping(ctx) }
	}
	if a.nc != nil {
		checks["nats"] = func(context.Context) error {
			if !a.nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		}
	}
	return checks
}

// Close releases every backend. It is safe to call more than once.
func (a *App) Close() error {
	if a.stopCleaner != nil {
		close(a.stopCleaner)
		a.stopCleaner = nil
	}
	var errs []error
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
		a.nc = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
		a.rdb = nil
	}
	return errors.Join(errs...)
}
