package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/config"
	"github.com/noah-isme/backend-quote/internal/events"
	"github.com/noah-isme/backend-quote/internal/health"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/ratelimit"
	"github.com/noah-isme/backend-quote/internal/session"
)

// Options controls optional observability wiring.
type Options struct {
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   []float64
	// Registry defaults to the global Prometheus registry.
	Registry       *prometheus.Registry
	TracingEnabled bool
	ServiceName    string
	Pprof          http.Handler
}

// Dependencies enumerates the services shared by the HTTP layer.
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	Redis          *redis.Client
	Registry       *catalog.Registry
	Catalog        *catalog.Service
	CatalogCache   *catalog.Cache
	Sessions       *session.Service
	QuoteMetrics   *obs.QuoteMetrics
	HTTPMetrics    *obs.HTTPMetrics
	MetricsHandler http.Handler
	Limiter        ratelimit.Allower
	Options        Options
}

// Build loads catalogs and wires the quote services. rdb may be nil, in which case catalog
// caching and idempotency are off and rate limiting is per instance.
func Build(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = "quote"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "quote-api"
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	registry, err := catalog.Load(cfg.CatalogDir, catalog.WithDefaultCurrency(cfg.CurrencyCode))
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	if registry.Len() == 0 {
		return nil, errors.New("no catalogs loaded")
	}

	cache := catalog.NewCache(rdb, cfg.CatalogCacheTTL, catalog.WithBreakerStateHook(func(name string, from, to gobreaker.State) {
		logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	}))
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Registry:        registry,
		Cache:           cache,
		DefaultSchedule: cfg.BundleDiscounts,
		Logger:          &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise catalog service: %w", err)
	}

	quoteMetrics := obs.NewQuoteMetrics(opts.MetricsNamespace, registerer)
	for _, topic := range events.DefaultTopics() {
		quoteMetrics.Events.WithLabelValues(topic)
	}
	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger},
		events.CounterNotifier{Counter: quoteMetrics.Events},
	}}
	sessions, err := session.NewService(session.ServiceConfig{
		Store:    session.NewStore(session.StoreConfig{TTL: cfg.SessionTTL, Max: cfg.SessionMax}),
		Registry: registry,
		Schedule: cfg.BundleDiscounts,
		Bus:      bus,
		Metrics:  quoteMetrics,
		Logger:   &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	var limiter ratelimit.Allower
	if rdb != nil {
		limiter = ratelimit.RedisLimiter{Client: rdb, Prefix: "ratelimit:"}
	} else {
		limiter = ratelimit.NewMemoryLimiter("ratelimit:", cfg.RateLimitWindow)
	}

	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		Redis:        rdb,
		Registry:     registry,
		Catalog:      catalogSvc,
		CatalogCache: cache,
		Sessions:     sessions,
		QuoteMetrics: quoteMetrics,
		Limiter:      limiter,
		Options:      opts,
	}
	if opts.MetricsEnabled {
		deps.HTTPMetrics = obs.NewHTTPMetrics(opts.MetricsNamespace, opts.MetricsBuckets, registerer)
		deps.MetricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return deps, nil
}

// Readiness returns the health checker for these dependencies.
func (d *Dependencies) Readiness() health.Checker {
	return readinessChecker{redis: d.Redis, registry: d.Registry}
}

type readinessChecker struct {
	redis    *redis.Client
	registry *catalog.Registry
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return health.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) CheckCatalog(_ context.Context) error {
	if c.registry.Len() == 0 {
		return errors.New("no catalogs loaded")
	}
	return nil
}
