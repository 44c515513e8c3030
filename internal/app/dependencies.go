package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-cafe/internal/analytics"
	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/config"
	"github.com/noah-isme/backend-cafe/internal/db"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/lock"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/promotion"
	"github.com/noah-isme/backend-cafe/internal/ratelimit"
	"github.com/noah-isme/backend-cafe/internal/resilience"
	"github.com/noah-isme/backend-cafe/internal/store/memory"
	"github.com/noah-isme/backend-cafe/internal/store/postgres"
)

// Store is satisfied by both the PostgreSQL and in-memory stores.
type Store interface {
	promotion.Store
	invoice.Store
}

// Options tune how dependencies are opened.
type Options struct {
	AppName        string
	AutoMigrate    bool
	MetricsEnabled bool
	Registerer     prometheus.Registerer
	HTTPBuckets    []float64
	Tracing        bool
}

// Dependencies holds the services shared by the HTTP server.
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Store          Store
	TaskClient     *asynq.Client
	Bus            *events.Bus
	Promotions     *promotion.Service
	Carts          *cart.Service
	Invoices       *invoice.Service
	Analytics      *analytics.Service
	PreviewLimiter *limiter.Limiter
	HTTPMetrics    *obs.HTTPMetrics
	Tracing        bool

	closers []func() error
}

// New opens the configured store, Redis and the task client and wires the services.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger, Tracing: opts.Tracing}

	redisClient, err := OpenRedis(ctx, cfg.RedisURL, opts.MetricsEnabled)
	if err != nil {
		return nil, err
	}
	d.Redis = redisClient
	d.closers = append(d.closers, redisClient.Close)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		if opts.AutoMigrate {
			if err := db.Up(cfg.DatabaseURL); err != nil {
				_ = d.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, opts.AppName, obs.PGXTracer{})
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.DB = pool
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		d.Store = postgres.New(pool, cfg.Location)
	default:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		d.Store = memory.New()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	d.TaskClient = asynq.NewClient(redisOpt)
	d.closers = append(d.closers, d.TaskClient.Close)

	d.PreviewLimiter, err = ratelimit.New(redisClient, cfg.PreviewRateLimit, "ratelimit:preview")
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if opts.MetricsEnabled {
		d.HTTPMetrics = obs.NewHTTPMetrics(opts.AppName, opts.HTTPBuckets, opts.Registerer)
	}

	breaker := resilience.NewBreaker("events", 5, 0.5, 30*time.Second)
	breaker.Logger = logger
	d.Wire(resilience.GuardedEnqueuer{Next: d.TaskClient, Breaker: breaker})
	return d, nil
}

// Wire builds the domain services over Store and Redis, publishing events through pub.
func (d *Dependencies) Wire(pub events.Publisher) {
	cfg := d.Config
	d.Bus = &events.Bus{
		Publisher: pub,
		Queue:     cfg.EventQueue,
		MaxRetry:  cfg.EventMaxRetry,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: d.Logger}},
	}
	d.Promotions = &promotion.Service{
		Store:    d.Store,
		Cache:    promotion.NewCache(d.Redis, cfg.PromotionCacheTTL),
		Engine:   &promotion.Engine{AddOnCategories: cfg.AddOnCategories},
		Events:   d.Bus,
		Logger:   d.Logger.With().Str("component", "promotion").Logger(),
		Location: cfg.Location,
	}
	d.Carts = &cart.Service{Promotions: d.Promotions}
	d.Invoices = &invoice.Service{
		Store:      d.Store,
		Promotions: d.Promotions,
		Events:     d.Bus,
		Locks:      lock.Locker{R: d.Redis, Prefix: "lock:"},
		Logger:     d.Logger.With().Str("component", "invoice").Logger(),
	}
	d.Analytics = &analytics.Service{
		R:            d.Redis,
		Location:     cfg.Location,
		DefaultRange: cfg.AnalyticsDefaultRangeDays,
	}
}

// Close releases everything New opened, newest first.
func (d *Dependencies) Close() error {
	var errs error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, d.closers[i]())
	}
	d.closers = nil
	return errs
}

// OpenRedis connects to Redis with OpenTelemetry instrumentation and verifies it.
func OpenRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
