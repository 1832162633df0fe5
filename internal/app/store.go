package app

import (
	"bytes"
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/db"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/seed"
	"github.com/xenking/kart-discounts/internal/storage/memory"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
	"github.com/xenking/kart-discounts/internal/storage/rediscache"
	"github.com/xenking/kart-discounts/pkg/health"
)

// backends holds the rule store and the optional shared Redis client.
type backends struct {
	rules discount.Repository
	redis *redis.Client
	close []func()
}

func (b *backends) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

// openBackends selects the rule store: PostgreSQL when a database URL is set,
// otherwise an in-memory store seeded from the configured rule file. A Redis
// URL adds a read-through cache in front of either.
func openBackends(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	hc *health.Health,
) (_ *backends, rerr error) {
	b := &backends{}
	defer func() {
		if rerr != nil {
			b.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		b.close = append(b.close, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		hc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
		b.rules = postgres.NewRuleRepository(pool)
		lg.Info("Using PostgreSQL rule store")
	} else {
		repo := memory.NewRuleRepository()
		if !cfg.SkipSeed {
			n, err := seedMemory(ctx, repo, cfg.SeedFile)
			if err != nil {
				return nil, errors.Wrap(err, "seed rules")
			}
			lg.Info("Seeded in-memory rule store", zap.Int("rules", n), zap.String("file", cfg.SeedFile))
		}
		b.rules = repo
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		b.close = append(b.close, func() { _ = client.Close() })

		if err := redisotel.InstrumentTracing(client, redisotel.WithTracerProvider(tp)); err != nil {
			return nil, errors.Wrap(err, "instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(client, redisotel.WithMeterProvider(mp)); err != nil {
			return nil, errors.Wrap(err, "instrument redis metrics")
		}

		b.redis = client
		b.rules = rediscache.NewRuleRepository(b.rules, client, rediscache.WithTTL(cfg.CacheTTL))
		lg.Info("Using Redis rule cache", zap.Duration("ttl", cfg.CacheTTL))
	}

	return b, nil
}

func seedMemory(ctx context.Context, repo discount.Repository, path string) (int, error) {
	var (
		rules []discount.Rule
		err   error
	)
	if path != "" {
		rules, err = seed.LoadFile(path, time.Now())
	} else {
		rules, err = seed.Parse(bytes.NewReader(db.SeedRules), time.Now())
	}
	if err != nil {
		return 0, err
	}
	saved, err := seed.Apply(ctx, repo, rules)
	return len(saved), err
}
