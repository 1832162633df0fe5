package main

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-discounts/db"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/seed"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		rulesFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&rulesFile, "rules-file", "", "path to rules YAML file (built-in demo rules when empty)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, rulesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, rulesFile string) error {
	rules, err := loadRules(rulesFile)
	if err != nil {
		return errors.Wrap(err, "load rules")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("syncing rules", slog.Int("count", len(rules)))

	res, err := seed.Sync(ctx, postgres.NewRuleRepository(pool), rules)
	if err != nil {
		return errors.Wrap(err, "sync rules")
	}
	for _, name := range res.Skipped {
		slog.Warn("rule name held by an unusable rule, skipped", slog.String("name", name))
	}

	slog.Info("rules synced",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", len(res.Skipped)),
	)
	return nil
}

func loadRules(path string) ([]discount.Rule, error) {
	if path == "" {
		slog.Info("using built-in demo rules")
		return seed.Parse(bytes.NewReader(db.SeedRules), time.Now())
	}
	slog.Info("reading rules file", slog.String("path", path))
	return seed.LoadFile(path, time.Now())
}
