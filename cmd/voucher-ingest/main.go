package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/ingest"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
)

type flags struct {
	dataDir     string
	pattern     string
	databaseURL string
	dryRun      bool

	opts ingest.Options

	value       string
	percentage  bool
	minCart     string
	maxDiscount string
	tiers       string
	validFor    time.Duration
	priority    int
	description string
}

func main() {
	f := flags{opts: ingest.DefaultOptions()}

	flag.StringVar(&f.dataDir, "data-dir", "data", "directory containing gzip code lists")
	flag.StringVar(&f.pattern, "pattern", "*.gz", "glob selecting code lists inside data-dir")
	flag.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&f.dryRun, "dry-run", false, "collect codes without writing to the database")

	flag.IntVar(&f.opts.MinSources, "min-sources", f.opts.MinSources, "number of lists a code must appear in")
	flag.IntVar(&f.opts.MinLen, "min-len", f.opts.MinLen, "minimum code length")
	flag.IntVar(&f.opts.MaxLen, "max-len", f.opts.MaxLen, "maximum code length")
	flag.UintVar(&f.opts.Capacity, "bloom-capacity", f.opts.Capacity, "expected codes per list")

	flag.StringVar(&f.value, "value", "10", "voucher discount value")
	flag.BoolVar(&f.percentage, "percentage", true, "treat value as a percentage")
	flag.StringVar(&f.minCart, "min-cart", "", "minimum cart value (empty for none)")
	flag.StringVar(&f.maxDiscount, "max-discount", "", "discount cap (empty for none)")
	flag.StringVar(&f.tiers, "tiers", "", "comma-separated customer tiers (empty for all)")
	flag.DurationVar(&f.validFor, "valid-for", 0, "validity window from now (0 for open-ended)")
	flag.IntVar(&f.priority, "priority", 0, "rule priority")
	flag.StringVar(&f.description, "description", "Promo code", "rule description")
	flag.Parse()

	if f.databaseURL == "" {
		f.databaseURL = os.Getenv("DATABASE_URL")
	}
	if f.databaseURL == "" && !f.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, f); err != nil {
		slog.Error("voucher ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher ingest completed successfully")
}

func run(ctx context.Context, f flags) error {
	tmpl, err := f.template()
	if err != nil {
		return errors.Wrap(err, "voucher template")
	}

	files, err := filepath.Glob(filepath.Join(f.dataDir, f.pattern))
	if err != nil {
		return errors.Wrap(err, "list code files")
	}
	slog.Info("collecting codes", slog.Int("files", len(files)), slog.Int("min_sources", f.opts.MinSources))

	codes, err := ingest.Collect(ctx, files, f.opts)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(codes)))

	if len(codes) == 0 || f.dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, f.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := ingest.Write(ctx, postgres.NewRuleRepository(pool), codes, tmpl, time.Now(), slog.Default())
	if err != nil {
		return errors.Wrap(err, "write vouchers")
	}

	slog.Info("vouchers written", slog.Int("written", stats.Written), slog.Int("duplicates", stats.Duplicates))
	return nil
}

func (f flags) template() (ingest.Template, error) {
	value, err := decimal.NewFromString(f.value)
	if err != nil {
		return ingest.Template{}, errors.Wrap(err, "parse value")
	}
	minCart, err := optionalDecimal(f.minCart)
	if err != nil {
		return ingest.Template{}, errors.Wrap(err, "parse min-cart")
	}
	maxDiscount, err := optionalDecimal(f.maxDiscount)
	if err != nil {
		return ingest.Template{}, errors.Wrap(err, "parse max-discount")
	}

	var tiers []string
	if f.tiers != "" {
		tiers = strings.Split(f.tiers, ",")
	}

	t := ingest.Template{
		Value:        value,
		IsPercentage: f.percentage,
		MinCartValue: minCart,
		MaxDiscount:  maxDiscount,
		Tiers:        tiers,
		ValidFor:     f.validFor,
		Priority:     f.priority,
		Description:  f.description,
	}
	return t, t.Validate()
}

func optionalDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
