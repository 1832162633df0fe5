package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// Template describes the VOUCHER rule created for every ingested code.
type Template struct {
	Value        decimal.Decimal
	IsPercentage bool
	MinCartValue decimal.NullDecimal
	MaxDiscount  decimal.NullDecimal
	Tiers        []string
	// ValidFor bounds the window from ingestion time. Zero leaves it open.
	ValidFor    time.Duration
	Priority    int
	Description string
}

// Validate rejects templates that would produce unusable rules.
func (t Template) Validate() error {
	if t.Value.IsNegative() {
		return errors.Errorf("negative voucher value %s", t.Value)
	}
	if t.IsPercentage && t.Value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.Errorf("percentage voucher value %s exceeds 100", t.Value)
	}
	if t.MinCartValue.Valid && t.MinCartValue.Decimal.IsNegative() {
		return errors.New("negative minimum cart value")
	}
	if t.MaxDiscount.Valid && t.MaxDiscount.Decimal.IsNegative() {
		return errors.New("negative maximum discount")
	}
	if t.ValidFor < 0 {
		return errors.New("negative validity window")
	}
	return nil
}

// Rule builds the active VOUCHER rule named code.
func (t Template) Rule(code string, now time.Time) discount.Rule {
	rule := discount.Rule{
		Name:          code,
		Type:          discount.TypeVoucher,
		Value:         t.Value,
		IsPercentage:  t.IsPercentage,
		RequiredTiers: t.tiers(),
		MinCartValue:  t.MinCartValue,
		MaxDiscount:   t.MaxDiscount,
		Active:        true,
		Priority:      t.Priority,
		Description:   t.Description,
	}
	if t.ValidFor > 0 {
		from, to := now, now.Add(t.ValidFor)
		rule.ValidFrom, rule.ValidTo = &from, &to
	}
	return rule
}

func (t Template) tiers() []string {
	if len(t.Tiers) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		if tier = strings.ToUpper(strings.TrimSpace(tier)); tier != "" {
			out = append(out, tier)
		}
	}
	return out
}

// Stats summarizes a Write run.
type Stats struct {
	Written    int
	Duplicates int
}

// Write saves one rule per code. Codes whose name is already taken are
// counted and skipped.
func Write(ctx context.Context, repo discount.Repository, codes []string, t Template, now time.Time, lg *slog.Logger) (Stats, error) {
	if lg == nil {
		lg = slog.Default()
	}
	lg.Info("writing vouchers", slog.Int("count", len(codes)))

	var stats Stats
	for i, code := range codes {
		_, err := repo.Save(ctx, t.Rule(code, now))
		switch {
		case errors.Is(err, discount.ErrDuplicateName):
			stats.Duplicates++
		case err != nil:
			return stats, errors.Wrapf(err, "save voucher %s", code)
		default:
			stats.Written++
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			lg.Info("write progress", slog.Int("processed", i+1), slog.Int("total", len(codes)))
		}
	}
	return stats, nil
}
