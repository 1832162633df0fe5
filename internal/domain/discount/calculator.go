package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/money"
)

// Amount computes the discount the rule grants on base. Percentage rules are
// clamped to their cap, fixed rules to base. The result is rounded and never
// negative.
func Amount(rule *Rule, base decimal.Decimal) decimal.Decimal {
	if base.IsNegative() {
		base = decimal.Zero
	}

	var amount decimal.Decimal
	if rule.IsPercentage {
		amount = money.Percent(base, rule.Value)
		if rule.MaxDiscount.Valid && amount.GreaterThan(rule.MaxDiscount.Decimal) {
			amount = rule.MaxDiscount.Decimal
		}
	} else {
		amount = rule.Value
		if amount.GreaterThan(base) {
			amount = base
		}
	}

	if amount.IsNegative() {
		return money.Round(decimal.Zero)
	}
	return money.Round(amount)
}

// Best returns the largest discount any usable rule grants on base, or zero
// when none is usable. On equal amounts the earliest rule in the slice wins.
func Best(rules []Rule, base decimal.Decimal, now time.Time) (decimal.Decimal, *Rule) {
	best := money.Round(decimal.Zero)
	var winner *Rule
	for i := range rules {
		rule := &rules[i]
		if !IsUsable(rule, now) {
			continue
		}
		if amount := Amount(rule, base); winner == nil || amount.GreaterThan(best) {
			best, winner = amount, rule
		}
	}
	return best, winner
}
