package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/money"
)

// pipeline carries the state of a single Calculate call. now is captured
// once so every stage evaluates rules at the same instant.
type pipeline struct {
	rules    discount.Repository
	now      time.Time
	items    []discount.CartItem
	customer *discount.Customer
	lg       *zap.Logger

	original decimal.Decimal
	price    decimal.Decimal
	applied  discount.Ledger
}

func (p *pipeline) run(ctx context.Context, code string, payment *discount.PaymentInfo) (*discount.DiscountedPrice, error) {
	p.original = cartTotal(p.items)
	p.price = p.original

	if err := p.applyBrandAndCategory(ctx); err != nil {
		return nil, errors.Wrap(err, "brand and category stage")
	}
	if code != "" {
		if err := p.applyVoucher(ctx, code); err != nil {
			return nil, errors.Wrap(err, "voucher stage")
		}
	}
	if bank, ok := payment.Bank(); ok {
		if err := p.applyBankOffer(ctx, bank); err != nil {
			return nil, errors.Wrap(err, "bank offer stage")
		}
	}

	if p.price.IsNegative() {
		p.price = money.Round(decimal.Zero)
	}

	return &discount.DiscountedPrice{
		OriginalPrice: p.original,
		FinalPrice:    p.price,
		Applied:       p.applied,
		Message:       discount.Summarize(&p.applied, p.original, p.price),
	}, nil
}

// applyBrandAndCategory grants every item the best brand rule and the best
// category rule on its line total. Amounts for the same brand or category
// accumulate in one ledger bucket, and the stage total is subtracted once.
// The stage never takes more than the cart is worth, so the ledger sums to
// original minus final.
func (p *pipeline) applyBrandAndCategory(ctx context.Context) error {
	total := money.Round(decimal.Zero)

	for _, item := range p.items {
		line := money.Line(item.Product.Price, item.Quantity)

		brandRules, err := p.rules.FindBrandDiscounts(ctx, item.Product.Brand)
		if err != nil {
			return errors.Wrapf(err, "find brand discounts for %q", item.Product.Brand)
		}
		if amount := p.capAt(brandRules, line, total); amount.IsPositive() {
			total = money.Add(total, amount)
			p.applied.Merge(discount.BrandKey(item.Product.Brand), amount)
		}

		categoryRules, err := p.rules.FindCategoryDiscounts(ctx, item.Product.Category)
		if err != nil {
			return errors.Wrapf(err, "find category discounts for %q", item.Product.Category)
		}
		if amount := p.capAt(categoryRules, line, total); amount.IsPositive() {
			total = money.Add(total, amount)
			p.applied.Merge(discount.CategoryKey(item.Product.Category), amount)
		}
	}

	p.price = money.Sub(p.price, total)
	return nil
}

// capAt returns the best amount of rules on line, limited to what is left
// of the running price after the stage total so far.
func (p *pipeline) capAt(rules []discount.Rule, line, total decimal.Decimal) decimal.Decimal {
	amount, _ := discount.Best(rules, line, p.now)
	if left := money.Sub(p.price, total); amount.GreaterThan(left) {
		return left
	}
	return amount
}

// applyVoucher applies the voucher named by code to the running price. Any
// failed check leaves the price untouched.
func (p *pipeline) applyVoucher(ctx context.Context, code string) error {
	rule, err := p.rules.FindByName(ctx, code)
	if err != nil {
		if errors.Is(err, discount.ErrRuleNotFound) {
			p.lg.Debug("Voucher not found", zap.String("code", code))
			return nil
		}
		return errors.Wrapf(err, "find voucher %q", code)
	}

	if reason := p.voucherRejection(rule); reason != "" {
		p.lg.Debug("Voucher skipped", zap.String("code", code), zap.String("reason", reason))
		return nil
	}

	amount := discount.Amount(rule, p.price)
	if !amount.IsPositive() {
		return nil
	}
	p.applied.Merge(discount.VoucherKey(code), amount)
	p.price = money.Sub(p.price, amount)
	return nil
}

// voucherRejection returns why rule cannot be applied as a voucher to this
// cart, or an empty string when it can.
func (p *pipeline) voucherRejection(rule *discount.Rule) string {
	switch {
	case !discount.IsUsable(rule, p.now):
		return "not active"
	case !discount.IsEligible(rule, p.customer):
		return "customer tier not eligible"
	case rule.Type != discount.TypeVoucher:
		return "not a voucher"
	case !discount.MeetsMinimum(rule, p.original):
		return "minimum cart value not met"
	case !discount.AppliesToCart(rule, p.items):
		return "no applicable cart item"
	default:
		return ""
	}
}

// applyBankOffer applies the first usable, eligible offer of the bank that
// yields a positive discount. Later offers are not considered.
func (p *pipeline) applyBankOffer(ctx context.Context, bank string) error {
	offers, err := p.rules.FindBankOffers(ctx, bank)
	if err != nil {
		return errors.Wrapf(err, "find bank offers for %q", bank)
	}

	for i := range offers {
		offer := &offers[i]
		if !discount.IsUsable(offer, p.now) || !discount.IsEligible(offer, p.customer) {
			continue
		}
		amount := discount.Amount(offer, p.price)
		if !amount.IsPositive() {
			continue
		}
		p.applied.Merge(discount.BankKey(bank), amount)
		p.price = money.Sub(p.price, amount)
		return nil
	}
	return nil
}
