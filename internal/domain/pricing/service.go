// Package pricing implements the discount stacking pipeline and the discount
// code validator on top of a discount.Repository.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/money"
)

// Request holds the input of one pricing call.
type Request struct {
	Items    []discount.CartItem
	Customer *discount.Customer
	// VoucherCode is optional; blank means no voucher.
	VoucherCode string
	// Payment is optional; nil or a nil bank name skips bank offers.
	Payment *discount.PaymentInfo
}

// Service prices carts against the rules of a Repository. It holds no
// mutable state and is safe for concurrent use.
type Service struct {
	rules discount.Repository
	now   func() time.Time
}

// NewService creates a Service backed by the given rule store.
func NewService(rules discount.Repository) *Service {
	return &Service{rules: rules, now: time.Now}
}

// Calculate runs the brand/category, voucher and bank offer stages in order
// and returns the final price with its ordered discount breakdown.
//
// Input problems are reported as *ValidationError; any other failure is a
// *CalculationError.
func (s *Service) Calculate(ctx context.Context, req Request) (*discount.DiscountedPrice, error) {
	if err := validateInputs(req.Items, req.Customer); err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	p := &pipeline{
		rules:    s.rules,
		now:      s.now(),
		items:    req.Items,
		customer: req.Customer,
		lg:       lg,
	}

	result, err := p.run(ctx, strings.TrimSpace(req.VoucherCode), req.Payment)
	if err != nil {
		lg.Error("Calculate cart discounts", zap.Error(err))
		return nil, &CalculationError{Err: err}
	}
	return result, nil
}

func validateInputs(items []discount.CartItem, customer *discount.Customer) error {
	if len(items) == 0 {
		return &ValidationError{Err: ErrEmptyCart, Item: -1}
	}
	if customer == nil {
		return &ValidationError{Err: ErrNilCustomer, Item: -1}
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return &ValidationError{Err: errors.Errorf("quantity must be greater than 0 for product %s", item.Product.ID), Item: i}
		}
		if item.Product.Price.IsNegative() {
			return &ValidationError{Err: errors.Errorf("price must not be negative for product %s", item.Product.ID), Item: i}
		}
	}
	return nil
}

// cartTotal returns the rounded sum of every line total.
func cartTotal(items []discount.CartItem) decimal.Decimal {
	total := money.Round(decimal.Zero)
	for _, item := range items {
		total = money.Add(total, money.Line(item.Product.Price, item.Quantity))
	}
	return total
}
