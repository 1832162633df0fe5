package pricing

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// ValidateCode reports whether code can currently be used by customer on the
// given cart. It performs the same gating as the voucher stage without
// computing a discount. Unknown, inactive, ineligible or inapplicable codes
// yield false with a nil error.
func (s *Service) ValidateCode(
	ctx context.Context,
	code string,
	items []discount.CartItem,
	customer *discount.Customer,
) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	if err := validateInputs(items, customer); err != nil {
		return false, err
	}

	ok, err := s.validateCode(ctx, code, items, customer)
	if err != nil {
		zctx.From(ctx).Error("Validate discount code", zap.String("code", code), zap.Error(err))
		return false, &CodeValidationError{Code: code, Err: err}
	}
	return ok, nil
}

func (s *Service) validateCode(
	ctx context.Context,
	code string,
	items []discount.CartItem,
	customer *discount.Customer,
) (bool, error) {
	rule, err := s.rules.FindByName(ctx, code)
	if err != nil {
		if errors.Is(err, discount.ErrRuleNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "find rule by name")
	}

	now := s.now()
	switch {
	case !discount.IsUsable(rule, now):
		return false, nil
	case !discount.IsEligible(rule, customer):
		return false, nil
	case !discount.MeetsMinimum(rule, cartTotal(items)):
		return false, nil
	case rule.Type == discount.TypeVoucher:
		return discount.AppliesToCart(rule, items), nil
	default:
		return true, nil
	}
}
