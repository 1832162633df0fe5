// Package discount defines the discount rule model, the cart inputs it is
// evaluated against, and the per-rule evaluation primitives: validity,
// eligibility, applicability and amount calculation.
package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the sources a discount rule can come from.
type Type string

const (
	// TypeBrand applies to cart items of one of the rule's brands.
	TypeBrand Type = "BRAND"
	// TypeCategory applies to cart items of one of the rule's categories.
	TypeCategory Type = "CATEGORY"
	// TypeBankOffer applies when the customer pays with one of the rule's banks.
	TypeBankOffer Type = "BANK_OFFER"
	// TypeVoucher applies when the customer supplies the rule's name as a code.
	TypeVoucher Type = "VOUCHER"
	// TypeCustomerTier is reserved. The pricing pipeline never applies it.
	TypeCustomerTier Type = "CUSTOMER_TIER"
)

// ParseType returns the Type named by s, ignoring case.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeBrand, TypeCategory, TypeBankOffer, TypeVoucher, TypeCustomerTier:
		return t, nil
	default:
		return "", errors.Errorf("unknown discount type %q", s)
	}
}

var (
	// ErrRuleNotFound is returned by Repository.FindByName when no active
	// rule carries the requested name.
	ErrRuleNotFound = errors.New("discount rule not found")
	// ErrDuplicateName is returned by Repository.Save when another rule
	// already uses the same name (case-insensitive).
	ErrDuplicateName = errors.New("discount rule name already in use")
)

// Rule is an immutable discount definition as held by a Repository.
type Rule struct {
	ID   string
	Name string
	Type Type
	// Value is a percentage when IsPercentage is set, a fixed amount otherwise.
	Value        decimal.Decimal
	IsPercentage bool

	// Empty applicability or tier lists mean "unrestricted".
	ApplicableBrands     []string
	ApplicableCategories []string
	ApplicableBanks      []string
	RequiredTiers        []string

	MinCartValue decimal.NullDecimal
	MaxDiscount  decimal.NullDecimal

	// Nil bounds are open.
	ValidFrom *time.Time
	ValidTo   *time.Time

	Active bool
	// Priority orders store results. The pipeline itself never reads it.
	Priority    int
	Description string
}

// Repository is the rule store consumed by the pricing engine. Every finder
// returns only rules that are usable at call time, ordered by priority
// (highest first) and then by name.
type Repository interface {
	FindAllActive(ctx context.Context) ([]Rule, error)
	FindByType(ctx context.Context, t Type) ([]Rule, error)
	// FindByName matches name case-insensitively and returns ErrRuleNotFound
	// when nothing matches.
	FindByName(ctx context.Context, name string) (*Rule, error)
	FindBrandDiscounts(ctx context.Context, brand string) ([]Rule, error)
	FindCategoryDiscounts(ctx context.Context, category string) ([]Rule, error)
	FindBankOffers(ctx context.Context, bank string) ([]Rule, error)

	// Save inserts or replaces a rule, assigning an ID when empty.
	Save(ctx context.Context, rule Rule) (Rule, error)
	DeleteByID(ctx context.Context, id string) error
}
