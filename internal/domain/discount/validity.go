package discount

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// IsUsable reports whether the rule is active and now lies strictly inside
// its validity window. A rule is not usable at the exact instant of either
// bound.
func IsUsable(rule *Rule, now time.Time) bool {
	if !rule.Active {
		return false
	}
	if rule.ValidFrom != nil && !now.After(*rule.ValidFrom) {
		return false
	}
	if rule.ValidTo != nil && !now.Before(*rule.ValidTo) {
		return false
	}
	return true
}

// IsEligible reports whether the customer's tier satisfies the rule. Rules
// without required tiers are open to everyone; otherwise the tier must match
// one entry exactly.
func IsEligible(rule *Rule, customer *Customer) bool {
	if len(rule.RequiredTiers) == 0 {
		return true
	}
	if customer == nil {
		return false
	}
	return slices.Contains(rule.RequiredTiers, customer.Tier)
}

// MeetsMinimum reports whether cartTotal reaches the rule's minimum cart
// value. Rules without a minimum always pass.
func MeetsMinimum(rule *Rule, cartTotal decimal.Decimal) bool {
	if !rule.MinCartValue.Valid {
		return true
	}
	return !cartTotal.LessThan(rule.MinCartValue.Decimal)
}

// AppliesToCart reports whether the rule's brand and category restrictions
// match the cart. An unrestricted rule applies to any cart; a restricted one
// needs at least one item matching both restrictions at once.
func AppliesToCart(rule *Rule, items []CartItem) bool {
	if len(rule.ApplicableBrands) == 0 && len(rule.ApplicableCategories) == 0 {
		return true
	}
	for _, item := range items {
		brandOK := len(rule.ApplicableBrands) == 0 ||
			slices.Contains(rule.ApplicableBrands, item.Product.Brand)
		categoryOK := len(rule.ApplicableCategories) == 0 ||
			slices.Contains(rule.ApplicableCategories, item.Product.Category)
		if brandOK && categoryOK {
			return true
		}
	}
	return false
}
