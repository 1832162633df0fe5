package discount

import "github.com/shopspring/decimal"

// BrandTier is the market positioning of a brand. It is informational only.
type BrandTier string

const (
	BrandTierPremium BrandTier = "PREMIUM"
	BrandTierRegular BrandTier = "REGULAR"
	BrandTierBudget  BrandTier = "BUDGET"
)

// Product is a catalog item as seen by the pricing engine.
type Product struct {
	ID        string
	Name      string
	Brand     string
	BrandTier BrandTier
	Category  string
	BasePrice decimal.Decimal
	// Price is the current unit price used for every computation.
	Price decimal.Decimal
}

// CartItem is one line of a cart.
type CartItem struct {
	Product  Product
	Quantity int
	Size     string
}

// Customer carries the profile fields available for eligibility checks.
type Customer struct {
	ID                 string
	Tier               string
	Email              string
	TotalPurchaseValue decimal.Decimal
	OrderCount         int
}

// PaymentInfo describes how the customer pays. A nil BankName disables bank
// offers.
type PaymentInfo struct {
	Method   string
	BankName *string
	CardType *string
}

// Bank returns the bank name and whether one was supplied.
func (p *PaymentInfo) Bank() (string, bool) {
	if p == nil || p.BankName == nil {
		return "", false
	}
	return *p.BankName, true
}
