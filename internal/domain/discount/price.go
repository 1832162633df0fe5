package discount

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/money"
)

// NoDiscountsMessage is the summary used when no discount applied.
const NoDiscountsMessage = "No discounts applied."

const currencySymbol = "₹"

// Ledger bucket keys.
func BrandKey(brand string) string       { return "BRAND_" + brand + "_DISCOUNT" }
func CategoryKey(category string) string { return "CATEGORY_" + category + "_DISCOUNT" }
func VoucherKey(code string) string      { return "VOUCHER_" + code }
func BankKey(bank string) string         { return "BANK_" + bank + "_OFFER" }

// DiscountedPrice is the outcome of one pricing call.
type DiscountedPrice struct {
	OriginalPrice decimal.Decimal
	FinalPrice    decimal.Decimal
	Applied       Ledger
	Message       string
}

// Savings returns OriginalPrice - FinalPrice.
func (p *DiscountedPrice) Savings() decimal.Decimal {
	return money.Sub(p.OriginalPrice, p.FinalPrice)
}

// Summarize renders the human-readable breakdown of a pricing result.
func Summarize(applied *Ledger, original, final decimal.Decimal) string {
	if applied.Len() == 0 {
		return NoDiscountsMessage
	}

	var b strings.Builder
	b.WriteString("Applied discounts: ")
	for i, e := range applied.Entries() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Key)
		b.WriteString(" (")
		b.WriteString(currencySymbol)
		b.WriteString(money.Format(e.Amount))
		b.WriteString(")")
	}
	b.WriteString(". Total savings: ")
	b.WriteString(currencySymbol)
	b.WriteString(money.Format(money.Sub(original, final)))
	return b.String()
}
