package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

func TestValidateCode(t *testing.T) {
	future := super69
	future.Name, future.ValidFrom = "SOON69", at(time.Hour)

	inactive := super69
	inactive.Name, inactive.Active = "OFF69", false

	svc := newTestService(append(demoRules, future, inactive)...)
	small := []discount.CartItem{item("PUMA", "T-shirts", "1500.00", 1)}

	tests := []struct {
		name     string
		code     string
		items    []discount.CartItem
		customer *discount.Customer
		want     bool
	}{
		{name: "valid voucher", code: "SUPER69", items: pumaCart(), customer: gold, want: true},
		{name: "case insensitive", code: "super69", items: pumaCart(), customer: platinum, want: true},
		{name: "surrounding whitespace", code: "  SUPER69\t", items: pumaCart(), customer: gold, want: true},
		{name: "tier not eligible", code: "SUPER69", items: pumaCart(), customer: silver},
		{name: "below minimum", code: "SUPER69", items: small, customer: gold},
		{name: "not yet valid", code: "SOON69", items: pumaCart(), customer: gold},
		{name: "inactive", code: "OFF69", items: pumaCart(), customer: gold},
		{name: "unknown", code: "XYZ", items: pumaCart(), customer: gold},
		{name: "empty", code: "", items: pumaCart(), customer: gold},
		{name: "blank", code: "   ", items: pumaCart(), customer: gold},
		{name: "brand rule by name", code: "PUMA40", items: pumaCart(), customer: gold, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.ValidateCode(context.Background(), tt.code, tt.items, tt.customer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestValidateCode_BelowMinimumNotApplied(t *testing.T) {
	svc := newTestService(demoRules...)
	ctx := context.Background()
	cart := []discount.CartItem{item("Adidas", "Track", "1500.00", 1)}

	ok, err := svc.ValidateCode(ctx, "SUPER69", cart, gold)
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := svc.Calculate(ctx, Request{Items: cart, Customer: gold, VoucherCode: "SUPER69"})
	require.NoError(t, err)
	_, applied := result.Applied.Get("VOUCHER_SUPER69")
	assert.False(t, applied)
	assertAmount(t, "1500.00", result.FinalPrice)
}

func TestValidateCode_NonVoucherNotApplied(t *testing.T) {
	svc := newTestService(demoRules...)
	ctx := context.Background()

	ok, err := svc.ValidateCode(ctx, "ICICI10", pumaCart(), gold)
	require.NoError(t, err)
	assert.True(t, ok)

	result, err := svc.Calculate(ctx, Request{Items: pumaCart(), Customer: gold, VoucherCode: "ICICI10"})
	require.NoError(t, err)
	_, applied := result.Applied.Get("VOUCHER_ICICI10")
	assert.False(t, applied)
}

// Validator and voucher stage must agree on every VOUCHER rule.
func TestValidateCode_AgreesWithVoucherStage(t *testing.T) {
	nikeShoes := discount.Rule{
		Name: "NIKESHOES", Type: discount.TypeVoucher, Value: d("300"), Active: true,
		ApplicableBrands: []string{"Nike"}, ApplicableCategories: []string{"Shoes"},
	}
	platinumOnly := discount.Rule{
		Name: "PLAT20", Type: discount.TypeVoucher, Value: d("20"), IsPercentage: true, Active: true,
		RequiredTiers: []string{"PLATINUM"},
	}
	expired := discount.Rule{
		Name: "GONE", Type: discount.TypeVoucher, Value: d("10"), Active: true, ValidTo: at(-time.Minute),
	}
	svc := newTestService(append(demoRules, nikeShoes, platinumOnly, expired)...)

	codes := []string{"SUPER69", "NIKESHOES", "PLAT20", "GONE", "MISSING"}
	carts := map[string][]discount.CartItem{
		"puma":       pumaCart(),
		"small":      {item("Zara", "Jeans", "900.00", 1)},
		"nike shoes": {item("Nike", "Shoes", "3000.00", 1)},
		"nike shirt": {item("Nike", "T-shirts", "1200.00", 2), item("Adidas", "Shoes", "800.00", 1)},
	}
	customers := []*discount.Customer{silver, gold, platinum}

	ctx := context.Background()
	for cartName, cart := range carts {
		for _, code := range codes {
			for _, customer := range customers {
				valid, err := svc.ValidateCode(ctx, code, cart, customer)
				require.NoError(t, err)

				result, err := svc.Calculate(ctx, Request{Items: cart, Customer: customer, VoucherCode: code})
				require.NoError(t, err)
				_, applied := result.Applied.Get(discount.VoucherKey(code))

				assert.Equal(t, valid, applied, "cart=%s code=%s tier=%s", cartName, code, customer.Tier)
			}
		}
	}
}

func TestValidateCode_InputValidation(t *testing.T) {
	svc := newTestService(demoRules...)
	ctx := context.Background()

	_, err := svc.ValidateCode(ctx, "SUPER69", nil, gold)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = svc.ValidateCode(ctx, "SUPER69", pumaCart(), nil)
	require.ErrorIs(t, err, ErrNilCustomer)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, -1, vErr.Item)
}

func TestValidateCode_StoreFailure(t *testing.T) {
	storeErr := errors.New("timeout")
	svc := NewService(&stubRules{err: storeErr})

	ok, err := svc.ValidateCode(context.Background(), "SUPER69", pumaCart(), gold)
	assert.False(t, ok)

	var cErr *CodeValidationError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "SUPER69", cErr.Code)
	require.ErrorIs(t, err, storeErr)
}
