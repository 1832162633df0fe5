package rediscache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/storage/memory"
)

// countingRepo counts finder calls that reach the wrapped store.
type countingRepo struct {
	discount.Repository
	calls atomic.Int32
}

func (c *countingRepo) FindAllActive(ctx context.Context) ([]discount.Rule, error) {
	c.calls.Add(1)
	return c.Repository.FindAllActive(ctx)
}

func (c *countingRepo) FindByName(ctx context.Context, name string) (*discount.Rule, error) {
	c.calls.Add(1)
	return c.Repository.FindByName(ctx, name)
}

func (c *countingRepo) FindBrandDiscounts(ctx context.Context, brand string) ([]discount.Rule, error) {
	c.calls.Add(1)
	return c.Repository.FindBrandDiscounts(ctx, brand)
}

func setup(t *testing.T) (*RuleRepository, *countingRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepo{Repository: memory.NewRuleRepository()}
	ctx := context.Background()
	for _, rule := range []discount.Rule{
		{Name: "PUMA40", Type: discount.TypeBrand, Value: decimal.NewFromInt(40), IsPercentage: true,
			ApplicableBrands: []string{"PUMA"}, Active: true, Priority: 10},
		{Name: "SUPER69", Type: discount.TypeVoucher, Value: decimal.NewFromInt(69), IsPercentage: true,
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(5000)), Active: true, Priority: 15},
	} {
		_, err := inner.Save(ctx, rule)
		require.NoError(t, err)
	}

	return NewRuleRepository(inner, client, WithTTL(time.Minute)), inner, mr
}

func TestRuleRepository_ReadThrough(t *testing.T) {
	cache, inner, _ := setup(t)
	ctx := context.Background()

	first, err := cache.FindBrandDiscounts(ctx, "PUMA")
	require.NoError(t, err)
	second, err := cache.FindBrandDiscounts(ctx, "PUMA")
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.calls.Load())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "PUMA40", second[0].Name)
	assert.True(t, first[0].Value.Equal(second[0].Value))

	_, err = cache.FindBrandDiscounts(ctx, "Nike")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestRuleRepository_FindByName(t *testing.T) {
	cache, inner, _ := setup(t)
	ctx := context.Background()

	rule, err := cache.FindByName(ctx, "super69")
	require.NoError(t, err)
	assert.Equal(t, "SUPER69", rule.Name)
	assert.Equal(t, "5000.00", rule.MaxDiscount.Decimal.StringFixed(2))

	_, err = cache.FindByName(ctx, "SUPER69")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())

	for range 2 {
		_, err = cache.FindByName(ctx, "UNKNOWN")
		require.ErrorIs(t, err, discount.ErrRuleNotFound)
	}
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestRuleRepository_WritesInvalidate(t *testing.T) {
	cache, inner, _ := setup(t)
	ctx := context.Background()

	rules, err := cache.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	saved, err := cache.Save(ctx, discount.Rule{
		Name: "NIKE30", Type: discount.TypeBrand, Value: decimal.NewFromInt(30), Active: true,
	})
	require.NoError(t, err)

	rules, err = cache.FindAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 3)
	assert.EqualValues(t, 2, inner.calls.Load())

	require.NoError(t, cache.DeleteByID(ctx, saved.ID))
	rules, err = cache.FindAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.EqualValues(t, 3, inner.calls.Load())

	_, err = cache.Save(ctx, discount.Rule{Name: "puma40", Type: discount.TypeBrand})
	require.ErrorIs(t, err, discount.ErrDuplicateName)
}

func TestRuleRepository_TTL(t *testing.T) {
	cache, inner, mr := setup(t)
	ctx := context.Background()

	_, err := cache.FindAllActive(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.FindAllActive(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestRuleRepository_DropsExpiredCachedRules(t *testing.T) {
	cache, inner, _ := setup(t)
	ctx := context.Background()

	validTo := time.Now().Add(time.Hour)
	_, err := inner.Save(ctx, discount.Rule{
		Name: "FLASH", Type: discount.TypeBrand, Value: decimal.NewFromInt(5),
		ApplicableBrands: []string{"PUMA"}, ValidTo: &validTo, Active: true,
	})
	require.NoError(t, err)

	rules, err := cache.FindBrandDiscounts(ctx, "PUMA")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	cache.now = func() time.Time { return validTo }
	rules, err = cache.FindBrandDiscounts(ctx, "PUMA")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "PUMA40", rules[0].Name)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRuleRepository_FallsBackWhenRedisDown(t *testing.T) {
	cache, inner, mr := setup(t)
	ctx := context.Background()

	mr.Close()

	rules, err := cache.FindBrandDiscounts(ctx, "PUMA")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	_, err = cache.Save(ctx, discount.Rule{Name: "HDFC15", Type: discount.TypeBankOffer, Active: true})
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Error(t, cache.Invalidate(ctx))
}

func TestRuleRepository_CorruptEntryReloads(t *testing.T) {
	cache, inner, mr := setup(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(defaultPrefix+"v0:all", "{not json"))

	rules, err := cache.FindAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.EqualValues(t, 1, inner.calls.Load())
}
