// Package rediscache provides a read-through Redis cache in front of any
// discount.Repository.
package rediscache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/codec"
	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// DefaultTTL bounds how long a cached finder result may be served.
const DefaultTTL = 5 * time.Minute

const defaultPrefix = "pricing:rules:"

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository caches finder results of the wrapped store under versioned
// keys. Writes go to the wrapped store and bump the version, so every prior
// entry becomes unreachable and expires by TTL.
//
// Redis failures never fail a lookup: the wrapped store is queried instead.
type RuleRepository struct {
	next   discount.Repository
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// Option configures a RuleRepository.
type Option func(*RuleRepository)

// WithTTL sets the cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *RuleRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(r *RuleRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRuleRepository wraps next with a cache stored in client.
func NewRuleRepository(next discount.Repository, client redis.UniversalClient, opts ...Option) *RuleRepository {
	r := &RuleRepository{
		next:   next,
		client: client,
		ttl:    DefaultTTL,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindAllActive returns every active rule, cached under one key.
func (r *RuleRepository) FindAllActive(ctx context.Context) ([]discount.Rule, error) {
	return r.cached(ctx, "all", func(ctx context.Context) ([]discount.Rule, error) {
		return r.next.FindAllActive(ctx)
	})
}

// FindByType returns active rules of type t.
func (r *RuleRepository) FindByType(ctx context.Context, t discount.Type) ([]discount.Rule, error) {
	return r.cached(ctx, "type:"+string(t), func(ctx context.Context) ([]discount.Rule, error) {
		return r.next.FindByType(ctx, t)
	})
}

// FindByName caches misses too, so unknown voucher codes do not reach the
// wrapped store on every request.
func (r *RuleRepository) FindByName(ctx context.Context, name string) (*discount.Rule, error) {
	rules, err := r.cached(ctx, "name:"+strings.ToUpper(name), func(ctx context.Context) ([]discount.Rule, error) {
		rule, err := r.next.FindByName(ctx, name)
		if errors.Is(err, discount.ErrRuleNotFound) {
			return []discount.Rule{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []discount.Rule{*rule}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, discount.ErrRuleNotFound
	}
	return &rules[0], nil
}

// FindBrandDiscounts returns active BRAND rules listing brand.
func (r *RuleRepository) FindBrandDiscounts(ctx context.Context, brand string) ([]discount.Rule, error) {
	return r.cached(ctx, "brand:"+brand, func(ctx context.Context) ([]discount.Rule, error) {
		return r.next.FindBrandDiscounts(ctx, brand)
	})
}

// FindCategoryDiscounts returns active CATEGORY rules listing category.
func (r *RuleRepository) FindCategoryDiscounts(ctx context.Context, category string) ([]discount.Rule, error) {
	return r.cached(ctx, "category:"+category, func(ctx context.Context) ([]discount.Rule, error) {
		return r.next.FindCategoryDiscounts(ctx, category)
	})
}

// FindBankOffers returns active BANK_OFFER rules listing bank.
func (r *RuleRepository) FindBankOffers(ctx context.Context, bank string) ([]discount.Rule, error) {
	return r.cached(ctx, "bank:"+bank, func(ctx context.Context) ([]discount.Rule, error) {
		return r.next.FindBankOffers(ctx, bank)
	})
}

// Save writes rule through to the wrapped store and invalidates the cache.
func (r *RuleRepository) Save(ctx context.Context, rule discount.Rule) (discount.Rule, error) {
	saved, err := r.next.Save(ctx, rule)
	if err != nil {
		return discount.Rule{}, err
	}
	r.invalidate(ctx)
	return saved, nil
}

// DeleteByID deletes through to the wrapped store and invalidates the cache.
func (r *RuleRepository) DeleteByID(ctx context.Context, id string) error {
	if err := r.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// Invalidate makes every cached entry unreachable.
func (r *RuleRepository) Invalidate(ctx context.Context) error {
	return r.client.Incr(ctx, r.versionKey()).Err()
}

func (r *RuleRepository) invalidate(ctx context.Context) {
	if err := r.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Invalidate rule cache", zap.Error(err))
	}
}

func (r *RuleRepository) cached(
	ctx context.Context,
	key string,
	load func(ctx context.Context) ([]discount.Rule, error),
) ([]discount.Rule, error) {
	lg := zctx.From(ctx)

	version, err := r.version(ctx)
	if err != nil {
		lg.Warn("Read rule cache version", zap.Error(err))
		return load(ctx)
	}
	fullKey := r.prefix + "v" + strconv.FormatInt(version, 10) + ":" + key

	data, err := r.client.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		rules, decodeErr := codec.UnmarshalRules(data)
		if decodeErr == nil {
			return r.usable(rules), nil
		}
		lg.Warn("Decode cached rules", zap.String("key", fullKey), zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Read rule cache", zap.String("key", fullKey), zap.Error(err))
		return load(ctx)
	}

	rules, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, fullKey, codec.MarshalRules(rules), r.ttl).Err(); err != nil {
		lg.Warn("Write rule cache", zap.String("key", fullKey), zap.Error(err))
	}
	return rules, nil
}

func (r *RuleRepository) version(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, r.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RuleRepository) versionKey() string {
	return r.prefix + "version"
}

// usable drops rules whose validity window closed after they were cached.
func (r *RuleRepository) usable(rules []discount.Rule) []discount.Rule {
	now := r.now()
	out := rules[:0]
	for i := range rules {
		if discount.IsUsable(&rules[i], now) {
			out = append(out, rules[i])
		}
	}
	return out
}
