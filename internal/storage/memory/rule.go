// Package memory provides an in-process discount.Repository.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository keeps discount rules in memory. It is safe for concurrent
// use; readers observe either the state before or after a concurrent write.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]discount.Rule
	now   func() time.Time
}

// NewRuleRepository returns an empty RuleRepository.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		rules: make(map[string]discount.Rule),
		now:   time.Now,
	}
}

// FindAllActive returns every rule usable now.
func (r *RuleRepository) FindAllActive(_ context.Context) ([]discount.Rule, error) {
	return r.filter(func(discount.Rule) bool { return true }), nil
}

// FindByType returns active rules of type t.
func (r *RuleRepository) FindByType(_ context.Context, t discount.Type) ([]discount.Rule, error) {
	return r.filter(func(rule discount.Rule) bool { return rule.Type == t }), nil
}

// FindByName returns the active rule whose name equals name ignoring case.
func (r *RuleRepository) FindByName(_ context.Context, name string) (*discount.Rule, error) {
	matches := r.filter(func(rule discount.Rule) bool { return strings.EqualFold(rule.Name, name) })
	if len(matches) == 0 {
		return nil, discount.ErrRuleNotFound
	}
	return &matches[0], nil
}

// FindBrandDiscounts returns active BRAND rules listing brand.
func (r *RuleRepository) FindBrandDiscounts(_ context.Context, brand string) ([]discount.Rule, error) {
	return r.filter(func(rule discount.Rule) bool {
		return rule.Type == discount.TypeBrand && slices.Contains(rule.ApplicableBrands, brand)
	}), nil
}

// FindCategoryDiscounts returns active CATEGORY rules listing category.
func (r *RuleRepository) FindCategoryDiscounts(_ context.Context, category string) ([]discount.Rule, error) {
	return r.filter(func(rule discount.Rule) bool {
		return rule.Type == discount.TypeCategory && slices.Contains(rule.ApplicableCategories, category)
	}), nil
}

// FindBankOffers returns active BANK_OFFER rules listing bank.
func (r *RuleRepository) FindBankOffers(_ context.Context, bank string) ([]discount.Rule, error) {
	return r.filter(func(rule discount.Rule) bool {
		return rule.Type == discount.TypeBankOffer && slices.Contains(rule.ApplicableBanks, bank)
	}), nil
}

// Save inserts or replaces rule. A missing ID is filled with a new UUID.
func (r *RuleRepository) Save(_ context.Context, rule discount.Rule) (discount.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	for id, existing := range r.rules {
		if id != rule.ID && strings.EqualFold(existing.Name, rule.Name) {
			return discount.Rule{}, discount.ErrDuplicateName
		}
	}
	r.rules[rule.ID] = cloneRule(rule)
	return rule, nil
}

// DeleteByID removes the rule with the given ID. Unknown IDs are ignored.
func (r *RuleRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rules, id)
	return nil
}

// Clear removes every rule.
func (r *RuleRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.rules)
}

// filter returns copies of the active rules matching keep, ordered by
// priority descending and then by name.
func (r *RuleRepository) filter(keep func(discount.Rule) bool) []discount.Rule {
	now := r.now()

	r.mu.RLock()
	out := make([]discount.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if discount.IsUsable(&rule, now) && keep(rule) {
			out = append(out, cloneRule(rule))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b discount.Rule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// cloneRule copies the slice and pointer fields so callers cannot mutate
// stored state.
func cloneRule(rule discount.Rule) discount.Rule {
	rule.ApplicableBrands = slices.Clone(rule.ApplicableBrands)
	rule.ApplicableCategories = slices.Clone(rule.ApplicableCategories)
	rule.ApplicableBanks = slices.Clone(rule.ApplicableBanks)
	rule.RequiredTiers = slices.Clone(rule.RequiredTiers)
	if rule.ValidFrom != nil {
		from := *rule.ValidFrom
		rule.ValidFrom = &from
	}
	if rule.ValidTo != nil {
		to := *rule.ValidTo
		rule.ValidTo = &to
	}
	return rule
}
