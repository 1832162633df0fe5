package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

const (
	ruleColumns = `id, name, type, value, is_percentage,
		applicable_brands, applicable_categories, applicable_banks, required_tiers,
		min_cart_value, max_discount, valid_from, valid_to, active, priority, description`

	// activeFilter expects the evaluation instant as $1.
	activeFilter = `active
		AND (valid_from IS NULL OR valid_from < $1)
		AND (valid_to IS NULL OR valid_to > $1)`

	ruleOrder = `ORDER BY priority DESC, name COLLATE "C", id`

	listActiveRulesSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` ` + ruleOrder

	listRulesByTypeSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` AND type = $2 ` + ruleOrder

	getRuleByNameSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` AND UPPER(name) = UPPER($2) ` + ruleOrder + ` LIMIT 1`

	listBrandRulesSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` AND type = 'BRAND' AND $2 = ANY(applicable_brands) ` + ruleOrder

	listCategoryRulesSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` AND type = 'CATEGORY' AND $2 = ANY(applicable_categories) ` + ruleOrder

	listBankOffersSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE ` + activeFilter + ` AND type = 'BANK_OFFER' AND $2 = ANY(applicable_banks) ` + ruleOrder

	upsertRuleSQL = `INSERT INTO discount_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			is_percentage = EXCLUDED.is_percentage,
			applicable_brands = EXCLUDED.applicable_brands,
			applicable_categories = EXCLUDED.applicable_categories,
			applicable_banks = EXCLUDED.applicable_banks,
			required_tiers = EXCLUDED.required_tiers,
			min_cart_value = EXCLUDED.min_cart_value,
			max_discount = EXCLUDED.max_discount,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			description = EXCLUDED.description,
			updated_at = NOW()`

	deleteRuleSQL = `DELETE FROM discount_rules WHERE id = $1`

	uniqueViolation = "23505"
)

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository implements discount.Repository backed by PostgreSQL.
type RuleRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRuleRepository returns a RuleRepository that uses the given pool.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool, now: time.Now}
}

// FindAllActive returns every rule usable now.
func (r *RuleRepository) FindAllActive(ctx context.Context) ([]discount.Rule, error) {
	rules, err := r.list(ctx, listActiveRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	return rules, nil
}

// FindByType returns active rules of type t.
func (r *RuleRepository) FindByType(ctx context.Context, t discount.Type) ([]discount.Rule, error) {
	rules, err := r.list(ctx, listRulesByTypeSQL, string(t))
	if err != nil {
		return nil, fmt.Errorf("listing %s rules: %w", t, err)
	}
	return rules, nil
}

// FindByName looks up an active rule by name. The SQL query applies UPPER()
// on both sides, so the name is passed as-is.
func (r *RuleRepository) FindByName(ctx context.Context, name string) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getRuleByNameSQL, r.now(), name)
	if err != nil {
		return nil, fmt.Errorf("finding rule by name %q: %w", name, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrRuleNotFound
		}
		return nil, fmt.Errorf("finding rule by name %q: %w", name, err)
	}
	return &rule, nil
}

// FindBrandDiscounts returns active BRAND rules listing brand.
func (r *RuleRepository) FindBrandDiscounts(ctx context.Context, brand string) ([]discount.Rule, error) {
	rules, err := r.list(ctx, listBrandRulesSQL, brand)
	if err != nil {
		return nil, fmt.Errorf("listing brand rules for %q: %w", brand, err)
	}
	return rules, nil
}

// FindCategoryDiscounts returns active CATEGORY rules listing category.
func (r *RuleRepository) FindCategoryDiscounts(ctx context.Context, category string) ([]discount.Rule, error) {
	rules, err := r.list(ctx, listCategoryRulesSQL, category)
	if err != nil {
		return nil, fmt.Errorf("listing category rules for %q: %w", category, err)
	}
	return rules, nil
}

// FindBankOffers returns active BANK_OFFER rules listing bank.
func (r *RuleRepository) FindBankOffers(ctx context.Context, bank string) ([]discount.Rule, error) {
	rules, err := r.list(ctx, listBankOffersSQL, bank)
	if err != nil {
		return nil, fmt.Errorf("listing bank offers for %q: %w", bank, err)
	}
	return rules, nil
}

// Save upserts rule by ID, generating a UUID when the ID is empty. A name
// already used by another rule yields discount.ErrDuplicateName.
func (r *RuleRepository) Save(ctx context.Context, rule discount.Rule) (discount.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	_, err := r.pool.Exec(ctx, upsertRuleSQL,
		rule.ID, rule.Name, string(rule.Type), rule.Value, rule.IsPercentage,
		nonNil(rule.ApplicableBrands), nonNil(rule.ApplicableCategories),
		nonNil(rule.ApplicableBanks), nonNil(rule.RequiredTiers),
		rule.MinCartValue, rule.MaxDiscount, rule.ValidFrom, rule.ValidTo,
		rule.Active, rule.Priority, rule.Description,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return discount.Rule{}, discount.ErrDuplicateName
		}
		return discount.Rule{}, fmt.Errorf("saving rule %q: %w", rule.Name, err)
	}
	return rule, nil
}

// DeleteByID removes the rule with the given ID. Unknown IDs are ignored.
func (r *RuleRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteRuleSQL, id); err != nil {
		return fmt.Errorf("deleting rule %q: %w", id, err)
	}
	return nil
}

func (r *RuleRepository) list(ctx context.Context, sql string, args ...any) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, sql, append([]any{r.now()}, args...)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRule)
}

func scanRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule     discount.Rule
		ruleType string
	)
	err := row.Scan(
		&rule.ID, &rule.Name, &ruleType, &rule.Value, &rule.IsPercentage,
		&rule.ApplicableBrands, &rule.ApplicableCategories, &rule.ApplicableBanks, &rule.RequiredTiers,
		&rule.MinCartValue, &rule.MaxDiscount, &rule.ValidFrom, &rule.ValidTo,
		&rule.Active, &rule.Priority, &rule.Description,
	)
	rule.Type = discount.Type(ruleType)
	return rule, err
}

// nonNil maps a nil slice to an empty one so it is stored as '{}' rather
// than NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
