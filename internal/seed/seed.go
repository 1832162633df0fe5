// Package seed loads discount rules from YAML documents.
//
// Window bounds accept an RFC 3339 timestamp or an offset from the load
// instant: a Go duration ("12h", "-90m") or a whole number of days ("30d",
// "-7d").
package seed

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

type fileSchema struct {
	Rules []ruleSchema `yaml:"rules"`
}

type ruleSchema struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Value        string   `yaml:"value"`
	Percentage   bool     `yaml:"percentage"`
	Brands       []string `yaml:"brands"`
	Categories   []string `yaml:"categories"`
	Banks        []string `yaml:"banks"`
	Tiers        []string `yaml:"tiers"`
	MinCartValue string   `yaml:"min_cart_value"`
	MaxDiscount  string   `yaml:"max_discount"`
	ValidFrom    string   `yaml:"valid_from"`
	ValidTo      string   `yaml:"valid_to"`
	// Active defaults to true when omitted.
	Active      *bool  `yaml:"active"`
	Priority    int    `yaml:"priority"`
	Description string `yaml:"description"`
}

// Parse decodes rules from r. Relative window bounds are resolved against now.
func Parse(r io.Reader, now time.Time) ([]discount.Rule, error) {
	var doc fileSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode yaml")
	}

	rules := make([]discount.Rule, 0, len(doc.Rules))
	for i, s := range doc.Rules {
		rule, err := s.rule(now)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %d (%s)", i, s.Name)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadFile parses the YAML file at path.
func LoadFile(path string, now time.Time) ([]discount.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	return Parse(f, now)
}

// Apply saves rules into repo in order and returns the stored copies.
func Apply(ctx context.Context, repo discount.Repository, rules []discount.Rule) ([]discount.Rule, error) {
	saved := make([]discount.Rule, 0, len(rules))
	for _, rule := range rules {
		s, err := repo.Save(ctx, rule)
		if err != nil {
			return saved, errors.Wrapf(err, "save %s", rule.Name)
		}
		saved = append(saved, s)
	}
	return saved, nil
}

// SyncResult counts the outcome of Sync.
type SyncResult struct {
	Created int
	Updated int
	// Skipped lists names held by rules that are no longer usable.
	Skipped []string
}

// Sync saves rules into repo so that repeated runs converge. A rule without
// an ID takes over the ID of the usable rule already carrying its name.
// Names still held by expired or inactive rules are skipped.
func Sync(ctx context.Context, repo discount.Repository, rules []discount.Rule) (SyncResult, error) {
	var res SyncResult
	for _, rule := range rules {
		existing := false
		if rule.ID == "" {
			found, err := repo.FindByName(ctx, rule.Name)
			switch {
			case err == nil:
				rule.ID, existing = found.ID, true
			case !errors.Is(err, discount.ErrRuleNotFound):
				return res, errors.Wrapf(err, "find %s", rule.Name)
			}
		}

		_, err := repo.Save(ctx, rule)
		switch {
		case errors.Is(err, discount.ErrDuplicateName):
			res.Skipped = append(res.Skipped, rule.Name)
		case err != nil:
			return res, errors.Wrapf(err, "save %s", rule.Name)
		case existing:
			res.Updated++
		default:
			res.Created++
		}
	}
	return res, nil
}

func (s ruleSchema) rule(now time.Time) (discount.Rule, error) {
	if strings.TrimSpace(s.Name) == "" {
		return discount.Rule{}, errors.New("name is required")
	}
	t, err := discount.ParseType(s.Type)
	if err != nil {
		return discount.Rule{}, err
	}
	value, err := decimal.NewFromString(s.Value)
	if err != nil {
		return discount.Rule{}, errors.Wrap(err, "value")
	}
	if value.IsNegative() {
		return discount.Rule{}, errors.Errorf("value must not be negative: %s", value)
	}

	rule := discount.Rule{
		ID:                   s.ID,
		Name:                 strings.TrimSpace(s.Name),
		Type:                 t,
		Value:                value,
		IsPercentage:         s.Percentage,
		ApplicableBrands:     s.Brands,
		ApplicableCategories: s.Categories,
		ApplicableBanks:      s.Banks,
		RequiredTiers:        s.Tiers,
		Active:               s.Active == nil || *s.Active,
		Priority:             s.Priority,
		Description:          s.Description,
	}
	if rule.MinCartValue, err = nullDecimal(s.MinCartValue); err != nil {
		return discount.Rule{}, errors.Wrap(err, "min_cart_value")
	}
	if rule.MaxDiscount, err = nullDecimal(s.MaxDiscount); err != nil {
		return discount.Rule{}, errors.Wrap(err, "max_discount")
	}
	if rule.ValidFrom, err = instant(s.ValidFrom, now); err != nil {
		return discount.Rule{}, errors.Wrap(err, "valid_from")
	}
	if rule.ValidTo, err = instant(s.ValidTo, now); err != nil {
		return discount.Rule{}, errors.Wrap(err, "valid_to")
	}
	if rule.ValidFrom != nil && rule.ValidTo != nil && !rule.ValidFrom.Before(*rule.ValidTo) {
		return discount.Rule{}, errors.New("valid_from must be before valid_to")
	}
	return rule, nil
}

func nullDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func instant(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	offset, err := parseOffset(s)
	if err != nil {
		return nil, err
	}
	t := now.Add(offset)
	return &t, nil
}

func parseOffset(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, errors.Errorf("invalid day offset %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("invalid time or offset %q", s)
	}
	return d, nil
}
