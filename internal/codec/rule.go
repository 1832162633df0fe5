package codec

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// EncodeRule writes rule as a JSON object.
func EncodeRule(e *jx.Encoder, rule discount.Rule) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(rule.ID)
	e.FieldStart("name")
	e.Str(rule.Name)
	e.FieldStart("type")
	e.Str(string(rule.Type))
	e.FieldStart("discountValue")
	e.Str(rule.Value.String())
	e.FieldStart("isPercentage")
	e.Bool(rule.IsPercentage)
	encodeStrings(e, "applicableBrands", rule.ApplicableBrands)
	encodeStrings(e, "applicableCategories", rule.ApplicableCategories)
	encodeStrings(e, "applicableBanks", rule.ApplicableBanks)
	encodeStrings(e, "requiredCustomerTiers", rule.RequiredTiers)
	e.FieldStart("minimumCartValue")
	EncodeNullMoney(e, rule.MinCartValue)
	e.FieldStart("maximumDiscountAmount")
	EncodeNullMoney(e, rule.MaxDiscount)
	encodeTime(e, "validFrom", rule.ValidFrom)
	encodeTime(e, "validTo", rule.ValidTo)
	e.FieldStart("isActive")
	e.Bool(rule.Active)
	e.FieldStart("priority")
	e.Int(rule.Priority)
	if rule.Description != "" {
		e.FieldStart("description")
		e.Str(rule.Description)
	}
	e.ObjEnd()
}

// DecodeRule reads a rule object written by EncodeRule. Unknown fields are
// skipped.
func DecodeRule(d *jx.Decoder) (discount.Rule, error) {
	var rule discount.Rule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			rule.ID, err = d.Str()
		case "name":
			rule.Name, err = d.Str()
		case "type":
			var s string
			if s, err = d.Str(); err == nil {
				rule.Type, err = discount.ParseType(s)
			}
		case "discountValue":
			rule.Value, err = DecodeDecimal(d)
		case "isPercentage":
			rule.IsPercentage, err = d.Bool()
		case "applicableBrands":
			rule.ApplicableBrands, err = decodeStrings(d)
		case "applicableCategories":
			rule.ApplicableCategories, err = decodeStrings(d)
		case "applicableBanks":
			rule.ApplicableBanks, err = decodeStrings(d)
		case "requiredCustomerTiers":
			rule.RequiredTiers, err = decodeStrings(d)
		case "minimumCartValue":
			rule.MinCartValue, err = DecodeNullDecimal(d)
		case "maximumDiscountAmount":
			rule.MaxDiscount, err = DecodeNullDecimal(d)
		case "validFrom":
			rule.ValidFrom, err = decodeTime(d)
		case "validTo":
			rule.ValidTo, err = decodeTime(d)
		case "isActive":
			rule.Active, err = d.Bool()
		case "priority":
			rule.Priority, err = d.Int()
		case "description":
			rule.Description, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return discount.Rule{}, errors.Wrap(err, "decode rule")
	}
	return rule, nil
}

// MarshalRules encodes rules as a JSON array.
func MarshalRules(rules []discount.Rule) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	EncodeRules(e, rules)
	return append([]byte(nil), e.Bytes()...)
}

// EncodeRules writes rules as a JSON array.
func EncodeRules(e *jx.Encoder, rules []discount.Rule) {
	e.ArrStart()
	for _, rule := range rules {
		EncodeRule(e, rule)
	}
	e.ArrEnd()
}

// UnmarshalRules decodes a JSON array written by MarshalRules.
func UnmarshalRules(data []byte) ([]discount.Rule, error) {
	rules := []discount.Rule{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		rule, err := DecodeRule(d)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// MarshalRule encodes a single rule.
func MarshalRule(rule discount.Rule) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	EncodeRule(e, rule)
	return append([]byte(nil), e.Bytes()...)
}

// UnmarshalRule decodes a single rule written by MarshalRule.
func UnmarshalRule(data []byte) (discount.Rule, error) {
	return DecodeRule(jx.DecodeBytes(data))
}

func encodeStrings(e *jx.Encoder, field string, values []string) {
	if len(values) == 0 {
		return
	}
	e.FieldStart(field)
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeTime(e *jx.Encoder, field string, t *time.Time) {
	if t == nil {
		return
	}
	e.FieldStart(field)
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
