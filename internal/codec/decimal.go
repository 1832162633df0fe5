// Package codec encodes discount rules and money values as JSON with
// go-faster/jx.
package codec

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/money"
)

// EncodeMoney writes d as a string with two fractional digits.
func EncodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(money.Format(d))
}

// EncodeNullMoney writes d as money, or null when unset.
func EncodeNullMoney(e *jx.Encoder, d decimal.NullDecimal) {
	if !d.Valid {
		e.Null()
		return
	}
	EncodeMoney(e, d.Decimal)
}

// Bounds on decoded decimals. Amounts beyond them have no meaning for
// prices or discount values, and huge exponents make rounding allocate
// numbers with millions of digits.
const (
	maxDecimalLen = 40
	maxIntDigits  = 18
	maxFracDigits = 8
	maxExponent   = maxIntDigits
	minExponent   = -maxFracDigits
)

// DecodeDecimal reads a decimal given either as a JSON string or a JSON
// number. Numbers are parsed from their literal text, so no precision is
// lost through float64. Values with more than 18 integer digits or more
// than 8 fractional digits are rejected.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("expected decimal, got %s", d.Next())
	}

	if len(raw) > maxDecimalLen {
		return decimal.Decimal{}, errors.Errorf("decimal literal longer than %d characters", maxDecimalLen)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", raw)
	}
	if err := checkBounds(v); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "decimal %q", raw)
	}
	return v, nil
}

// checkBounds inspects only the coefficient and exponent, so it never
// rescales v.
func checkBounds(v decimal.Decimal) error {
	exp := v.Exponent()
	switch {
	case exp > maxExponent:
		return errors.Errorf("exponent %d out of range", exp)
	case exp < minExponent:
		return errors.Errorf("more than %d fractional digits", maxFracDigits)
	}
	if v.IsZero() {
		return nil
	}
	c := v.Coefficient()
	if intDigits := len(c.Abs(c).String()) + int(exp); intDigits > maxIntDigits {
		return errors.Errorf("more than %d integer digits", maxIntDigits)
	}
	return nil
}

// DecodeNullDecimal reads a decimal that may be null.
func DecodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}
