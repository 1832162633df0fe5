package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestRound(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1.005", want: "1.01"},
		{in: "1.004", want: "1.00"},
		{in: "2.675", want: "2.68"},
		{in: "4000", want: "4000.00"},
		{in: "0", want: "0.00"},
		{in: "199.995", want: "200.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(Round(d(tt.in))))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.True(t, d("1600").Equal(Percent(d("4000"), d("40"))))
	assert.True(t, d("0.07").Equal(Percent(d("0.99"), d("7"))), "0.0693 rounds to 0.07")
	assert.Equal(t, "1380.00", Format(Percent(d("2000.00"), d("69"))))
}

func TestLine(t *testing.T) {
	assert.Equal(t, "4000.00", Format(Line(d("2000.00"), 2)))
	assert.Equal(t, "3.00", Format(Line(d("0.999"), 3)))
}

func TestAddSub(t *testing.T) {
	assert.Equal(t, "0.30", Format(Add(d("0.1"), d("0.2"))))
	assert.Equal(t, "2000.00", Format(Sub(d("4000"), d("2000"))))
}
