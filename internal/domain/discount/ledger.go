package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/money"
)

// Entry is one ledger line.
type Entry struct {
	Key    string
	Amount decimal.Decimal
}

// Ledger maps discount bucket keys to applied amounts and remembers the order
// in which keys were first recorded. The zero value is ready to use.
type Ledger struct {
	keys    []string
	amounts map[string]decimal.Decimal
}

// Merge adds amount to the bucket key, creating it at the end of the ledger
// if absent. Non-positive amounts are ignored.
func (l *Ledger) Merge(key string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if l.amounts == nil {
		l.amounts = make(map[string]decimal.Decimal)
	}
	prev, ok := l.amounts[key]
	if !ok {
		l.keys = append(l.keys, key)
		prev = decimal.Zero
	}
	l.amounts[key] = money.Add(prev, amount)
}

// Get returns the amount recorded under key.
func (l *Ledger) Get(key string) (decimal.Decimal, bool) {
	v, ok := l.amounts[key]
	return v, ok
}

// Len returns the number of buckets.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// Keys returns bucket keys in insertion order.
func (l *Ledger) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Entries returns all buckets in insertion order.
func (l *Ledger) Entries() []Entry {
	entries := make([]Entry, len(l.keys))
	for i, k := range l.keys {
		entries[i] = Entry{Key: k, Amount: l.amounts[k]}
	}
	return entries
}

// Total returns the rounded sum of all buckets.
func (l *Ledger) Total() decimal.Decimal {
	total := money.Round(decimal.Zero)
	for _, k := range l.keys {
		total = money.Add(total, l.amounts[k])
	}
	return total
}
