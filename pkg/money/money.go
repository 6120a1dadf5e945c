// Package money implements the engine's monetary value type: a
// non-negative decimal amount paired with an ISO-4217 currency code.
// Direction (debit/credit, inflow/outflow) is carried separately by
// callers, never as the sign of the amount.
package money

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency is a validated ISO-4217 alphabetic code.
type Currency struct {
	code string
}

// NewCurrency validates and constructs a Currency from a 3-letter code.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(code) {
		return Currency{}, fmt.Errorf("money: invalid currency code %q", code)
	}
	return Currency{code: code}, nil
}

// MustCurrency is NewCurrency for known-good constants.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Currency) String() string { return c.code }

// IsZero reports whether the currency was never set.
func (c Currency) IsZero() bool { return c.code == "" }

var (
	USD = MustCurrency("USD")
	EUR = MustCurrency("EUR")
	GBP = MustCurrency("GBP")
)

// Money is an immutable non-negative amount in a specific currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New constructs a Money value. Returns an error if amount is negative
// or the currency code is invalid.
func New(amount decimal.Decimal, currencyCode string) (Money, error) {
	cur, err := NewCurrency(currencyCode)
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("money: amount must be non-negative, got %s", amount.String())
	}
	return Money{amount: amount, currency: cur}, nil
}

// NewFromString parses a decimal amount string and currency code.
func NewFromString(amount, currencyCode string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", amount, err)
	}
	return New(d, currencyCode)
}

// Zero returns the zero amount in the given currency.
func Zero(currencyCode string) Money {
	m, err := New(decimal.Zero, currencyCode)
	if err != nil {
		return Money{amount: decimal.Zero, currency: MustCurrency("USD")}
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }

// Add returns m+other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("money: currency mismatch %s != %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m-other, erroring if the result would be negative — Money
// cannot represent a negative balance; callers needing signed deltas
// should work in decimal.Decimal directly and wrap the result.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("money: currency mismatch %s != %s", m.currency, other.currency)
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("money: subtraction would yield negative amount")
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Equal reports whether two Money values have the same amount and currency.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// GreaterThan reports whether m > other. Currencies must match.
func (m Money) GreaterThan(other Money) bool {
	return m.currency == other.currency && m.amount.GreaterThan(other.amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// MarshalJSON renders Money as {"amount":"12.34","currency":"USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"amount":"%s","currency":"%s"}`, m.amount.StringFixed(2), m.currency)), nil
}

// UnmarshalJSON parses the {"amount":...,"currency":...} wire shape.
func (m *Money) UnmarshalJSON(data []byte) error {
	var wire struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	parsed, err := NewFromString(wire.Amount, wire.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
