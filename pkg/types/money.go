package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an exact amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney builds a Money value.
func NewMoney(amount decimal.Decimal, unit currency.Unit) Money {
	return Money{Amount: amount, Currency: unit}
}

// ZeroMoney returns 0 in the given currency.
func ZeroMoney(unit currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: unit}
}

// ParseCurrency resolves an ISO 4217 code, defaulting to USD when blank.
func ParseCurrency(code string) (currency.Unit, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return currency.USD, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return unit, nil
}

// Times multiplies the amount by an integer quantity.
func (m Money) Times(qty int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(qty))), Currency: m.Currency}
}

// Add sums two amounts. Both must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// String renders the amount with two decimal places, e.g. "19.90".
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// Code returns the ISO currency code.
func (m Money) Code() string {
	return m.Currency.String()
}
