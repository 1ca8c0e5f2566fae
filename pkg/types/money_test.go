package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

func TestMoneyArithmeticAndFormatting(t *testing.T) {
	price := NewMoney(decimal.RequireFromString("19.95"), currency.USD)

	line := price.Times(3)
	if got := line.String(); got != "59.85" {
		t.Fatalf("expected 59.85, got %s", got)
	}

	total, err := ZeroMoney(currency.USD).Add(line)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	total, err = total.Add(NewMoney(decimal.RequireFromString("0.1"), currency.USD))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := total.String(); got != "59.95" {
		t.Fatalf("expected 59.95, got %s", got)
	}
	if total.Code() != "USD" {
		t.Fatalf("expected USD, got %s", total.Code())
	}
	if got := ZeroMoney(currency.USD).String(); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}

func TestMoneyAddRejectsCurrencyMismatch(t *testing.T) {
	usd := NewMoney(decimal.NewFromInt(1), currency.USD)
	eur := NewMoney(decimal.NewFromInt(1), currency.EUR)
	if _, err := usd.Add(eur); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestParseCurrency(t *testing.T) {
	unit, err := ParseCurrency("")
	if err != nil || unit != currency.USD {
		t.Fatalf("blank should default to USD, got %v %v", unit, err)
	}
	unit, err = ParseCurrency("eur")
	if err != nil || unit != currency.EUR {
		t.Fatalf("expected EUR, got %v %v", unit, err)
	}
	if _, err := ParseCurrency("ZZZ"); err == nil {
		t.Fatal("expected invalid currency error")
	}
}
