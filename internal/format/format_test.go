package format

import (
	"testing"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "฿0"},
		{"12345", "฿12,345"},
		{"12345.49", "฿12,345"},
		{"12345.5", "฿12,346"},
		{"999", "฿999"},
		{"1234567.8", "฿1,234,568"},
		{"-1200", "฿-1,200"},
		{"-0.4", "฿0"},
		{"12345678901234567890123", "฿12,345,678,901,234,567,890,123"},
		{"-98765432109876543210.6", "฿-98,765,432,109,876,543,211"},
	}
	for _, tt := range tests {
		if got := Currency(decimal.RequireFromString(tt.in), DefaultCurrencySymbol); got != tt.want {
			t.Errorf("Currency(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Currency(decimal.NewFromInt(5), "$"); got != "$5" {
		t.Errorf("custom symbol: got %q", got)
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"4.5", "4.50"},
		{"1234.567", "1,234.57"},
		{"1000000", "1,000,000.00"},
		{"-98765.4", "-98,765.40"},
		{"123456789012345678901", "123,456,789,012,345,678,901.00"},
	}
	for _, tt := range tests {
		if got := Amount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("Amount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionalAmount(t *testing.T) {
	if got := OptionalAmount(decimal.NewFromInt(1200), true); got != "1,200.00" {
		t.Errorf("known: got %q", got)
	}
	if got := OptionalAmount(decimal.NewFromInt(1200), false); got != "" {
		t.Errorf("unknown: got %q", got)
	}
	if got := OptionalQuantity(decimal.RequireFromString("2.5"), true); got != "2.5" {
		t.Errorf("quantity: got %q", got)
	}
	if got := OptionalQuantity(decimal.Zero, false); got != "" {
		t.Errorf("unknown quantity: got %q", got)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(core.NewMargin(40)); got != "40.00%" {
		t.Errorf("got %q", got)
	}
	if got := Percent(core.NewMargin(-12.345)); got != "-12.35%" && got != "-12.34%" {
		t.Errorf("got %q", got)
	}
	if got := Percent(core.UndefinedMargin()); got != "n/a" {
		t.Errorf("undefined margin: got %q", got)
	}
}

func TestCount(t *testing.T) {
	if got := Count(1234567); got != "1,234,567" {
		t.Errorf("got %q", got)
	}
}
