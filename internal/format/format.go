// Package format renders money and percentages for display.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"salesdash/internal/core"
)

// DefaultCurrencySymbol is the Thai baht sign.
const DefaultCurrencySymbol = "฿"

var printer = message.NewPrinter(language.English)

// Currency renders d rounded to whole units with thousands separators,
// e.g. "฿12,345". The sign follows the symbol: "฿-1,200".
func Currency(d decimal.Decimal, symbol string) string {
	s := d.Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	return symbol + sign + groupDigits(s)
}

// Amount renders d with two decimals and thousands separators, for tables.
func Amount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	return sign + groupDigits(intPart) + "." + frac
}

// OptionalAmount renders d like Amount when ok is true and as an empty
// cell otherwise.
func OptionalAmount(d decimal.Decimal, ok bool) string {
	if !ok {
		return ""
	}
	return Amount(d)
}

// OptionalQuantity renders a quantity as written, or an empty cell when
// ok is false.
func OptionalQuantity(d decimal.Decimal, ok bool) string {
	if !ok {
		return ""
	}
	return d.String()
}

// Percent renders a defined margin as "40.00%" and an undefined one as "n/a".
func Percent(m core.Margin) string {
	v, ok := m.Value()
	if !ok {
		return "n/a"
	}
	return printer.Sprintf("%.2f%%", v)
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return printer.Sprint(number.Decimal(n))
}

// groupDigits inserts commas into a string of digits. Decimal amounts can
// exceed int64, so this works on the text rather than via the printer.
func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
