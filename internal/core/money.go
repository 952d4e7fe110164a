// Package core holds the sales record model and the pure operations over it:
// parsing of source cells, metric derivation, filtering and aggregation.
//
// This file contains the cell parsers used by the loader.
package core

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingAmount marks a blank cell. It is not garbage: the value is
	// unknown, not wrong.
	ErrMissingAmount = errors.New("missing amount")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ParseAmount converts a spreadsheet cell to a decimal.
//
// Surrounding spaces, a leading currency symbol and thousands commas are
// ignored, so "฿1,234.50", " 1234.5 " and "1234.50" are all the same value.
// Negative values are accepted: refunds and corrections are legitimate rows.
//
// Examples:
//
//	ParseAmount("10")        -> 10, nil
//	ParseAmount("$1,200.75") -> 1200.75, nil
//	ParseAmount("")          -> 0, ErrMissingAmount
//	ParseAmount("abc")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrMissingAmount
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// dayFirstLayouts are tried in order. Ambiguous numeric dates are read as
// day/month/year.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2/1/06",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// ParseDayFirst parses a date cell with the day-first convention. Dates
// without a zone are UTC; an explicit offset is kept so the calendar day
// and month stay the ones written in the cell.
func ParseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// MonthKey renders the calendar month of t as a sortable label, e.g. "2024-05".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
