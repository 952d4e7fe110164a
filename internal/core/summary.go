package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Selection is the set of product names chosen by the user.
type Selection map[string]struct{}

// Summary holds the KPI values of a dataset.
type Summary struct {
	TotalSales  decimal.Decimal
	TotalProfit decimal.Decimal
	// AvgMargin is the mean of the defined record margins; it is undefined
	// when no record has one.
	AvgMargin Margin
	Records   int
}

// MonthTotal is one point of the monthly trend.
type MonthTotal struct {
	Month  string // YYYY-MM
	Sales  decimal.Decimal
	Profit decimal.Decimal
}

// NewSelection builds a selection, ignoring blank names.
func NewSelection(names ...string) Selection {
	sel := make(Selection, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		sel[n] = struct{}{}
	}
	return sel
}

// Contains reports whether name is selected.
func (s Selection) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the selected names in sorted order.
func (s Selection) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Filter keeps the records whose product is selected. An empty selection
// means no filter and returns d itself.
func Filter(d *Dataset, sel Selection) *Dataset {
	if d == nil || len(sel) == 0 {
		return d
	}
	out := &Dataset{
		FetchedAt: d.FetchedAt,
		Source:    d.Source,
		HasDates:  d.HasDates,
		Stats:     d.Stats,
		Records:   make([]Record, 0, len(d.Records)),
	}
	for _, r := range d.Records {
		if sel.Contains(r.ProductName) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Summarize computes total sales, total profit and average margin. Unknown
// totals are skipped, not counted as zero.
func Summarize(d *Dataset) Summary {
	s := Summary{TotalSales: decimal.Zero, TotalProfit: decimal.Zero}
	if d == nil {
		return s
	}
	var (
		marginSum float64
		marginN   int
	)
	for _, r := range d.Records {
		if r.HasTotalSales() {
			s.TotalSales = s.TotalSales.Add(r.TotalSales)
		}
		if r.HasGrossProfit() {
			s.TotalProfit = s.TotalProfit.Add(r.GrossProfit)
		}
		if v, ok := r.MarginPercent.Value(); ok {
			marginSum += v
			marginN++
		}
	}
	s.Records = len(d.Records)
	if marginN > 0 {
		s.AvgMargin = NewMargin(marginSum / float64(marginN))
	}
	return s
}

// MonthlyAggregate sums sales and profit per calendar month, ordered by
// month ascending. Records without a date are not counted.
func MonthlyAggregate(d *Dataset) []MonthTotal {
	if d == nil {
		return nil
	}
	byMonth := map[string]*MonthTotal{}
	for _, r := range d.Records {
		if r.Date.IsZero() {
			continue
		}
		key := MonthKey(r.Date)
		mt, ok := byMonth[key]
		if !ok {
			mt = &MonthTotal{Month: key, Sales: decimal.Zero, Profit: decimal.Zero}
			byMonth[key] = mt
		}
		if r.HasTotalSales() {
			mt.Sales = mt.Sales.Add(r.TotalSales)
		}
		if r.HasGrossProfit() {
			mt.Profit = mt.Profit.Add(r.GrossProfit)
		}
	}
	out := make([]MonthTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Products returns the distinct product names in first-seen order. Rows
// without a product name are not selectable and are left out.
func Products(d *Dataset) []string {
	if d == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, r := range d.Records {
		if r.ProductName == "" {
			continue
		}
		if _, ok := seen[r.ProductName]; ok {
			continue
		}
		seen[r.ProductName] = struct{}{}
		out = append(out, r.ProductName)
	}
	return out
}
