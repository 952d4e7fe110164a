package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Column names expected in the source table.
const (
	ColDate              = "Date"
	ColProductName       = "Product_Name"
	ColSalesPricePerUnit = "Sales_Price_Per_Unit"
	ColCostPerUnit       = "Cost_Per_Unit"
	ColQuantity          = "Quantity"
)

type (
	// Record is one sales line. The derived fields are filled by Derive and
	// never change afterwards.
	Record struct {
		Date              time.Time
		ProductName       string
		SalesPricePerUnit decimal.Decimal
		CostPerUnit       decimal.Decimal
		Quantity          decimal.Decimal

		TotalSales    decimal.Decimal
		TotalCost     decimal.Decimal
		GrossProfit   decimal.Decimal
		MarginPercent Margin

		// Missing flags unit fields that were blank in the source.
		Missing Missing

		// Extra holds the remaining source columns, keyed by header.
		Extra map[string]string
	}

	// Missing is a set of blank unit fields. A total that depends on a blank
	// field is unknown and left out of every sum.
	Missing uint8

	// LoadStats describes what happened to the source rows during a load.
	LoadStats struct {
		SourceRows    int
		DroppedDates  int
		DroppedValues int
	}

	// Dataset is the full set of records for one refresh cycle. It is
	// replaced wholesale on refresh and must not be mutated by readers.
	Dataset struct {
		Records   []Record
		FetchedAt time.Time
		Source    string
		HasDates  bool
		Stats     LoadStats
	}

	// RefreshEvent is the outcome of one load attempt.
	RefreshEvent struct {
		ID          int64
		Source      string
		StartedAt   time.Time
		FinishedAt  time.Time
		Rows        int
		DroppedRows int
		Success     bool
		Error       string
	}
)

var (
	// ErrSourceUnavailable marks a fetch that failed or returned content that
	// could not be read as a table.
	ErrSourceUnavailable = errors.New("source unavailable")
)

var hundred = decimal.NewFromInt(100)

const (
	MissingPrice Missing = 1 << iota
	MissingCost
	MissingQuantity
)

// Derive computes the totals, profit and margin of r from its unit fields.
// Unknown totals stay zero and the margin is then undefined.
func (r Record) Derive() Record {
	r.TotalSales, r.TotalCost, r.GrossProfit = decimal.Zero, decimal.Zero, decimal.Zero
	r.MarginPercent = UndefinedMargin()
	if r.HasTotalSales() {
		r.TotalSales = r.SalesPricePerUnit.Mul(r.Quantity)
	}
	if r.HasTotalCost() {
		r.TotalCost = r.CostPerUnit.Mul(r.Quantity)
	}
	if !r.HasGrossProfit() {
		return r
	}
	r.GrossProfit = r.TotalSales.Sub(r.TotalCost)
	if !r.TotalSales.IsZero() {
		pct, _ := r.GrossProfit.Div(r.TotalSales).Mul(hundred).Float64()
		r.MarginPercent = NewMargin(pct)
	}
	return r
}

func (r Record) HasPrice() bool    { return r.Missing&MissingPrice == 0 }
func (r Record) HasCost() bool     { return r.Missing&MissingCost == 0 }
func (r Record) HasQuantity() bool { return r.Missing&MissingQuantity == 0 }

// HasTotalSales reports whether price and quantity are both known.
func (r Record) HasTotalSales() bool { return r.HasPrice() && r.HasQuantity() }

// HasTotalCost reports whether cost and quantity are both known.
func (r Record) HasTotalCost() bool { return r.HasCost() && r.HasQuantity() }

// HasGrossProfit reports whether both totals are known.
func (r Record) HasGrossProfit() bool { return r.HasTotalSales() && r.HasTotalCost() }

// Len returns the number of records; a nil dataset has none.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// DroppedRows is the total number of source rows not retained.
func (s LoadStats) DroppedRows() int {
	return s.DroppedDates + s.DroppedValues
}
