package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordDerive(t *testing.T) {
	r := Record{
		ProductName:       "A",
		SalesPricePerUnit: dec("10"),
		CostPerUnit:       dec("6"),
		Quantity:          dec("2"),
	}.Derive()

	if !r.TotalSales.Equal(dec("20")) {
		t.Fatalf("total sales: got %s", r.TotalSales)
	}
	if !r.TotalCost.Equal(dec("12")) {
		t.Fatalf("total cost: got %s", r.TotalCost)
	}
	if !r.GrossProfit.Equal(dec("8")) {
		t.Fatalf("gross profit: got %s", r.GrossProfit)
	}
	m, ok := r.MarginPercent.Value()
	if !ok || m != 40.0 {
		t.Fatalf("margin: got %v (defined=%v)", m, ok)
	}
}

func TestRecordDeriveZeroSales(t *testing.T) {
	r := Record{
		ProductName:       "A",
		SalesPricePerUnit: dec("0"),
		CostPerUnit:       dec("3"),
		Quantity:          dec("4"),
	}.Derive()
	if r.MarginPercent.Defined() {
		t.Fatalf("expected undefined margin, got %v", r.MarginPercent.Float64())
	}
	if !math.IsNaN(r.MarginPercent.Float64()) {
		t.Fatalf("expected NaN float")
	}
	if !r.GrossProfit.Equal(dec("-12")) {
		t.Fatalf("gross profit: got %s", r.GrossProfit)
	}
}

func TestProfitIdentityIsExact(t *testing.T) {
	cases := []struct{ price, cost, qty string }{
		{"0.1", "0.2", "3"},
		{"19.99", "7.33", "17"},
		{"1234.567", "999.999", "0.5"},
		{"-5", "2", "3"},
	}
	for _, tc := range cases {
		r := Record{ProductName: "p", SalesPricePerUnit: dec(tc.price), CostPerUnit: dec(tc.cost), Quantity: dec(tc.qty)}.Derive()
		if !r.TotalSales.Sub(r.TotalCost).Equal(r.GrossProfit) {
			t.Fatalf("%+v: %s - %s != %s", tc, r.TotalSales, r.TotalCost, r.GrossProfit)
		}
	}
}

func TestRecordDeriveMissingFields(t *testing.T) {
	cases := []struct {
		name                      string
		missing                   Missing
		sales, cost, profit, have bool
	}{
		{"complete", 0, true, true, true, true},
		{"no price", MissingPrice, false, true, false, false},
		{"no cost", MissingCost, true, false, false, false},
		{"no quantity", MissingQuantity, false, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Record{
				ProductName:       "A",
				SalesPricePerUnit: dec("10"),
				CostPerUnit:       dec("6"),
				Quantity:          dec("2"),
				Missing:           tc.missing,
			}.Derive()
			if r.HasTotalSales() != tc.sales || r.HasTotalCost() != tc.cost || r.HasGrossProfit() != tc.profit {
				t.Fatalf("known totals: sales=%v cost=%v profit=%v", r.HasTotalSales(), r.HasTotalCost(), r.HasGrossProfit())
			}
			if r.MarginPercent.Defined() != tc.have {
				t.Fatalf("margin defined = %v, want %v", r.MarginPercent.Defined(), tc.have)
			}
			if !r.HasTotalSales() && !r.TotalSales.IsZero() {
				t.Fatalf("unknown total sales should stay zero, got %s", r.TotalSales)
			}
			if !r.HasGrossProfit() && !r.GrossProfit.IsZero() {
				t.Fatalf("unknown profit should stay zero, got %s", r.GrossProfit)
			}
		})
	}
}

func TestMarginJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Margin `json:"a"`
		B Margin `json:"b"`
	}{A: NewMargin(12.5), B: UndefinedMargin()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":12.5,"b":null}` {
		t.Fatalf("unexpected json: %s", b)
	}
	if NewMargin(math.NaN()).Defined() || NewMargin(math.Inf(1)).Defined() {
		t.Fatalf("NaN and Inf must be undefined")
	}
}

func TestDatasetLen(t *testing.T) {
	var d *Dataset
	if d.Len() != 0 {
		t.Fatalf("nil dataset should have no records")
	}
	stats := LoadStats{SourceRows: 5, DroppedDates: 1, DroppedValues: 2}
	if stats.DroppedRows() != 3 {
		t.Fatalf("dropped rows: got %d", stats.DroppedRows())
	}
}
