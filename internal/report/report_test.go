package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"salesdash/internal/core"
	"salesdash/internal/loader"
	"salesdash/internal/services"
	"salesdash/internal/source/memory"
)

func view(t *testing.T, csv string, products ...string) *services.View {
	t.Helper()
	store, err := memory.NewFromCSV("memory:test", csv)
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewDashboardService(loader.New(store, nil), time.Minute)
	v, err := svc.View(context.Background(), core.NewSelection(products...))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

const sales = `Date,Product_Name,Sales_Price_Per_Unit,Cost_Per_Unit,Quantity
15/05/2024,Latte,4.00,1.50,10
20/05/2024,Mocha,5.00,2.00,4
03/06/2024,Latte,4.00,1.50,5
31/02/2024,Latte,4.00,1.50,1
`

func TestRenderSummaryAndMonthly(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, view(t, sales), Options{Currency: "$"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Sales report: memory:test (all products)",
		"Skipped 1 of 4 source rows (1 bad dates, 0 bad values)",
		"Total Sales", "$80",
		"Total Profit", "$50",
		"Average Margin", "61.67%",
		"Monthly Sales & Profit",
		"2024-05", "60.00", "37.00",
		"2024-06", "20.00", "12.50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(3 rows)") {
		t.Error("records should only be printed on request")
	}
}

func TestRenderSelectionWithRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, view(t, sales, "Mocha"), Options{Records: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"(Mocha)", "฿20", "60.00%", "20/05/2024", "(1 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Latte") {
		t.Error("filtered report should not list other products")
	}
}

func TestRenderWithoutDates(t *testing.T) {
	csv := "Product_Name,Sales_Price_Per_Unit,Cost_Per_Unit,Quantity\nLatte,4,1.5,10\nFree,0,1,2\n"
	var buf bytes.Buffer
	if err := Render(&buf, view(t, csv), Options{Markdown: true, Records: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "monthly trend unavailable") {
		t.Errorf("expected missing-date notice:\n%s", out)
	}
	if !strings.Contains(out, "| Latte |") || !strings.Contains(out, "n/a") {
		t.Errorf("expected markdown rows with undefined margin:\n%s", out)
	}
}

func TestRenderEmptySelection(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, view(t, sales, "Nope"), Options{Records: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "No sales match the current selection.") || !strings.Contains(out, "(0 rows)") {
		t.Errorf("unexpected empty report:\n%s", out)
	}
	if !strings.Contains(out, "n/a") {
		t.Error("average margin of an empty selection is undefined")
	}
}
