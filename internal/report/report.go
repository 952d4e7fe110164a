// Package report prints a dashboard view as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"salesdash/internal/format"
	"salesdash/internal/services"
)

type Options struct {
	Currency string
	// Records adds the filtered rows after the summary tables.
	Records bool
	// Markdown renders pipe tables instead of box drawing.
	Markdown bool
}

// Render writes the header, KPI, monthly and optional record tables for v.
func Render(w io.Writer, v *services.View, opts Options) error {
	if opts.Currency == "" {
		opts.Currency = format.DefaultCurrencySymbol
	}

	selection := "all products"
	if len(v.Selected) > 0 {
		selection = strings.Join(v.Selected, ", ")
	}
	if _, err := fmt.Fprintf(w, "Sales report: %s (%s)\n", v.Source, selection); err != nil {
		return err
	}
	if !v.FetchedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Loaded %s\n", v.FetchedAt.Format("02/01/2006 15:04:05"))
	}
	if n := v.Stats.DroppedRows(); n > 0 {
		_, _ = fmt.Fprintf(w, "Skipped %d of %d source rows (%d bad dates, %d bad values)\n",
			n, v.Stats.SourceRows, v.Stats.DroppedDates, v.Stats.DroppedValues)
	}
	_, _ = fmt.Fprintln(w)

	renderKPIs(w, v, opts)
	_, _ = fmt.Fprintln(w)
	renderMonthly(w, v, opts)
	if opts.Records {
		_, _ = fmt.Fprintln(w)
		renderRecords(w, v, opts)
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func finish(t table.Writer, opts Options) {
	if opts.Markdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

func renderKPIs(w io.Writer, v *services.View, opts Options) {
	t := newTable(w)
	t.SetTitle("Summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total Sales", format.Currency(v.Summary.TotalSales, opts.Currency)},
		{"Total Profit", format.Currency(v.Summary.TotalProfit, opts.Currency)},
		{"Average Margin", format.Percent(v.Summary.AvgMargin)},
		{"Records", format.Count(v.Summary.Records)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	finish(t, opts)
}

func renderMonthly(w io.Writer, v *services.View, opts Options) {
	if !v.HasDates {
		_, _ = fmt.Fprintln(w, "No Date column in source; monthly trend unavailable.")
		return
	}
	if len(v.Monthly) == 0 {
		_, _ = fmt.Fprintln(w, "No sales match the current selection.")
		return
	}

	t := newTable(w)
	t.SetTitle("Monthly Sales & Profit")
	t.AppendHeader(table.Row{"Month", "Sales", "Profit"})
	for _, m := range v.Monthly {
		t.AppendRow(table.Row{m.Month, format.Amount(m.Sales), format.Amount(m.Profit)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	finish(t, opts)
}

func renderRecords(w io.Writer, v *services.View, opts Options) {
	if v.Filtered.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Product", "Price", "Cost", "Qty", "Sales", "Cost Total", "Profit", "Margin"})
	for _, r := range v.Filtered.Records {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format("02/01/2006")
		}
		t.AppendRow(table.Row{
			date,
			r.ProductName,
			format.OptionalAmount(r.SalesPricePerUnit, r.HasPrice()),
			format.OptionalAmount(r.CostPerUnit, r.HasCost()),
			format.OptionalQuantity(r.Quantity, r.HasQuantity()),
			format.OptionalAmount(r.TotalSales, r.HasTotalSales()),
			format.OptionalAmount(r.TotalCost, r.HasTotalCost()),
			format.OptionalAmount(r.GrossProfit, r.HasGrossProfit()),
			format.Percent(r.MarginPercent),
		})
	}
	configs := make([]table.ColumnConfig, 0, 7)
	for n := 3; n <= 9; n++ {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	finish(t, opts)
	_, _ = fmt.Fprintf(w, "(%d rows)\n", v.Filtered.Len())
}
