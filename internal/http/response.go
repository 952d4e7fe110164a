package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
	"salesdash/internal/format"
	"salesdash/internal/log"
	"salesdash/internal/services"
)

type summaryJSON struct {
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	AvgMargin   core.Margin     `json:"avg_margin"`
	Records     int             `json:"records"`
	Display     summaryDisplay  `json:"display"`
}

type summaryDisplay struct {
	TotalSales  string `json:"total_sales"`
	TotalProfit string `json:"total_profit"`
	AvgMargin   string `json:"avg_margin"`
}

type monthJSON struct {
	Month  string          `json:"month"`
	Sales  decimal.Decimal `json:"sales"`
	Profit decimal.Decimal `json:"profit"`
}

type statsJSON struct {
	SourceRows    int `json:"source_rows"`
	DroppedDates  int `json:"dropped_dates"`
	DroppedValues int `json:"dropped_values"`
}

type dashboardResponse struct {
	Source     string      `json:"source"`
	FetchedAt  time.Time   `json:"fetched_at"`
	FreshUntil time.Time   `json:"fresh_until"`
	Products   []string    `json:"products"`
	Selected   []string    `json:"selected"`
	Summary    summaryJSON `json:"summary"`
	Monthly    []monthJSON `json:"monthly"`
	Stats      statsJSON   `json:"stats"`
}

type recordJSON struct {
	Date              string            `json:"date,omitempty"`
	ProductName       string            `json:"product_name"`
	SalesPricePerUnit *decimal.Decimal  `json:"sales_price_per_unit"`
	CostPerUnit       *decimal.Decimal  `json:"cost_per_unit"`
	Quantity          *decimal.Decimal  `json:"quantity"`
	TotalSales        *decimal.Decimal  `json:"total_sales"`
	TotalCost         *decimal.Decimal  `json:"total_cost"`
	GrossProfit       *decimal.Decimal  `json:"gross_profit"`
	MarginPercent     core.Margin       `json:"margin_percent"`
	Extra             map[string]string `json:"extra,omitempty"`
}

type refreshResponse struct {
	Source      string    `json:"source"`
	Rows        int       `json:"rows"`
	DroppedRows int       `json:"dropped_rows"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type refreshEventJSON struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
	Rows        int       `json:"rows"`
	DroppedRows int       `json:"dropped_rows"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

func newSummaryJSON(s core.Summary, currency string) summaryJSON {
	return summaryJSON{
		TotalSales:  s.TotalSales,
		TotalProfit: s.TotalProfit,
		AvgMargin:   s.AvgMargin,
		Records:     s.Records,
		Display: summaryDisplay{
			TotalSales:  format.Currency(s.TotalSales, currency),
			TotalProfit: format.Currency(s.TotalProfit, currency),
			AvgMargin:   format.Percent(s.AvgMargin),
		},
	}
}

func newDashboardResponse(v *services.View, currency string, freshUntil time.Time) dashboardResponse {
	monthly := make([]monthJSON, 0, len(v.Monthly))
	for _, m := range v.Monthly {
		monthly = append(monthly, monthJSON{Month: m.Month, Sales: m.Sales, Profit: m.Profit})
	}
	return dashboardResponse{
		Source:     v.Source,
		FetchedAt:  v.FetchedAt,
		FreshUntil: freshUntil,
		Products:   nonNil(v.Products),
		Selected:   nonNil(v.Selected),
		Summary:    newSummaryJSON(v.Summary, currency),
		Monthly:    monthly,
		Stats: statsJSON{
			SourceRows:    v.Stats.SourceRows,
			DroppedDates:  v.Stats.DroppedDates,
			DroppedValues: v.Stats.DroppedValues,
		},
	}
}

// known returns nil for a value that was blank in the source, so it
// encodes as JSON null.
func known(d decimal.Decimal, ok bool) *decimal.Decimal {
	if !ok {
		return nil
	}
	return &d
}

func newRecordsJSON(d *core.Dataset) []recordJSON {
	out := make([]recordJSON, 0, d.Len())
	if d == nil {
		return out
	}
	for _, r := range d.Records {
		rec := recordJSON{
			ProductName:       r.ProductName,
			SalesPricePerUnit: known(r.SalesPricePerUnit, r.HasPrice()),
			CostPerUnit:       known(r.CostPerUnit, r.HasCost()),
			Quantity:          known(r.Quantity, r.HasQuantity()),
			TotalSales:        known(r.TotalSales, r.HasTotalSales()),
			TotalCost:         known(r.TotalCost, r.HasTotalCost()),
			GrossProfit:       known(r.GrossProfit, r.HasGrossProfit()),
			MarginPercent:     r.MarginPercent,
			Extra:             r.Extra,
		}
		if !r.Date.IsZero() {
			rec.Date = r.Date.Format("2006-01-02")
		}
		out = append(out, rec)
	}
	return out
}

func newRefreshEventJSON(ev core.RefreshEvent) refreshEventJSON {
	return refreshEventJSON{
		ID:          ev.ID,
		Source:      ev.Source,
		StartedAt:   ev.StartedAt,
		FinishedAt:  ev.FinishedAt,
		DurationMs:  ev.FinishedAt.Sub(ev.StartedAt).Milliseconds(),
		Rows:        ev.Rows,
		DroppedRows: ev.DroppedRows,
		Success:     ev.Success,
		Error:       ev.Error,
	}
}

// Page view models. Every display string is formatted here so the
// templates stay free of logic.

type productOption struct {
	Name     string
	Selected bool
}

type kpiCard struct {
	Label string
	Value string
	Hint  string
}

type recordRow struct {
	Date        string
	Product     string
	Price       string
	Cost        string
	Quantity    string
	TotalSales  string
	TotalCost   string
	GrossProfit string
	Margin      string
	Negative    bool
}

type pageData struct {
	Title      string
	Source     string
	FetchedAt  string
	FreshUntil string
	Products   []productOption
	AllChecked bool
	KPIs       []kpiCard
	HasMonthly bool
	HasDates   bool

	// Chart series as comma-separated values, read by dashboard.js.
	ChartMonths string
	ChartSales  string
	ChartProfit string
	Records     []recordRow
	RecordCount int
	DroppedRows int
	SourceRows  int
	RefreshPath string
}

type errorPageData struct {
	Title   string
	Message string
	Source  string
}

func newPageData(v *services.View, currency string, freshUntil time.Time) pageData {
	selected := map[string]bool{}
	for _, n := range v.Selected {
		selected[n] = true
	}
	all := len(v.Selected) == 0

	p := pageData{
		Title:       "Sales Dashboard",
		Source:      v.Source,
		FetchedAt:   formatTimestamp(v.FetchedAt),
		FreshUntil:  formatTimestamp(freshUntil),
		AllChecked:  all,
		HasDates:    v.HasDates,
		HasMonthly:  len(v.Monthly) > 0,
		RecordCount: v.Filtered.Len(),
		DroppedRows: v.Stats.DroppedRows(),
		SourceRows:  v.Stats.SourceRows,
		RefreshPath: "/",
	}
	for _, name := range v.Products {
		p.Products = append(p.Products, productOption{Name: name, Selected: all || selected[name]})
	}

	p.KPIs = []kpiCard{
		{Label: "Total Sales", Value: format.Currency(v.Summary.TotalSales, currency)},
		{Label: "Total Profit", Value: format.Currency(v.Summary.TotalProfit, currency)},
		{Label: "Average Margin", Value: format.Percent(v.Summary.AvgMargin), Hint: "mean of per-sale margins"},
	}

	months := make([]string, 0, len(v.Monthly))
	sales := make([]string, 0, len(v.Monthly))
	profit := make([]string, 0, len(v.Monthly))
	for _, m := range v.Monthly {
		months = append(months, m.Month)
		sales = append(sales, m.Sales.StringFixed(2))
		profit = append(profit, m.Profit.StringFixed(2))
	}
	p.ChartMonths = strings.Join(months, ",")
	p.ChartSales = strings.Join(sales, ",")
	p.ChartProfit = strings.Join(profit, ",")

	if v.Filtered != nil {
		for _, r := range v.Filtered.Records {
			row := recordRow{
				Product:     r.ProductName,
				Price:       format.OptionalAmount(r.SalesPricePerUnit, r.HasPrice()),
				Cost:        format.OptionalAmount(r.CostPerUnit, r.HasCost()),
				Quantity:    format.OptionalQuantity(r.Quantity, r.HasQuantity()),
				TotalSales:  format.OptionalAmount(r.TotalSales, r.HasTotalSales()),
				TotalCost:   format.OptionalAmount(r.TotalCost, r.HasTotalCost()),
				GrossProfit: format.OptionalAmount(r.GrossProfit, r.HasGrossProfit()),
				Margin:      format.Percent(r.MarginPercent),
				Negative:    r.GrossProfit.IsNegative(),
			}
			if !r.Date.IsZero() {
				row.Date = r.Date.Format("02/01/2006")
			}
			p.Records = append(p.Records, row)
		}
	}
	return p
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02/01/2006 15:04:05")
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(),
			"Template render failed", "template", name, log.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	s.render(w, r, statusForLoadError(err), "error.html", errorPageData{
		Title:   "Sales data unavailable",
		Message: loadErrorMessage(s.dashboard.SourceName(), err),
		Source:  s.dashboard.SourceName(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
