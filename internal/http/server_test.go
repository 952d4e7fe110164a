package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
	"salesdash/internal/loader"
	"salesdash/internal/log"
	"salesdash/internal/services"
	"salesdash/internal/source/memory"
	"salesdash/internal/storage"
)

const testCSV = `Date,Product_Name,Sales_Price_Per_Unit,Cost_Per_Unit,Quantity,Region
15/05/2024,Latte,4.00,1.50,10,North
20/05/2024,Mocha,5.00,2.00,4,South
03/06/2024,Latte,4.00,1.50,5,North
01/06/2024,Sample,0,1.00,3,North
bad,Mocha,5.00,2.00,1,South
`

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store, err := memory.NewFromCSV("memory:test", testCSV)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	svc := services.NewDashboardService(loader.New(store, logger.Slog()), time.Minute,
		services.WithLogger(logger),
		services.WithRecorder(storage.NewMemoryRecorder(10)))

	srv, err := NewServer(Config{Addr: ":0", RefreshLimit: 2, Logger: logger}, svc)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersDashboard(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Sales Dashboard",
		"฿80", // total sales
		"฿47", // 46.5 profit, rounded
		"Average Margin",
		`data-months="2024-05,2024-06"`,
		`<option value="Latte" selected>`,
		"Raw data (4 rows, 1 of 5 source rows skipped)",
		"n/a", // zero-sales row margin
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing security or trace headers")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestIndexSelection(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/?product=Mocha", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `<option value="Mocha" selected>`) || strings.Contains(body, `<option value="Latte" selected>`) {
		t.Error("only Mocha should be selected")
	}
	if !strings.Contains(body, "฿20") || !strings.Contains(body, "60.00%") {
		t.Errorf("Mocha KPIs not rendered: %s", body)
	}
	if !strings.Contains(body, "Show all") {
		t.Error("a filtered view should offer to show all")
	}
}

func TestDashboardAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/dashboard?product=Latte&product=", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		Products []string `json:"products"`
		Selected []string `json:"selected"`
		Summary  struct {
			TotalSales  string   `json:"total_sales"`
			TotalProfit string   `json:"total_profit"`
			AvgMargin   *float64 `json:"avg_margin"`
			Records     int      `json:"records"`
			Display     struct {
				TotalSales string `json:"total_sales"`
				AvgMargin  string `json:"avg_margin"`
			} `json:"display"`
		} `json:"summary"`
		Monthly []struct {
			Month string `json:"month"`
			Sales string `json:"sales"`
		} `json:"monthly"`
		Stats struct {
			DroppedDates int `json:"dropped_dates"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 3 {
		t.Errorf("products should be unfiltered: %v", resp.Products)
	}
	if len(resp.Selected) != 1 || resp.Selected[0] != "Latte" {
		t.Errorf("selected = %v", resp.Selected)
	}
	if resp.Summary.TotalSales != "60" || resp.Summary.TotalProfit != "37.5" || resp.Summary.Records != 2 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
	if resp.Summary.AvgMargin == nil || *resp.Summary.AvgMargin != 62.5 {
		t.Errorf("avg margin = %v, want 62.5", resp.Summary.AvgMargin)
	}
	if resp.Summary.Display.TotalSales != "฿60" || resp.Summary.Display.AvgMargin != "62.50%" {
		t.Errorf("display = %+v", resp.Summary.Display)
	}
	if len(resp.Monthly) != 2 || resp.Monthly[0].Month != "2024-05" || resp.Monthly[0].Sales != "40" {
		t.Errorf("monthly = %+v", resp.Monthly)
	}
	if resp.Stats.DroppedDates != 1 {
		t.Errorf("dropped dates = %d", resp.Stats.DroppedDates)
	}
}

func TestProductsAndRecordsAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/products", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"products":["Latte","Mocha","Sample"]`) {
		t.Fatalf("products: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/records?product=Sample", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("records status=%d", rr.Code)
	}
	var resp struct {
		Count   int `json:"count"`
		Records []struct {
			Date          string            `json:"date"`
			ProductName   string            `json:"product_name"`
			MarginPercent *float64          `json:"margin_percent"`
			Extra         map[string]string `json:"extra"`
		} `json:"records"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Records) != 1 {
		t.Fatalf("expected one Sample record: %+v", resp)
	}
	r := resp.Records[0]
	if r.Date != "2024-06-01" || r.MarginPercent != nil || r.Extra["Region"] != "North" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestRefreshAndHistory(t *testing.T) {
	srv, store := newTestServer(t)

	if rr := do(t, srv, http.MethodGet, "/api/dashboard", ""); rr.Code != http.StatusOK {
		t.Fatalf("initial load: %d", rr.Code)
	}

	more := testCSV + "10/07/2024,Tea,3.00,1.00,2,East\n"
	tbl, err := memory.NewFromCSV("x", more)
	if err != nil {
		t.Fatal(err)
	}
	replacement, _ := tbl.Fetch(context.Background())
	store.Replace(replacement)

	rr := do(t, srv, http.MethodPost, "/api/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"rows":5`) {
		t.Errorf("refresh should report the new row count: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/refreshes?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status=%d", rr.Code)
	}
	var hist struct {
		Refreshes []struct {
			Rows    int  `json:"rows"`
			Success bool `json:"success"`
		} `json:"refreshes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Refreshes) != 2 || hist.Refreshes[0].Rows != 5 || !hist.Refreshes[0].Success {
		t.Errorf("unexpected history: %+v", hist)
	}

	if rr := do(t, srv, http.MethodGet, "/api/refreshes?limit=zero", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: status=%d", rr.Code)
	}
}

func TestRefreshFormRedirects(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/refresh", url.Values{"redirect": {"/"}}.Encode())
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodPost, "/api/refresh", url.Values{"redirect": {"//evil.example"}}.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("open redirect must be ignored, got %d", rr.Code)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/refresh", ""); rr.Code != http.StatusOK {
			t.Fatalf("refresh %d: status=%d", i+1, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/refresh", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := do(t, srv, http.MethodGet, "/api/refresh", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh: status=%d", rr.Code)
	}
}

func TestSourceFailureReturnsBadGateway(t *testing.T) {
	srv, store := newTestServer(t)
	store.Fail("status=404 body=\"Not Found\"")

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("index: expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sales data could not be loaded from memory:test") {
		t.Errorf("error page should explain the failure: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/dashboard", "")
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), `"error":`) {
		t.Fatalf("api: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz after failure: %d", rr.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("readyz before any load: %d", rr.Code)
	}
}

func TestStaticAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/static/app.css", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("static: %d %q", rr.Code, rr.Header().Get("Cache-Control"))
	}
	if rr := do(t, srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path: %d", rr.Code)
	}
}

type failingDashboard struct{ status services.Status }

func (failingDashboard) View(context.Context, core.Selection) (*services.View, error) {
	return nil, errors.New("boom")
}
func (failingDashboard) Refresh(context.Context) (*core.Dataset, error) { return nil, errors.New("boom") }
func (failingDashboard) History(context.Context, int) ([]core.RefreshEvent, error) {
	return nil, errors.New("disk")
}
func (f failingDashboard) Status() services.Status { return f.status }
func (failingDashboard) SourceName() string        { return "fake" }
func (failingDashboard) FreshUntil() time.Time     { return time.Time{} }

func TestInternalErrors(t *testing.T) {
	srv, err := NewServer(Config{Logger: log.New(log.Config{Output: &bytes.Buffer{}})}, failingDashboard{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/", "/api/dashboard", "/api/refreshes"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", path, rr.Code)
		}
	}
}

func TestSafeRedirect(t *testing.T) {
	for in, want := range map[string]string{
		"/":               "/",
		"/?product=Latte": "/?product=Latte",
		"":                "",
		"https://evil":    "",
		"//evil":          "",
		"/\\evil":         "",
	} {
		if got := safeRedirect(in); got != want {
			t.Errorf("safeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}


func TestRecordsJSONBlankFieldsAreNull(t *testing.T) {
	r := core.Record{ProductName: "Latte", Missing: core.MissingCost}
	r.SalesPricePerUnit = decimal.NewFromInt(4)
	r.Quantity = decimal.NewFromInt(2)
	ds := &core.Dataset{Records: []core.Record{r.Derive()}}

	b, err := json.Marshal(newRecordsJSON(ds))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, want := range []string{
		`"total_sales":"8"`,
		`"cost_per_unit":null`,
		`"total_cost":null`,
		`"gross_profit":null`,
		`"margin_percent":null`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in %s", want, body)
		}
	}
}
