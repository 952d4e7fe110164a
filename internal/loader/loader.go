// Package loader turns a raw source table into a Dataset: it parses dates
// day-first, drops rows that cannot be read and derives the sales metrics.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
	"salesdash/internal/source"
)

// Loader fetches and prepares datasets from one source.
type Loader struct {
	src    source.Source
	logger *slog.Logger
	now    func() time.Time
}

// New returns a loader reading from src.
func New(src source.Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, logger: logger, now: time.Now}
}

// SourceName returns the name of the underlying source.
func (l *Loader) SourceName() string {
	return l.src.Name()
}

// Load fetches the table and builds a new Dataset. Errors wrap
// core.ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context) (*core.Dataset, error) {
	t, err := l.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := Build(t)
	if err != nil {
		return nil, err
	}
	ds.FetchedAt = l.now()
	ds.Source = l.src.Name()

	if ds.Stats.DroppedRows() > 0 {
		l.logger.DebugContext(ctx, "Rows dropped during load",
			"source", ds.Source,
			"dropped_dates", ds.Stats.DroppedDates,
			"dropped_values", ds.Stats.DroppedValues)
	}
	return ds, nil
}

type columns struct {
	date, product, price, cost, qty int
}

// Build converts a table into a Dataset. It fails only when a required
// column is missing. A row with an unreadable date or a non-numeric amount
// is dropped; blank amounts are kept as missing and blank product names
// are kept as is.
func Build(t source.Table) (*core.Dataset, error) {
	cols := columns{
		date:    t.Index(core.ColDate),
		product: t.Index(core.ColProductName),
		price:   t.Index(core.ColSalesPricePerUnit),
		cost:    t.Index(core.ColCostPerUnit),
		qty:     t.Index(core.ColQuantity),
	}
	var missing []string
	for name, idx := range map[string]int{
		core.ColProductName:       cols.product,
		core.ColSalesPricePerUnit: cols.price,
		core.ColCostPerUnit:       cols.cost,
		core.ColQuantity:          cols.qty,
	} {
		if idx < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing columns %s; got header=%v",
			core.ErrSourceUnavailable, strings.Join(missing, ","), t.Header)
	}

	ds := &core.Dataset{
		HasDates: cols.date >= 0,
		Records:  make([]core.Record, 0, len(t.Rows)),
		Stats:    core.LoadStats{SourceRows: len(t.Rows)},
	}
	known := map[int]bool{cols.date: true, cols.product: true, cols.price: true, cols.cost: true, cols.qty: true}

	for _, row := range t.Rows {
		var r core.Record
		if ds.HasDates {
			d, err := core.ParseDayFirst(cell(row, cols.date))
			if err != nil {
				ds.Stats.DroppedDates++
				continue
			}
			r.Date = d
		}
		r.ProductName = strings.TrimSpace(cell(row, cols.product))

		garbage := false
		for _, f := range []struct {
			dst  *decimal.Decimal
			idx  int
			flag core.Missing
		}{
			{&r.SalesPricePerUnit, cols.price, core.MissingPrice},
			{&r.CostPerUnit, cols.cost, core.MissingCost},
			{&r.Quantity, cols.qty, core.MissingQuantity},
		} {
			v, err := core.ParseAmount(cell(row, f.idx))
			switch {
			case errors.Is(err, core.ErrMissingAmount):
				r.Missing |= f.flag
			case err != nil:
				garbage = true
			default:
				*f.dst = v
			}
		}
		if garbage {
			ds.Stats.DroppedValues++
			continue
		}
		r.Extra = extras(t.Header, row, known)
		ds.Records = append(ds.Records, r.Derive())
	}
	return ds, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func extras(header, row []string, known map[int]bool) map[string]string {
	var out map[string]string
	for i, h := range header {
		if known[i] {
			continue
		}
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[h] = strings.TrimSpace(cell(row, i))
	}
	return out
}
