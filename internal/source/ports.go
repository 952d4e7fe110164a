package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"salesdash/internal/core"
)

// Source is the outbound port the loader reads raw tabular data from.
type Source interface {
	// Fetch returns the whole table. Failures wrap core.ErrSourceUnavailable.
	Fetch(ctx context.Context) (Table, error)
	// Name identifies the source in logs and refresh history.
	Name() string
}

// Table is a header row plus data rows, all as text.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, or -1. Header cells are
// compared after trimming whitespace.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// ReadCSV parses comma-separated text whose first record is the header.
// Rows may be shorter or longer than the header.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("%w: empty table", core.ErrSourceUnavailable)
		}
		return Table{}, fmt.Errorf("%w: read header: %v", core.ErrSourceUnavailable, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: read row %d: %v", core.ErrSourceUnavailable, len(t.Rows)+2, err)
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
