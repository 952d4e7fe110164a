package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"salesdash/internal/core"
	"salesdash/internal/source"
)

// defaultCSV is served when no seed file is available.
const defaultCSV = `Date,Product_Name,Sales_Price_Per_Unit,Cost_Per_Unit,Quantity
05/01/2024,Espresso Beans,420,250,12
18/01/2024,Drip Kettle,1290,820,3
02/02/2024,Espresso Beans,420,250,15
14/02/2024,Ceramic Mug,180,65,40
27/02/2024,Drip Kettle,1290,820,5
09/03/2024,Ceramic Mug,180,65,22
21/03/2024,Espresso Beans,450,255,18
03/04/2024,Hand Grinder,2450,1600,4
15/04/2024,Ceramic Mug,180,70,35
30/04/2024,Espresso Beans,450,255,20
12/05/2024,Hand Grinder,2450,1600,6
15/05/2024,Drip Kettle,1250,820,7
28/05/2024,Sample Pack,0,40,10
`

// Store is an in-process source holding a fixed table.
type Store struct {
	mu    sync.Mutex
	name  string
	table source.Table
	err   error
}

var _ source.Source = (*Store)(nil)

// New returns a store serving t.
func New(name string, t source.Table) *Store {
	return &Store{name: name, table: t}
}

// NewFromCSV parses csvText into a store.
func NewFromCSV(name, csvText string) (*Store, error) {
	t, err := source.ReadCSV(strings.NewReader(csvText))
	if err != nil {
		return nil, err
	}
	return New(name, t), nil
}

// NewFromFile seeds the store from a CSV file, falling back to the built-in
// sample when the file is missing or unreadable.
func NewFromFile(path string) *Store {
	if path != "" {
		if f, err := os.Open(path); err == nil {
			defer f.Close()
			if t, err := source.ReadCSV(f); err == nil {
				return New("memory:"+path, t)
			}
		}
	}
	s, err := NewFromCSV("memory:sample", defaultCSV)
	if err != nil {
		panic(fmt.Sprintf("built-in sample is invalid: %v", err))
	}
	return s
}

// Name implements source.Source.
func (s *Store) Name() string { return s.name }

// Fetch implements source.Source. The returned table is a copy.
func (s *Store) Fetch(_ context.Context) (source.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return source.Table{}, s.err
	}
	out := source.Table{
		Header: append([]string(nil), s.table.Header...),
		Rows:   make([][]string, len(s.table.Rows)),
	}
	for i, r := range s.table.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out, nil
}

// Replace swaps the served table.
func (s *Store) Replace(t source.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
	s.err = nil
}

// Fail makes subsequent fetches return an unavailable-source error.
func (s *Store) Fail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = fmt.Errorf("%w: %s", core.ErrSourceUnavailable, reason)
}
