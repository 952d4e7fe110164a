// Package backend builds the configured sales data source.
package backend

import (
	"context"
	"time"

	"salesdash/internal/source"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// SourceResult contains the source and an optional cleanup function.
type SourceResult struct {
	Source  source.Source
	Cleanup CleanupFunc
}

// Factory creates sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*SourceResult, error)
}

// Config holds configuration for source creation
type Config struct {
	Type SourceType

	// csv
	CSVURL       string
	FetchTimeout time.Duration

	// sheets
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	// memory
	SeedFile string
}

// SourceType names a source implementation.
type SourceType string

const (
	CSVSource    SourceType = "csv"
	SheetsSource SourceType = "sheets"
	MemorySource SourceType = "memory"
)

func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is known.
func (st SourceType) IsValid() bool {
	switch st {
	case CSVSource, SheetsSource, MemorySource:
		return true
	default:
		return false
	}
}
