package backend

import (
	"context"
	"fmt"
	"log/slog"

	"salesdash/internal/source/csvhttp"
	gsheet "salesdash/internal/source/google"
	"salesdash/internal/source/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*SourceResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVSource:
		return f.createCSVSource(config)
	case SheetsSource:
		return f.createSheetsSource(ctx, config)
	case MemorySource:
		return f.createMemorySource(config)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVSource(config Config) (*SourceResult, error) {
	cli, err := csvhttp.New(config.CSVURL, config.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV source: %w", err)
	}

	f.logger.Info("Initialized CSV source", "source", cli.Name(), "timeout", config.FetchTimeout)

	return &SourceResult{Source: cli}, nil
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*SourceResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		Range:         config.GoogleSheetRange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
	}

	f.logger.Info("Initialized Google Sheets source", "source", cli.Name())

	return &SourceResult{Source: cli}, nil
}

func (f *DefaultFactory) createMemorySource(config Config) (*SourceResult, error) {
	store := memory.NewFromFile(config.SeedFile)

	f.logger.Info("Initialized memory source", "source", store.Name(), "seed_file", config.SeedFile)

	return &SourceResult{Source: store}, nil
}
