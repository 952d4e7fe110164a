package backend

import (
	"fmt"

	"salesdash/internal/config"
)

// FromAppConfig converts the application config to source config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sourceType := SourceType(appConfig.SourceBackend)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid source type in config: %s", appConfig.SourceBackend)
	}

	return Config{
		Type:                sourceType,
		CSVURL:              appConfig.SourceCSVURL,
		FetchTimeout:        appConfig.FetchTimeout,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetRange:    appConfig.GoogleSheetRange,
		SeedFile:            appConfig.SourceSeedFile,
	}, nil
}

// Validate checks the fields the selected source needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Type)
	}

	switch c.Type {
	case CSVSource:
		if c.CSVURL == "" {
			return fmt.Errorf("CSV URL is required for csv source")
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
	case MemorySource:
		// Falls back to the built-in sample when SeedFile is missing.
	}

	return nil
}

// GetSourceTypeStrings returns all valid source type strings
func GetSourceTypeStrings() []string {
	return []string{CSVSource.String(), SheetsSource.String(), MemorySource.String()}
}
