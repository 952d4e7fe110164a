package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"salesdash/internal/core"
	"salesdash/internal/source"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads the sales table from a spreadsheet range with the Sheets API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

var _ source.Source = (*Client)(nil)

// Config selects the spreadsheet and the range holding the table. The first
// row of the range is the header.
type Config struct {
	SpreadsheetID string
	Range         string
}

// New creates a Sheets client using credentials from the environment: a
// service account (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS), or else an OAuth client and user token
// (GOOGLE_OAUTH_CLIENT_JSON or _FILE, GOOGLE_OAUTH_TOKEN_JSON or _FILE).
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	rng := strings.TrimSpace(cfg.Range)
	if rng == "" {
		rng = "Sheet1"
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, readRange: rng}, nil
}

// newSheetsService initializes a read-only Sheets service.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var opts []goption.ClientOption
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		opts = append(opts, goption.WithCredentialsJSON([]byte(serviceAccountJSON)))
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		opts = append(opts, goption.WithCredentialsJSON(b))
	default:
		hc, err := oauthClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials")
		opts = append(opts, goption.WithHTTPClient(hc))
	}

	service, err := gsheet.NewService(ctx, append(opts, goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// oauthClientFromEnv builds an HTTP client from an OAuth client definition
// and a saved user token, as written by salesdash-oauth.
func oauthClientFromEnv(ctx context.Context) (*http.Client, error) {
	clientJSON, err := readInlineOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := readInlineOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, errors.New("missing Google credentials (set a service account, or both an OAuth client and token)")
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}
	return cfg.Client(ctx, &tok), nil
}

// readInlineOrFile returns the inline value of jsonKey, else the contents of
// the file named by fileKey, else nil.
func readInlineOrFile(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return b, nil
}

// Name implements source.Source.
func (c *Client) Name() string {
	return "sheets:" + c.spreadsheetID + "!" + c.readRange
}

// Fetch implements source.Source.
func (c *Client) Fetch(ctx context.Context) (source.Table, error) {
	if c.svc == nil {
		return source.Table{}, fmt.Errorf("%w: sheets service not initialized", core.ErrSourceUnavailable)
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return source.Table{}, fmt.Errorf("%w: read %s: %v", core.ErrSourceUnavailable, c.readRange, err)
	}
	return tableFromValues(resp.Values)
}

// tableFromValues converts a Sheets values matrix into a Table.
func tableFromValues(values [][]interface{}) (source.Table, error) {
	if len(values) == 0 {
		return source.Table{}, fmt.Errorf("%w: range is empty", core.ErrSourceUnavailable)
	}
	t := source.Table{Header: toStrings(values[0])}
	for _, row := range values[1:] {
		cols := toStrings(row)
		blank := true
		for _, v := range cols {
			if v != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, cols)
	}
	return t, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
