// Package csvhttp reads a comma-separated table over HTTP, such as the
// "publish to web" CSV export of a Google spreadsheet.
package csvhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salesdash/internal/core"
	"salesdash/internal/source"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 32 << 20

type Client struct {
	url        string
	httpClient *http.Client
}

var _ source.Source = (*Client)(nil)

// New returns a client for rawURL. A zero timeout means 30 seconds.
func New(rawURL string, timeout time.Duration) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("missing CSV source URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse CSV source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported CSV source URL scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: rawURL, httpClient: newHTTPClientWithPooling(timeout)}, nil
}

// NewWithHTTPClient lets callers supply their own transport.
func NewWithHTTPClient(rawURL string, hc *http.Client) *Client {
	return &Client{url: rawURL, httpClient: hc}
}

// Name implements source.Source.
func (c *Client) Name() string {
	u, err := url.Parse(c.url)
	if err != nil {
		return "csv"
	}
	return "csv:" + u.Host + u.Path
}

// Fetch implements source.Source.
func (c *Client) Fetch(ctx context.Context) (source.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return source.Table{}, fmt.Errorf("%w: build request: %v", core.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", "salesdash/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return source.Table{}, fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return source.Table{}, fmt.Errorf("%w: read body: %v", core.ErrSourceUnavailable, err)
	}

	slog.DebugContext(ctx, "CSV source fetched",
		"url", c.url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return source.Table{}, fmt.Errorf("%w: status=%d snippet=%q", core.ErrSourceUnavailable, resp.StatusCode, snippet(body))
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return source.Table{}, fmt.Errorf("%w: empty response", core.ErrSourceUnavailable)
	}
	// Unpublished or private sheets answer 200 with a sign-in page.
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if trimmed[0] == '<' || strings.Contains(ct, "text/html") {
		return source.Table{}, fmt.Errorf("%w: response is HTML, not CSV snippet=%q", core.ErrSourceUnavailable, snippet(trimmed))
	}

	return source.ReadCSV(bytes.NewReader(body))
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

// newHTTPClientWithPooling creates a client with dial, TLS and header
// timeouts in addition to the overall request timeout.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
