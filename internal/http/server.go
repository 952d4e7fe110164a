// Package http serves the sales dashboard page and its JSON API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"salesdash/internal/core"
	"salesdash/internal/format"
	"salesdash/internal/log"
	"salesdash/internal/middleware/ratelimit"
	"salesdash/internal/middleware/security"
	"salesdash/internal/middleware/trace"
	"salesdash/internal/services"
	appweb "salesdash/web"
)

// Dashboard is what the server needs from the pipeline.
// *services.DashboardService implements it.
type Dashboard interface {
	View(ctx context.Context, sel core.Selection) (*services.View, error)
	Refresh(ctx context.Context) (*core.Dataset, error)
	History(ctx context.Context, limit int) ([]core.RefreshEvent, error)
	Status() services.Status
	SourceName() string
	FreshUntil() time.Time
}

type Config struct {
	Addr           string
	CurrencySymbol string
	// RefreshLimit is the number of manual refreshes a client may request
	// per minute.
	RefreshLimit int
	Logger       *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard Dashboard
	currency  string
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg Config, dash Dashboard) (*Server, error) {
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = format.DefaultCurrencySymbol
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	logger := cfg.Logger.WithComponent(log.ComponentHTTP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		dashboard: dash,
		currency:  cfg.CurrencySymbol,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{Limit: cfg.RefreshLimit, Window: time.Minute}),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(cfg.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(sub)))))

	mux.Handle("GET /{$}", security.NoStore(http.HandlerFunc(s.handleIndex)))
	mux.Handle("GET /api/dashboard", security.NoStore(http.HandlerFunc(s.handleDashboardAPI)))
	mux.Handle("GET /api/products", security.NoStore(http.HandlerFunc(s.handleProducts)))
	mux.Handle("GET /api/records", security.NoStore(http.HandlerFunc(s.handleRecords)))
	mux.Handle("GET /api/refreshes", security.NoStore(http.HandlerFunc(s.handleRefreshes)))
	mux.Handle("POST /api/refresh", s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(
		http.HandlerFunc(s.handleRefresh)))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.flagSuspicious(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// flagSuspicious logs probing traffic; the request is still served normally.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Refresh rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	writeJSONError(w, http.StatusTooManyRequests, "too many refresh requests, try again shortly")
}

// Shutdown stops the limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
