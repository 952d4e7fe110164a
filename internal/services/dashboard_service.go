// Package services composes the sales pipeline: cached loading, filtering,
// aggregation, refresh history and refresh events.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salesdash/internal/cache"
	"salesdash/internal/core"
	"salesdash/internal/log"
	"salesdash/internal/storage"
)

// DatasetLoader produces a fresh dataset. *loader.Loader satisfies it.
type DatasetLoader interface {
	Load(ctx context.Context) (*core.Dataset, error)
	SourceName() string
}

// Publisher announces refreshed datasets. *amqp.Client satisfies it.
type Publisher interface {
	PublishDatasetRefreshed(ctx context.Context, d *core.Dataset) error
}

// View is everything a presentation layer needs for one selection.
type View struct {
	Products  []string
	Selected  []string
	Filtered  *core.Dataset
	Summary   core.Summary
	Monthly   []core.MonthTotal
	FetchedAt time.Time
	Source    string
	HasDates  bool
	Stats     core.LoadStats
}

// Status reports the outcome of the most recent load attempt.
type Status struct {
	Attempted   bool
	LastSuccess time.Time
	LastError   string
	LastAttempt time.Time
}

// Ready is true until a load has failed more recently than one succeeded.
func (s Status) Ready() bool {
	return !s.Attempted || s.LastError == ""
}

// DashboardService serves cached datasets and the derived views.
type DashboardService struct {
	loader     DatasetLoader
	snapshot   *cache.Snapshot[*core.Dataset]
	recorder   storage.RefreshRecorder
	publisher  Publisher
	logger     *log.Logger
	structured *log.StructuredLogger
	clock      cache.Clock

	mu     sync.RWMutex
	status Status
}

type Option func(*DashboardService)

// WithRecorder stores every load attempt.
func WithRecorder(r storage.RefreshRecorder) Option {
	return func(s *DashboardService) { s.recorder = r }
}

// WithPublisher announces every successful load.
func WithPublisher(p Publisher) Option {
	return func(s *DashboardService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *DashboardService) { s.logger = l }
}

// WithClock replaces the wall clock used for freshness and history.
func WithClock(c cache.Clock) Option {
	return func(s *DashboardService) { s.clock = c }
}

// NewDashboardService caches loads from l for window.
func NewDashboardService(l DatasetLoader, window time.Duration, opts ...Option) *DashboardService {
	s := &DashboardService{loader: l}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	if s.clock == nil {
		s.clock = cache.SystemClock()
	}
	s.logger = s.logger.WithComponent(log.ComponentDashboard)
	s.structured = log.NewStructuredLogger(s.logger)
	s.snapshot = cache.NewSnapshot[*core.Dataset](window, s.clock)
	return s
}

// Dataset returns the cached dataset, loading it when stale.
func (s *DashboardService) Dataset(ctx context.Context) (*core.Dataset, error) {
	d, _, err := s.snapshot.GetOrRefresh(ctx, s.load)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// View filters the dataset by sel and computes the summary and the monthly
// trend. The product list always comes from the unfiltered dataset.
func (s *DashboardService) View(ctx context.Context, sel core.Selection) (*View, error) {
	d, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	filtered := core.Filter(d, sel)
	return &View{
		Products:  core.Products(d),
		Selected:  sel.Names(),
		Filtered:  filtered,
		Summary:   core.Summarize(filtered),
		Monthly:   core.MonthlyAggregate(filtered),
		FetchedAt: d.FetchedAt,
		Source:    d.Source,
		HasDates:  d.HasDates,
		Stats:     d.Stats,
	}, nil
}

// Refresh discards the cached dataset and loads a new one.
func (s *DashboardService) Refresh(ctx context.Context) (*core.Dataset, error) {
	s.snapshot.Invalidate()
	return s.Dataset(ctx)
}

// History returns the most recent load attempts, newest first.
func (s *DashboardService) History(ctx context.Context, limit int) ([]core.RefreshEvent, error) {
	if s.recorder == nil {
		return nil, nil
	}
	events, err := s.recorder.RecentRefreshes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("refresh history: %w", err)
	}
	return events, nil
}

// Status returns the outcome of the last load attempt.
func (s *DashboardService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SourceName names the configured source.
func (s *DashboardService) SourceName() string {
	return s.loader.SourceName()
}

// FreshUntil returns when the cached dataset expires, zero if none is cached.
func (s *DashboardService) FreshUntil() time.Time {
	at := s.snapshot.LoadedAt()
	if at.IsZero() {
		return at
	}
	return at.Add(s.snapshot.Window())
}

// load runs inside the cache's single flight, so it executes once per
// actual fetch no matter how many callers are waiting.
func (s *DashboardService) load(ctx context.Context) (*core.Dataset, error) {
	started := s.clock.Now()
	d, err := s.loader.Load(ctx)
	finished := s.clock.Now()

	ev := core.RefreshEvent{
		Source:     s.loader.SourceName(),
		StartedAt:  started,
		FinishedAt: finished,
		Success:    err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Rows = d.Len()
		ev.DroppedRows = d.Stats.DroppedRows()
	}

	s.mu.Lock()
	s.status.Attempted = true
	s.status.LastAttempt = finished
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
		s.status.LastSuccess = finished
	}
	s.mu.Unlock()

	s.structured.LogRefresh(ctx, ev.Source, ev.Rows, ev.DroppedRows, err)
	s.record(ctx, ev)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, d)
	return d, nil
}

func (s *DashboardService) record(ctx context.Context, ev core.RefreshEvent) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.RecordRefresh(ctx, ev); err != nil {
		s.structured.LogError(ctx, "Failed to record refresh", err, log.ComponentStorage, log.OpRecord, nil)
	}
}

func (s *DashboardService) publish(ctx context.Context, d *core.Dataset) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDatasetRefreshed(ctx, d); err != nil {
		s.structured.LogError(ctx, "Failed to publish refresh event", err, log.ComponentAMQP, log.OpPublish, nil)
	}
}

// Close releases the recorder and publisher when they hold resources.
func (s *DashboardService) Close() error {
	var errs []error
	if c, ok := s.recorder.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
