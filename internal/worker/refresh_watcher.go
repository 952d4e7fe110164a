// Package worker consumes dataset refresh events and flags suspicious loads.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/amqp"
	"salesdash/internal/log"
)

// Thresholds for anomaly warnings.
const (
	DefaultShrinkRatio  = 0.5
	DefaultDroppedRatio = 0.2
)

// SourceState is what the watcher remembers about one source.
type SourceState struct {
	Source      string
	Refreshes   int
	LastRows    int
	LastDropped int
	LastSales   decimal.Decimal
	LastFetched time.Time
	LastSeen    time.Time
}

// Anomaly describes why a refresh looked wrong.
type Anomaly struct {
	Source string
	Reason string
}

// RefreshWatcher tracks refresh events per source. A refresh is anomalous
// when the row count falls below ShrinkRatio of the previous refresh, or
// when more than DroppedRatio of the source rows were skipped.
type RefreshWatcher struct {
	ShrinkRatio  float64
	DroppedRatio float64

	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	sources map[string]*SourceState
	onAlert func(Anomaly)
}

func NewRefreshWatcher(logger *log.Logger) *RefreshWatcher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RefreshWatcher{
		ShrinkRatio:  DefaultShrinkRatio,
		DroppedRatio: DefaultDroppedRatio,
		logger:       logger.WithComponent(log.ComponentWorker),
		now:          time.Now,
		sources:      make(map[string]*SourceState),
	}
}

// OnAnomaly registers a callback invoked for every anomaly.
func (w *RefreshWatcher) OnAnomaly(fn func(Anomaly)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onAlert = fn
}

// HandleDatasetRefreshed records one refresh event. Messages without a
// source are rejected.
func (w *RefreshWatcher) HandleDatasetRefreshed(msg *amqp.DatasetRefreshedMessage) error {
	if msg == nil || msg.Source == "" {
		return fmt.Errorf("refresh event without source")
	}

	w.mu.Lock()
	st, ok := w.sources[msg.Source]
	if !ok {
		st = &SourceState{Source: msg.Source}
		w.sources[msg.Source] = st
	}
	anomalies := w.check(st, msg)
	st.Refreshes++
	st.LastRows = msg.Rows
	st.LastDropped = msg.DroppedRows
	st.LastSales = msg.TotalSales
	st.LastFetched = msg.FetchedAt
	st.LastSeen = w.now()
	alert := w.onAlert
	w.mu.Unlock()

	w.logger.Info("Dataset refreshed",
		log.FieldSource, msg.Source,
		log.FieldRows, msg.Rows,
		log.FieldDroppedRows, msg.DroppedRows,
		"total_sales", msg.TotalSales.StringFixed(2),
		"lag", w.now().Sub(msg.Timestamp).Round(time.Millisecond).String())

	for _, a := range anomalies {
		w.logger.Warn("Suspicious dataset refresh", log.FieldSource, a.Source, "reason", a.Reason)
		if alert != nil {
			alert(a)
		}
	}
	return nil
}

// check must be called with mu held, before st is updated.
func (w *RefreshWatcher) check(st *SourceState, msg *amqp.DatasetRefreshedMessage) []Anomaly {
	var out []Anomaly
	if st.Refreshes > 0 && st.LastRows > 0 && float64(msg.Rows) < float64(st.LastRows)*w.ShrinkRatio {
		out = append(out, Anomaly{
			Source: msg.Source,
			Reason: fmt.Sprintf("row count fell from %d to %d", st.LastRows, msg.Rows),
		})
	}
	if total := msg.Rows + msg.DroppedRows; total > 0 && float64(msg.DroppedRows)/float64(total) > w.DroppedRatio {
		out = append(out, Anomaly{
			Source: msg.Source,
			Reason: fmt.Sprintf("%d of %d source rows were skipped", msg.DroppedRows, total),
		})
	}
	return out
}

// Sources returns a copy of the per-source state.
func (w *RefreshWatcher) Sources() []SourceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]SourceState, 0, len(w.sources))
	for _, st := range w.sources {
		out = append(out, *st)
	}
	return out
}

// Run consumes events from c until ctx is cancelled.
func (w *RefreshWatcher) Run(ctx context.Context, c Consumer) error {
	w.logger.Info("Watching dataset refreshes")
	return c.ConsumeDatasetRefreshed(ctx, w.HandleDatasetRefreshed)
}

// Consumer delivers refresh events. *amqp.Client implements it.
type Consumer interface {
	ConsumeDatasetRefreshed(ctx context.Context, handler func(*amqp.DatasetRefreshedMessage) error) error
}
