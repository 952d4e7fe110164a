package storage

import (
	"context"
	"sync"

	"salesdash/internal/core"
)

// MemoryRecorder keeps the most recent refresh events in process.
type MemoryRecorder struct {
	mu     sync.Mutex
	max    int
	nextID int64
	events []core.RefreshEvent
}

var _ RefreshRecorder = (*MemoryRecorder)(nil)

// NewMemoryRecorder keeps at most max events (100 when max <= 0).
func NewMemoryRecorder(max int) *MemoryRecorder {
	if max <= 0 {
		max = 100
	}
	return &MemoryRecorder{max: max}
}

// RecordRefresh implements RefreshRecorder.
func (m *MemoryRecorder) RecordRefresh(_ context.Context, ev core.RefreshEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, ev)
	if len(m.events) > m.max {
		m.events = append([]core.RefreshEvent(nil), m.events[len(m.events)-m.max:]...)
	}
	return ev.ID, nil
}

// RecentRefreshes implements RefreshRecorder.
func (m *MemoryRecorder) RecentRefreshes(_ context.Context, limit int) ([]core.RefreshEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]core.RefreshEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
