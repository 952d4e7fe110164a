package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Clock supplies the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type result[T any] struct {
	value  T
	loaded bool
}

// LoadFunc produces a fresh value for a Snapshot.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Snapshot holds a single value that stays fresh for a fixed window after it
// was loaded. Concurrent callers that find it stale share one load, and the
// new value replaces the old one in a single step.
type Snapshot[T any] struct {
	mu       sync.RWMutex
	window   time.Duration
	clock    Clock
	value    T
	loadedAt time.Time
	loaded   bool
	group    singleflight.Group
}

// NewSnapshot creates an empty snapshot with the given freshness window.
func NewSnapshot[T any](window time.Duration, clock Clock) *Snapshot[T] {
	if clock == nil {
		clock = SystemClock()
	}
	return &Snapshot[T]{window: window, clock: clock}
}

// Get returns the cached value if it is still fresh.
func (s *Snapshot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if !s.fresh() {
		return zero, false
	}
	return s.value, true
}

// GetOrRefresh returns the cached value while fresh, otherwise runs load and
// stores its result. The boolean reports whether this call caused a load.
// A failed load leaves the previous (expired) value untouched.
func (s *Snapshot[T]) GetOrRefresh(ctx context.Context, load LoadFunc[T]) (T, bool, error) {
	if v, ok := s.Get(); ok {
		return v, false, nil
	}

	// The shared load outlives a caller that gives up waiting.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("snapshot", func() (any, error) {
		// Another caller may have finished a load while we waited.
		if v, ok := s.Get(); ok {
			return result[T]{value: v}, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.value = v
		s.loadedAt = s.clock.Now()
		s.loaded = true
		s.mu.Unlock()
		return result[T]{value: v, loaded: true}, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result[T])
		return r.value, r.loaded, nil
	}
}

// Invalidate marks the current value stale so the next call reloads it.
func (s *Snapshot[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// LoadedAt returns when the current value was stored, zero if never.
func (s *Snapshot[T]) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Window returns the freshness window.
func (s *Snapshot[T]) Window() time.Duration {
	return s.window
}

// fresh must be called with mu held.
func (s *Snapshot[T]) fresh() bool {
	if !s.loaded {
		return false
	}
	return s.clock.Now().Before(s.loadedAt.Add(s.window))
}
