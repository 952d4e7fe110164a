package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"salesdash/internal/core"
)

func event(i int, ok bool) core.RefreshEvent {
	start := time.Date(2024, 5, 15, 12, 0, i, 0, time.UTC)
	ev := core.RefreshEvent{
		Source:      "memory:test",
		StartedAt:   start,
		FinishedAt:  start.Add(250 * time.Millisecond),
		Rows:        10 + i,
		DroppedRows: i,
		Success:     ok,
	}
	if !ok {
		ev.Error = "source unavailable: status=500"
	}
	return ev
}

func exerciseRecorder(t *testing.T, r RefreshRecorder) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := r.RecordRefresh(ctx, event(i, i != 1)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := r.RecentRefreshes(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Rows != 12 || got[1].Rows != 11 {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if got[1].Success || got[1].Error == "" {
		t.Fatalf("failed refresh not preserved: %+v", got[1])
	}
	if !got[0].StartedAt.Equal(event(2, true).StartedAt) || !got[0].FinishedAt.Equal(event(2, true).FinishedAt) {
		t.Fatalf("timestamps not preserved: %+v", got[0])
	}
	if got[0].ID <= got[1].ID {
		t.Fatalf("ids should increase: %d <= %d", got[0].ID, got[1].ID)
	}

	all, err := r.RecentRefreshes(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("default limit: got %d events, err=%v", len(all), err)
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	exerciseRecorder(t, repo)
}

func TestSQLiteRepositoryReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.RecordRefresh(context.Background(), event(0, true)); err != nil {
		t.Fatalf("record: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen (migrations must be idempotent): %v", err)
	}
	defer repo.Close()
	got, err := repo.RecentRefreshes(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted event, got %d err=%v", len(got), err)
	}
}

func TestMemoryRecorder(t *testing.T) {
	exerciseRecorder(t, NewMemoryRecorder(10))
}

func TestMemoryRecorderBounded(t *testing.T) {
	m := NewMemoryRecorder(2)
	for i := 0; i < 5; i++ {
		_, _ = m.RecordRefresh(context.Background(), event(i, true))
	}
	got, _ := m.RecentRefreshes(context.Background(), 10)
	if len(got) != 2 || got[0].Rows != 14 || got[1].Rows != 13 {
		t.Fatalf("unexpected retained events: %+v", got)
	}
}
