// Package storage keeps the history of dataset refreshes.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"salesdash/internal/core"

	_ "modernc.org/sqlite"
)

// RefreshRecorder stores the outcome of each load attempt.
type RefreshRecorder interface {
	RecordRefresh(ctx context.Context, ev core.RefreshEvent) (int64, error)
	// RecentRefreshes returns up to limit events, newest first.
	RecentRefreshes(ctx context.Context, limit int) ([]core.RefreshEvent, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

var _ RefreshRecorder = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent refresh records.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordRefresh implements RefreshRecorder.
func (r *SQLiteRepository) RecordRefresh(ctx context.Context, ev core.RefreshEvent) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO refreshes (source, started_at, finished_at, rows, dropped_rows, success, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Source,
		ev.StartedAt.UTC().Format(time.RFC3339Nano),
		ev.FinishedAt.UTC().Format(time.RFC3339Nano),
		ev.Rows,
		ev.DroppedRows,
		boolToInt(ev.Success),
		ev.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert refresh: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.DebugContext(ctx, "Refresh recorded to SQLite",
		"id", id,
		"source", ev.Source,
		"rows", ev.Rows,
		"success", ev.Success)

	return id, nil
}

// RecentRefreshes implements RefreshRecorder.
func (r *SQLiteRepository) RecentRefreshes(ctx context.Context, limit int) ([]core.RefreshEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, rows, dropped_rows, success, error
		 FROM refreshes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query refreshes: %w", err)
	}
	defer rows.Close()

	var out []core.RefreshEvent
	for rows.Next() {
		var (
			ev                core.RefreshEvent
			started, finished string
			success           int
		)
		if err := rows.Scan(&ev.ID, &ev.Source, &started, &finished, &ev.Rows, &ev.DroppedRows, &success, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan refresh: %w", err)
		}
		if ev.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		if ev.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at %q: %w", finished, err)
		}
		ev.Success = success != 0
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refreshes: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
