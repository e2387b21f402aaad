package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fetchmux/fetchmux/internal/model"

	_ "modernc.org/sqlite"
)

const createFetchesTable = `
CREATE TABLE IF NOT EXISTS fetches (
    id          TEXT PRIMARY KEY,
    url         TEXT NOT NULL,
    engine      TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    status      INTEGER,
    bytes       INTEGER NOT NULL DEFAULT 0,
    error       TEXT,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createFetchesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fetches table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordFetch inserts a new fetch record.
func (s *SQLiteStore) RecordFetch(ctx context.Context, f *model.Fetch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (
			id, url, engine, outcome, status, bytes, error,
			duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.URL, f.Engine, f.Outcome, f.Status, f.Bytes, f.Error,
		f.DurationMS, f.CreatedAt, f.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch: %w", err)
	}
	return nil
}

// GetFetch retrieves a fetch record by ID.
func (s *SQLiteStore) GetFetch(ctx context.Context, id string) (*model.Fetch, error) {
	f := &model.Fetch{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, engine, outcome, status, bytes, error,
			duration_ms, created_at, finished_at
		FROM fetches WHERE id = ?`, id,
	).Scan(
		&f.ID, &f.URL, &f.Engine, &f.Outcome, &f.Status, &f.Bytes, &f.Error,
		&f.DurationMS, &f.CreatedAt, &f.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fetch: %w", err)
	}
	return f, nil
}

// ListFetches returns a paginated list of fetch records ordered by
// created_at DESC, along with the total count of all records.
func (s *SQLiteStore) ListFetches(ctx context.Context, limit, offset int) ([]*model.Fetch, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM fetches").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fetches: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, url, engine, outcome, status, bytes, error,
			duration_ms, created_at, finished_at
		FROM fetches ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list fetches: %w", err)
	}
	defer rows.Close()

	var fetches []*model.Fetch
	for rows.Next() {
		f := &model.Fetch{}
		if err := rows.Scan(
			&f.ID, &f.URL, &f.Engine, &f.Outcome, &f.Status, &f.Bytes, &f.Error,
			&f.DurationMS, &f.CreatedAt, &f.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan fetch: %w", err)
		}
		fetches = append(fetches, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate fetches: %w", err)
	}

	return fetches, total, nil
}

// GetFetchStats computes aggregate statistics across all recorded fetches.
func (s *SQLiteStore) GetFetchStats(ctx context.Context) (*FetchStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &FetchStats{
		CountByOutcome: make(map[string]int),
		CountByEngine:  make(map[string]int),
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0), COALESCE(SUM(bytes), 0) FROM fetches`,
	).Scan(&stats.Total, &stats.AvgDurationMS, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("aggregate fetches: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM fetches GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		stats.CountByOutcome[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	engRows, err := tx.QueryContext(ctx, "SELECT engine, COUNT(*) FROM fetches GROUP BY engine")
	if err != nil {
		return nil, fmt.Errorf("count by engine: %w", err)
	}
	defer engRows.Close()
	for engRows.Next() {
		var engine string
		var count int
		if err := engRows.Scan(&engine, &count); err != nil {
			return nil, fmt.Errorf("scan engine count: %w", err)
		}
		stats.CountByEngine[engine] = count
	}
	if err := engRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine counts: %w", err)
	}

	return stats, nil
}
