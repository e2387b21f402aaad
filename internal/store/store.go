package store

import (
	"context"
	"errors"

	"github.com/fetchmux/fetchmux/internal/model"
)

// ErrNotFound is returned when a fetch record is not found.
var ErrNotFound = errors.New("fetch not found")

// FetchStats holds aggregate transfer statistics.
type FetchStats struct {
	Total          int            `json:"total"`
	CountByOutcome map[string]int `json:"count_by_outcome"`
	CountByEngine  map[string]int `json:"count_by_engine"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
	TotalBytes     int64          `json:"total_bytes"`
}

// Store defines the persistence operations for the fetch history.
type Store interface {
	RecordFetch(ctx context.Context, f *model.Fetch) error
	GetFetch(ctx context.Context, id string) (*model.Fetch, error)
	ListFetches(ctx context.Context, limit, offset int) ([]*model.Fetch, int, error)
	GetFetchStats(ctx context.Context) (*FetchStats, error)
	Close() error
}
