// Package store provides local persistence for the tariff tracker.
package store

import (
	"context"
	"time"

	"tariff-tracker/internal/eventsapi"
)

// DataStore defines the interface for local persistence.
type DataStore interface {
	// API response cache
	GetResponse(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, request []byte, pageToken string, body []byte) error
	PurgeResponses(ctx context.Context, olderThan time.Duration) (int64, error)
	CacheStats(ctx context.Context) (CacheStats, error)

	// Saved queries
	SaveQuery(ctx context.Context, q *SavedQuery) error
	GetQuery(ctx context.Context, nameOrID string) (*SavedQuery, error)
	ListQueries(ctx context.Context) ([]SavedQuery, error)
	DeleteQuery(ctx context.Context, nameOrID string) error

	// Fetch runs
	RecordRun(ctx context.Context, run *Run) error
	GetRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Sync
	GetLastSync(source string) time.Time
	SetLastSync(source string, t time.Time) error

	// Lifecycle
	Close() error
}

// SavedQuery is a named events search.
type SavedQuery struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Query     eventsapi.Query `json:"query" yaml:"query"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Run records one pipeline fetch.
type Run struct {
	ID              string        `json:"id" yaml:"id"`
	Source          string        `json:"source" yaml:"source"`
	StartedAt       time.Time     `json:"started_at" yaml:"started_at"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	Pages           int           `json:"pages" yaml:"pages"`
	Events          int           `json:"events" yaml:"events"`
	Skipped         int           `json:"skipped" yaml:"skipped"`
	DateWarnings    int           `json:"date_warnings" yaml:"date_warnings"`
	DuplicateGroups int           `json:"duplicate_groups" yaml:"duplicate_groups"`
	Error           string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunFilter represents filters for querying runs.
type RunFilter struct {
	Source string
	Since  time.Time
	Limit  int
}

// CacheStats summarizes the response cache.
type CacheStats struct {
	Entries int       `json:"entries" yaml:"entries"`
	Bytes   int64     `json:"bytes" yaml:"bytes"`
	Oldest  time.Time `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty" yaml:"newest,omitempty"`
}
