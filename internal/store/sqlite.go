package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "tariff-tracker/internal/errors"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
	now       func() time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
		now:       time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Raw events_search responses keyed on request body and page token
	CREATE TABLE IF NOT EXISTS api_responses (
		cache_key TEXT PRIMARY KEY,
		request TEXT NOT NULL,
		page_token TEXT NOT NULL DEFAULT '',
		body BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	-- Saved searches
	CREATE TABLE IF NOT EXISTS saved_queries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		query TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Pipeline runs
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL DEFAULT 0,
		events INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		date_warnings INTEGER NOT NULL DEFAULT 0,
		duplicate_groups INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		source TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_responses_fetched ON api_responses(fetched_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON fetch_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON fetch_runs(source);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Response Cache Methods
// ============================================================================

// GetResponse returns the cached body for key when it is younger than
// maxAge. A zero maxAge accepts any age.
func (s *SQLiteStore) GetResponse(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT body, fetched_at FROM api_responses WHERE cache_key = ?
	`, key).Scan(&body, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached response: %w", err)
	}

	if maxAge > 0 && s.now().Sub(time.UnixMilli(fetchedAt)) > maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// PutResponse stores a response body, replacing any earlier copy.
func (s *SQLiteStore) PutResponse(ctx context.Context, key string, request []byte, pageToken string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO api_responses (cache_key, request, page_token, body, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, string(request), pageToken, body, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// PurgeResponses deletes cached responses older than olderThan. A zero
// duration empties the cache.
func (s *SQLiteStore) PurgeResponses(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UnixMilli()
	if olderThan <= 0 {
		cutoff = s.now().UnixMilli() + 1
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM api_responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge responses: %w", err)
	}
	return res.RowsAffected()
}

// CacheStats summarizes the response cache.
func (s *SQLiteStore) CacheStats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0), MIN(fetched_at), MAX(fetched_at)
		FROM api_responses
	`).Scan(&stats.Entries, &stats.Bytes, &oldest, &newest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.UnixMilli(newest.Int64)
	}
	return stats, nil
}

// ============================================================================
// Saved Query Methods
// ============================================================================

// SaveQuery inserts q, or replaces the query stored under the same name.
// q.ID and timestamps are filled in.
func (s *SQLiteStore) SaveQuery(ctx context.Context, q *SavedQuery) error {
	q.Name = strings.TrimSpace(q.Name)
	if q.Name == "" {
		return apperrors.NewValidationError("name", q.Name, "query name must not be empty")
	}
	body, err := json.Marshal(q.Query)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var id string
	var created time.Time
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM saved_queries WHERE name = ?`, q.Name).Scan(&id, &created)
	switch {
	case err == sql.ErrNoRows:
		id = q.ID
		if id == "" {
			id = uuid.NewString()
		}
		created = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO saved_queries (id, name, query, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, q.Name, string(body), created, now)
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE saved_queries SET query = ?, updated_at = ? WHERE id = ?
		`, string(body), now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to save query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	q.ID, q.CreatedAt, q.UpdatedAt = id, created, now
	return nil
}

// GetQuery looks a saved query up by id or name.
func (s *SQLiteStore) GetQuery(ctx context.Context, nameOrID string) (*SavedQuery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, query, created_at, updated_at
		FROM saved_queries WHERE id = ? OR name = ?
		LIMIT 1
	`, nameOrID, nameOrID)

	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query %q: %w", nameOrID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

// ListQueries returns all saved queries ordered by name.
func (s *SQLiteStore) ListQueries(ctx context.Context) ([]SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, query, created_at, updated_at
		FROM saved_queries ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var out []SavedQuery
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// DeleteQuery removes a saved query by id or name.
func (s *SQLiteStore) DeleteQuery(ctx context.Context, nameOrID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ? OR name = ?`, nameOrID, nameOrID)
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("query %q: %w", nameOrID, apperrors.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (*SavedQuery, error) {
	var q SavedQuery
	var body string
	if err := row.Scan(&q.ID, &q.Name, &body, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &q.Query); err != nil {
		return nil, fmt.Errorf("decoding query %s: %w", q.Name, err)
	}
	return &q, nil
}

// ============================================================================
// Run Methods
// ============================================================================

// RecordRun stores a pipeline run. run.ID is filled in when empty.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (id, source, started_at, duration_ms, pages, events, skipped, date_warnings, duplicate_groups, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.StartedAt.UTC(), run.Duration.Milliseconds(), run.Pages, run.Events,
		run.Skipped, run.DateWarnings, run.DuplicateGroups, nullString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// GetRuns returns runs, most recent first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `
		SELECT id, source, started_at, duration_ms, pages, events, skipped, date_warnings, duplicate_groups, error
		FROM fetch_runs WHERE 1=1
	`
	var args []any

	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &durationMs, &r.Pages, &r.Events,
			&r.Skipped, &r.DateWarnings, &r.DuplicateGroups, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Error = errText.String
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last successful fetch time for a source.
func (s *SQLiteStore) GetLastSync(source string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[source]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE source = ?
	`, source).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[source] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last successful fetch time for a source.
func (s *SQLiteStore) SetLastSync(source string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (source, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, source, t.UTC(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[source] = t
	s.mu.Unlock()

	return nil
}
