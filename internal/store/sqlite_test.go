package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/eventsapi"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "tracker.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResponseCacheTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.PutResponse(ctx, "k1", []byte(`{"event_type":"tariffs_v2"}`), "", []byte(`{"events":[]}`)); err != nil {
		t.Fatalf("PutResponse: %v", err)
	}

	body, ok, err := s.GetResponse(ctx, "k1", time.Hour)
	if err != nil || !ok || string(body) != `{"events":[]}` {
		t.Fatalf("fresh read = %q, %v, %v", body, ok, err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := s.GetResponse(ctx, "k1", time.Hour); ok {
		t.Error("entry older than maxAge should miss")
	}
	if _, ok, _ := s.GetResponse(ctx, "k1", 0); !ok {
		t.Error("zero maxAge should accept any age")
	}
	if _, ok, _ := s.GetResponse(ctx, "missing", 0); ok {
		t.Error("unknown key should miss")
	}
}

func TestPurgeResponses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	_ = s.PutResponse(ctx, "old", nil, "", []byte("a"))
	now = now.Add(3 * time.Hour)
	_ = s.PutResponse(ctx, "new", nil, "2", []byte("bb"))

	stats, err := s.CacheStats(ctx)
	if err != nil || stats.Entries != 2 || stats.Bytes != 3 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}

	n, err := s.PurgeResponses(ctx, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1", n, err)
	}
	n, _ = s.PurgeResponses(ctx, 0)
	if n != 1 {
		t.Errorf("purge all = %d, want 1", n)
	}

	stats, _ = s.CacheStats(ctx)
	if stats.Entries != 0 || !stats.Oldest.IsZero() {
		t.Errorf("stats after purge = %+v", stats)
	}
}

func TestSavedQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rate := 10.0
	q := &SavedQuery{
		Name: "us-steel",
		Query: eventsapi.Query{
			ImposingCountries: []string{"US"},
			Industries:        []string{"Steel"},
			MinTariffRate:     &rate,
		},
	}
	if err := s.SaveQuery(ctx, q); err != nil {
		t.Fatalf("SaveQuery: %v", err)
	}
	if q.ID == "" {
		t.Fatal("SaveQuery should assign an id")
	}
	firstID := q.ID

	byName, err := s.GetQuery(ctx, "us-steel")
	if err != nil {
		t.Fatalf("GetQuery by name: %v", err)
	}
	if byName.ID != firstID || byName.Query.MinTariffRate == nil || *byName.Query.MinTariffRate != 10 {
		t.Errorf("by name = %+v", byName)
	}
	if _, err := s.GetQuery(ctx, firstID); err != nil {
		t.Errorf("GetQuery by id: %v", err)
	}

	// Saving under the same name replaces the query and keeps the id.
	replacement := &SavedQuery{Name: "us-steel", Query: eventsapi.Query{ImposingCountries: []string{"CA"}}}
	if err := s.SaveQuery(ctx, replacement); err != nil {
		t.Fatalf("SaveQuery replace: %v", err)
	}
	if replacement.ID != firstID {
		t.Errorf("replacement id = %s, want %s", replacement.ID, firstID)
	}

	_ = s.SaveQuery(ctx, &SavedQuery{Name: "eu-autos"})
	list, err := s.ListQueries(ctx)
	if err != nil || len(list) != 2 || list[0].Name != "eu-autos" {
		t.Fatalf("ListQueries = %+v, %v", list, err)
	}
	if list[1].Query.ImposingCountries[0] != "CA" {
		t.Errorf("replaced query = %+v", list[1].Query)
	}

	if err := s.DeleteQuery(ctx, "us-steel"); err != nil {
		t.Fatalf("DeleteQuery: %v", err)
	}
	if _, err := s.GetQuery(ctx, "us-steel"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleted query err = %v", err)
	}
	if err := s.DeleteQuery(ctx, "us-steel"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSaveQueryRejectsEmptyName(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveQuery(context.Background(), &SavedQuery{Name: "  "})
	if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("err = %v", err)
	}
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	runs := []*Run{
		{Source: "api", StartedAt: base, Duration: 1500 * time.Millisecond, Pages: 2, Events: 40, DuplicateGroups: 3},
		{Source: "sample", StartedAt: base.Add(time.Hour), Events: 12},
		{Source: "api", StartedAt: base.Add(2 * time.Hour), Error: "events api authentication failed"},
	}
	for _, r := range runs {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	got, err := s.GetRuns(ctx, RunFilter{Source: "api"})
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("runs = %d, want 2", len(got))
	}
	if got[0].Error == "" || got[1].Error != "" {
		t.Errorf("runs not most-recent first: %+v", got)
	}
	if got[1].Duration != 1500*time.Millisecond || got[1].Pages != 2 {
		t.Errorf("run fields = %+v", got[1])
	}

	limited, _ := s.GetRuns(ctx, RunFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != runs[2].ID {
		t.Errorf("limited = %+v", limited)
	}
}

func TestLastSyncAndFreshness(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	f := CheckFreshness(s, "api", time.Hour, now)
	if !f.Never || !f.IsStale {
		t.Errorf("never-synced freshness = %+v", f)
	}

	if err := s.SetLastSync("api", now.Add(-30*time.Minute)); err != nil {
		t.Fatalf("SetLastSync: %v", err)
	}
	f = CheckFreshness(s, "api", time.Hour, now)
	if f.IsStale || f.Age != 30*time.Minute {
		t.Errorf("fresh = %+v", f)
	}

	f = CheckFreshness(s, "api", 10*time.Minute, now)
	if !f.IsStale {
		t.Errorf("should be stale past threshold: %+v", f)
	}
}
