package store

import (
	"time"
)

// Freshness describes how current the local view of a source is.
type Freshness struct {
	Source   string        `json:"source" yaml:"source"`
	LastSync time.Time     `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
	Age      time.Duration `json:"age" yaml:"age"`
	IsStale  bool          `json:"stale" yaml:"stale"`
	Never    bool          `json:"never_synced" yaml:"never_synced"`
}

// CheckFreshness reports the age of the last successful fetch from source.
// Data older than threshold is stale; a source never fetched is always stale.
func CheckFreshness(ds DataStore, source string, threshold time.Duration, now time.Time) Freshness {
	f := Freshness{Source: source}
	last := ds.GetLastSync(source)
	if last.IsZero() {
		f.Never = true
		f.IsStale = true
		return f
	}

	f.LastSync = last
	f.Age = now.Sub(last)
	if f.Age < 0 {
		f.Age = 0
	}
	f.IsStale = threshold > 0 && f.Age > threshold
	return f
}
