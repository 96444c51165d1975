// Package analytics computes chart-ready aggregates over normalized events.
package analytics

import (
	"fmt"
	"sort"
	"strings"

	"tariff-tracker/internal/models"
	"tariff-tracker/internal/normalize"
)

// Dimension is an event attribute to group by.
type Dimension string

const (
	ByImposingCountry Dimension = "imposing_country"
	ByTargetedCountry Dimension = "targeted_country"
	ByIndustry        Dimension = "industry"
	ByMeasureType     Dimension = "measure_type"
	ByRelevance       Dimension = "relevance"
	ByTime            Dimension = "time"
)

// Dimensions lists every supported dimension.
func Dimensions() []Dimension {
	return []Dimension{ByImposingCountry, ByTargetedCountry, ByIndustry, ByMeasureType, ByRelevance, ByTime}
}

// ParseDimension accepts a dimension name and a few short aliases.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "imposing_country", "imposing", "country":
		return ByImposingCountry, nil
	case "targeted_country", "targeted", "target":
		return ByTargetedCountry, nil
	case "industry", "industries":
		return ByIndustry, nil
	case "measure_type", "measure":
		return ByMeasureType, nil
	case "relevance", "relevance_score":
		return ByRelevance, nil
	case "time", "date", "announcement_date":
		return ByTime, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// MultiValued reports whether one event can contribute several keys.
func (d Dimension) MultiValued() bool {
	return d == ByTargetedCountry || d == ByIndustry
}

// Options tune an aggregation.
type Options struct {
	// Bucket is the time granularity for ByTime. Defaults to month.
	Bucket Bucket
}

// Group is one bucket of an aggregation.
type Group struct {
	Key   string `json:"key" yaml:"key" csv:"key"`
	Label string `json:"label" yaml:"label" csv:"label"`
	// Count is the number of events carrying Key.
	Count int `json:"count" yaml:"count" csv:"count"`
	// Share attributes each event fractionally across its keys, so shares
	// over all groups sum to the event count.
	Share float64 `json:"share" yaml:"share" csv:"share"`
}

// Result is the output of Aggregate.
type Result struct {
	Dimension Dimension `json:"dimension" yaml:"dimension"`
	Bucket    Bucket    `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Total     int       `json:"total" yaml:"total"`
	Groups    []Group   `json:"groups" yaml:"groups"`
}

// Get returns the group for key.
func (r Result) Get(key string) (Group, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// CountSum returns the sum of group counts.
func (r Result) CountSum() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Count
	}
	return n
}

// ShareSum returns the sum of group shares.
func (r Result) ShareSum() float64 {
	s := 0.0
	for _, g := range r.Groups {
		s += g.Share
	}
	return s
}

// Top returns at most n groups, keeping order. n <= 0 returns all.
func (r Result) Top(n int) []Group {
	if n <= 0 || n >= len(r.Groups) {
		return r.Groups
	}
	return r.Groups[:n]
}

// Aggregate groups events along dim. Events without a value for dim land in
// the "unknown" group so totals always reconcile with len(events).
func Aggregate(events []models.TariffEvent, dim Dimension, opts Options) Result {
	if opts.Bucket == "" {
		opts.Bucket = Month
	}

	res := Result{Dimension: dim, Total: len(events)}
	if dim == ByTime {
		res.Bucket = opts.Bucket
	}

	index := make(map[string]int)
	for i := range events {
		keys := keysFor(&events[i], dim, opts)
		share := 1.0 / float64(len(keys))
		for _, k := range keys {
			pos, ok := index[k.key]
			if !ok {
				pos = len(res.Groups)
				index[k.key] = pos
				res.Groups = append(res.Groups, Group{Key: k.key, Label: k.label})
			}
			res.Groups[pos].Count++
			res.Groups[pos].Share += share
		}
	}
	if res.Groups == nil {
		res.Groups = []Group{}
	}

	sortGroups(res.Groups, dim)
	return res
}

type keyLabel struct {
	key, label string
}

// keysFor returns the distinct keys of ev along dim, or the unknown key.
func keysFor(ev *models.TariffEvent, dim Dimension, opts Options) []keyLabel {
	var keys []keyLabel
	seen := make(map[string]bool)
	add := func(key, label string) {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		if label == "" {
			label = key
		}
		keys = append(keys, keyLabel{key, label})
	}

	switch dim {
	case ByImposingCountry:
		name := ev.ImposingCountryName
		if name == "" {
			name = normalize.CountryName(ev.ImposingCountryCode)
		}
		add(ev.ImposingCountryCode, name)
	case ByTargetedCountry:
		for i, code := range ev.TargetedCountryCodes {
			name := ""
			if i < len(ev.TargetedCountryNames) {
				name = ev.TargetedCountryNames[i]
			}
			add(code, name)
		}
	case ByIndustry:
		for _, ind := range ev.AffectedIndustries {
			add(ind, "")
		}
	case ByMeasureType:
		add(ev.MeasureType, "")
	case ByRelevance:
		add(ev.Relevance(), "")
	case ByTime:
		if ev.AnnouncementDate != nil {
			add(opts.Bucket.Key(*ev.AnnouncementDate), opts.Bucket.Label(*ev.AnnouncementDate))
		}
	}

	if len(keys) == 0 {
		return []keyLabel{{models.UnknownKey, models.UnknownKey}}
	}
	return keys
}

// sortGroups orders time groups chronologically and everything else by
// count descending then key. The unknown group always sorts last for time.
func sortGroups(groups []Group, dim Dimension) {
	if dim == ByTime {
		sort.Slice(groups, func(i, j int) bool {
			ui, uj := groups[i].Key == models.UnknownKey, groups[j].Key == models.UnknownKey
			if ui != uj {
				return uj
			}
			return groups[i].Key < groups[j].Key
		})
		return
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
}
