// Package duplicates groups tariff events that likely describe the same
// real-world action.
package duplicates

import (
	"sort"
	"strings"

	"tariff-tracker/internal/models"
)

// Config holds detector settings.
type Config struct {
	// ToleranceDays is the largest gap between announcement dates that
	// still counts as the same action.
	ToleranceDays int
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{ToleranceDays: 2}
}

// Detector finds duplicate groups.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector. A negative tolerance is treated as zero.
func NewDetector(cfg Config) *Detector {
	if cfg.ToleranceDays < 0 {
		cfg.ToleranceDays = 0
	}
	return &Detector{cfg: cfg}
}

// candidate is the per-event data the matching predicates look at.
type candidate struct {
	ev       *models.TariffEvent
	targets  map[string]bool
	products map[string]bool
}

// FindDuplicates returns every group of two or more events linked by a
// chain of direct matches. Events without an announcement date are never
// grouped. The result does not depend on input order.
func (d *Detector) FindDuplicates(events []models.TariffEvent) []models.DuplicateGroup {
	cands := make([]candidate, 0, len(events))
	for i := range events {
		ev := &events[i]
		if ev.AnnouncementDate == nil || ev.ImposingCountryCode == "" {
			continue
		}
		cands = append(cands, candidate{
			ev:       ev,
			targets:  setOf(ev.TargetedCountryCodes, strings.ToUpper),
			products: setOf(ev.ProductKeys(), strings.ToLower),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].ev.EventID < cands[j].ev.EventID
	})

	uf := newUnionFind(len(cands))
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if d.match(cands[i], cands[j]) {
				uf.union(i, j)
			}
		}
	}

	members := make(map[int][]int)
	for i := range cands {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	groups := make([]models.DuplicateGroup, 0)
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		ids := make([]string, len(idx))
		best := idx[0]
		for k, i := range idx {
			ids[k] = cands[i].ev.EventID
			if preferCanonical(cands[i].ev, cands[best].ev) {
				best = i
			}
		}
		sort.Strings(ids)
		groups = append(groups, models.DuplicateGroup{
			EventIDs:    ids,
			CanonicalID: cands[best].ev.EventID,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CanonicalID < groups[j].CanonicalID
	})
	return groups
}

// Match reports whether a and b are direct duplicates under this detector.
func (d *Detector) Match(a, b models.TariffEvent) bool {
	if a.AnnouncementDate == nil || b.AnnouncementDate == nil {
		return false
	}
	if a.ImposingCountryCode == "" {
		return false
	}
	return d.match(
		candidate{ev: &a, targets: setOf(a.TargetedCountryCodes, strings.ToUpper), products: setOf(a.ProductKeys(), strings.ToLower)},
		candidate{ev: &b, targets: setOf(b.TargetedCountryCodes, strings.ToUpper), products: setOf(b.ProductKeys(), strings.ToLower)},
	)
}

func (d *Detector) match(a, b candidate) bool {
	if !strings.EqualFold(a.ev.ImposingCountryCode, b.ev.ImposingCountryCode) {
		return false
	}
	if !intersects(a.targets, b.targets) {
		return false
	}
	if !intersects(a.products, b.products) {
		return false
	}
	return a.ev.AnnouncementDate.DaysBetween(*b.ev.AnnouncementDate) <= d.cfg.ToleranceDays
}

// preferCanonical reports whether a should replace b as the canonical
// member: more articles, then earlier announcement, then lower id.
func preferCanonical(a, b *models.TariffEvent) bool {
	if len(a.SourceArticles) != len(b.SourceArticles) {
		return len(a.SourceArticles) > len(b.SourceArticles)
	}
	if !a.AnnouncementDate.Time().Equal(b.AnnouncementDate.Time()) {
		return a.AnnouncementDate.Before(*b.AnnouncementDate)
	}
	return a.EventID < b.EventID
}

func setOf(values []string, fold func(string) string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[fold(v)] = true
	}
	return set
}

func intersects(a, b map[string]bool) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// Flag returns the ids of non-canonical group members, the events a caller
// should mark as likely duplicates.
func Flag(groups []models.DuplicateGroup) map[string]bool {
	flagged := make(map[string]bool)
	for _, g := range groups {
		for _, id := range g.Duplicates() {
			flagged[id] = true
		}
	}
	return flagged
}

// Dedupe returns events without the non-canonical members of groups,
// preserving order.
func Dedupe(events []models.TariffEvent, groups []models.DuplicateGroup) []models.TariffEvent {
	flagged := Flag(groups)
	out := make([]models.TariffEvent, 0, len(events))
	for _, ev := range events {
		if !flagged[ev.EventID] {
			out = append(out, ev)
		}
	}
	return out
}

// GroupOf returns the group containing id, if any.
func GroupOf(groups []models.DuplicateGroup, id string) (models.DuplicateGroup, bool) {
	for _, g := range groups {
		for _, member := range g.EventIDs {
			if member == id {
				return g, true
			}
		}
	}
	return models.DuplicateGroup{}, false
}
