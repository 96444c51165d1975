package analytics

import (
	"math"
	"sort"
	"strings"

	"tariff-tracker/internal/models"
)

// IndustryProfile summarizes the events touching one industry.
type IndustryProfile struct {
	Industry string `json:"industry" yaml:"industry"`
	Events   int    `json:"events" yaml:"events"`
	// AvgTariffRate is the mean main rate over RatedEvents, rounded to 2dp.
	AvgTariffRate float64 `json:"avg_tariff_rate" yaml:"avg_tariff_rate"`
	RatedEvents   int     `json:"rated_events" yaml:"rated_events"`
	// TopMeasure is the most frequent measure type, ties broken by name.
	TopMeasure string  `json:"top_measure" yaml:"top_measure"`
	Products   []Group `json:"products" yaml:"products"`
	Imposing   []Group `json:"imposing_countries" yaml:"imposing_countries"`
}

// CountValues counts the distinct values each event yields. Count is the
// number of events carrying a value; Share splits each event evenly over its
// values, as Aggregate does. Values compare case-insensitively and the first
// spelling seen is the label.
func CountValues(events []models.TariffEvent, values func(*models.TariffEvent) []string) []Group {
	index := make(map[string]int)
	var groups []Group
	for i := range events {
		var positions []int
		seen := make(map[string]bool)
		for _, v := range values(&events[i]) {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			pos, ok := index[key]
			if !ok {
				pos = len(groups)
				index[key] = pos
				groups = append(groups, Group{Key: key, Label: v})
			}
			positions = append(positions, pos)
		}
		for _, pos := range positions {
			groups[pos].Count++
			groups[pos].Share += 1.0 / float64(len(positions))
		}
	}
	if groups == nil {
		groups = []Group{}
	}
	sortGroups(groups, ByIndustry)
	return groups
}

// Products yields the affected products of an event.
func Products(ev *models.TariffEvent) []string { return ev.AffectedProducts }

// ProductCategories yields the HS product categories of an event.
func ProductCategories(ev *models.TariffEvent) []string { return ev.HSProductCategories }

// ProfileIndustry builds the profile of industry over events. Matching is
// case-insensitive; events not listing the industry are ignored.
func ProfileIndustry(events []models.TariffEvent, industry string) IndustryProfile {
	f := Filter{Industries: []string{industry}}
	matched := f.Apply(events)
	p := IndustryProfile{
		Industry: industry,
		Events:   len(matched),
		Products: CountValues(matched, Products),
		Imposing: []Group{},
	}
	if len(matched) == 0 {
		return p
	}
	p.Imposing = Aggregate(matched, ByImposingCountry, Options{}).Groups

	sum := 0.0
	measures := map[string]int{}
	for i := range matched {
		if r := matched[i].MainTariffRate; r != nil && finite(*r) {
			sum += *r
			p.RatedEvents++
		}
		if mt := matched[i].MeasureType; mt != "" {
			measures[mt]++
		}
	}
	if p.RatedEvents > 0 {
		p.AvgTariffRate = math.Round(sum/float64(p.RatedEvents)*100) / 100
	}
	p.TopMeasure = topKey(measures)
	return p
}

// ProfileIndustries profiles every industry present in events, most
// affected first.
func ProfileIndustries(events []models.TariffEvent) []IndustryProfile {
	industries := CountValues(events, func(ev *models.TariffEvent) []string { return ev.AffectedIndustries })
	out := make([]IndustryProfile, 0, len(industries))
	for _, g := range industries {
		out = append(out, ProfileIndustry(events, g.Label))
	}
	return out
}

func topKey(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
