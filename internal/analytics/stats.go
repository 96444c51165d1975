package analytics

import (
	"math"
	"sort"

	"tariff-tracker/internal/models"
)

// Stats is the headline summary shown on the dashboard.
type Stats struct {
	TotalEvents       int            `json:"total_events" yaml:"total_events"`
	ImposingCountries []string       `json:"imposing_countries" yaml:"imposing_countries"`
	TargetedCountries []string       `json:"targeted_countries" yaml:"targeted_countries"`
	MeasureTypes      map[string]int `json:"measure_types" yaml:"measure_types"`
	// AvgTariffRate is the mean main rate over RatedEvents, rounded to 2dp.
	AvgTariffRate float64        `json:"avg_tariff_rate" yaml:"avg_tariff_rate"`
	RatedEvents   int            `json:"rated_events" yaml:"rated_events"`
	MaxTariffRate *float64       `json:"max_tariff_rate,omitempty" yaml:"max_tariff_rate,omitempty"`
	Industries    map[string]int `json:"affected_industries" yaml:"affected_industries"`
	Products      []string       `json:"affected_products" yaml:"affected_products"`
	Earliest      *models.Date   `json:"earliest_announcement,omitempty" yaml:"earliest_announcement,omitempty"`
	Latest        *models.Date   `json:"latest_announcement,omitempty" yaml:"latest_announcement,omitempty"`
}

// Summarize computes headline statistics over events.
func Summarize(events []models.TariffEvent) Stats {
	st := Stats{
		TotalEvents:       len(events),
		ImposingCountries: []string{},
		TargetedCountries: []string{},
		MeasureTypes:      map[string]int{},
		Industries:        map[string]int{},
		Products:          []string{},
	}

	imposing := map[string]bool{}
	targeted := map[string]bool{}
	products := map[string]bool{}
	sum := 0.0

	for i := range events {
		ev := &events[i]
		if ev.ImposingCountryName != "" {
			imposing[ev.ImposingCountryName] = true
		}
		for _, n := range ev.TargetedCountryNames {
			targeted[n] = true
		}

		mt := ev.MeasureType
		if mt == "" {
			mt = models.UnknownKey
		}
		st.MeasureTypes[mt]++

		if ev.MainTariffRate != nil && finite(*ev.MainTariffRate) {
			r := *ev.MainTariffRate
			sum += r
			st.RatedEvents++
			if st.MaxTariffRate == nil || r > *st.MaxTariffRate {
				st.MaxTariffRate = models.Float(r)
			}
		}

		for _, ind := range ev.AffectedIndustries {
			st.Industries[ind]++
		}
		for _, p := range ev.AffectedProducts {
			products[p] = true
		}

		if d := ev.AnnouncementDate; d != nil {
			if st.Earliest == nil || d.Before(*st.Earliest) {
				v := *d
				st.Earliest = &v
			}
			if st.Latest == nil || d.After(*st.Latest) {
				v := *d
				st.Latest = &v
			}
		}
	}

	if st.RatedEvents > 0 {
		st.AvgTariffRate = math.Round(sum/float64(st.RatedEvents)*100) / 100
	}
	st.ImposingCountries = sortedKeys(imposing)
	st.TargetedCountries = sortedKeys(targeted)
	st.Products = sortedKeys(products)
	return st
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HistogramBin is one bin of a rate histogram. Lower is inclusive; Upper is
// exclusive except for the last bin.
type HistogramBin struct {
	Lower float64 `json:"lower" yaml:"lower" csv:"lower"`
	Upper float64 `json:"upper" yaml:"upper" csv:"upper"`
	Count int     `json:"count" yaml:"count" csv:"count"`
}

// Histogram is the distribution of main tariff rates.
type Histogram struct {
	Bins []HistogramBin `json:"bins" yaml:"bins"`
	// Missing counts events without a main rate.
	Missing int `json:"missing" yaml:"missing"`
}

// MaxHistogramBins bounds the bin count a caller may ask for.
const MaxHistogramBins = 200

// RateHistogram bins main tariff rates into equal-width bins spanning the
// observed range. bins is clamped to MaxHistogramBins.
func RateHistogram(events []models.TariffEvent, bins int) Histogram {
	if bins <= 0 {
		bins = 20
	}
	bins = min(bins, MaxHistogramBins)
	h := Histogram{Bins: []HistogramBin{}}

	var rates []float64
	for i := range events {
		if r := events[i].MainTariffRate; r != nil && finite(*r) {
			rates = append(rates, *r)
		} else {
			h.Missing++
		}
	}
	if len(rates) == 0 {
		return h
	}

	lo, hi := rates[0], rates[0]
	for _, r := range rates {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	if hi == lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)

	h.Bins = make([]HistogramBin, bins)
	for i := range h.Bins {
		h.Bins[i].Lower = lo + float64(i)*width
		h.Bins[i].Upper = lo + float64(i+1)*width
	}
	h.Bins[bins-1].Upper = hi

	for _, r := range rates {
		i := int((r - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		h.Bins[i].Count++
	}
	return h
}
