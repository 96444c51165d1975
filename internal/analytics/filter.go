package analytics

import (
	"strings"

	"tariff-tracker/internal/models"
)

// Filter narrows an event set for the explorer views. Zero-valued fields
// do not filter.
type Filter struct {
	// ImposingCountries and TargetedCountries match codes or names,
	// case-insensitively.
	ImposingCountries []string
	TargetedCountries []string
	MeasureTypes      []string
	Industries        []string
	Relevance         []string
	// Keyword must appear in the summary, case-insensitively.
	Keyword string
	// MinRate drops events whose main rate is absent or below it.
	MinRate *float64
	// From and To bound the announcement date, inclusive. Events without
	// one are dropped when either bound is set.
	From *models.Date
	To   *models.Date
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return len(f.ImposingCountries) == 0 && len(f.TargetedCountries) == 0 &&
		len(f.MeasureTypes) == 0 && len(f.Industries) == 0 && len(f.Relevance) == 0 &&
		f.Keyword == "" && f.MinRate == nil && f.From == nil && f.To == nil
}

// Apply returns the events matching f. The input is not modified.
func (f Filter) Apply(events []models.TariffEvent) []models.TariffEvent {
	out := make([]models.TariffEvent, 0, len(events))
	for i := range events {
		if f.Match(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}

// Match reports whether ev passes f.
func (f Filter) Match(ev *models.TariffEvent) bool {
	if len(f.ImposingCountries) > 0 &&
		!anyFold(f.ImposingCountries, ev.ImposingCountryCode, ev.ImposingCountryName) {
		return false
	}
	if len(f.TargetedCountries) > 0 {
		values := append(append([]string{}, ev.TargetedCountryCodes...), ev.TargetedCountryNames...)
		if !anyFold(f.TargetedCountries, values...) {
			return false
		}
	}
	if len(f.MeasureTypes) > 0 && !anyFold(f.MeasureTypes, ev.MeasureType) {
		return false
	}
	if len(f.Industries) > 0 && !anyFold(f.Industries, ev.AffectedIndustries...) {
		return false
	}
	if len(f.Relevance) > 0 && !anyFold(f.Relevance, ev.Relevance()) {
		return false
	}
	if f.Keyword != "" &&
		!strings.Contains(strings.ToLower(ev.SummaryText()), strings.ToLower(f.Keyword)) {
		return false
	}
	if f.MinRate != nil && (ev.MainTariffRate == nil || *ev.MainTariffRate < *f.MinRate) {
		return false
	}
	if f.From != nil || f.To != nil {
		d := ev.AnnouncementDate
		if d == nil {
			return false
		}
		if f.From != nil && d.Before(*f.From) {
			return false
		}
		if f.To != nil && d.After(*f.To) {
			return false
		}
	}
	return true
}

func anyFold(wanted []string, values ...string) bool {
	for _, w := range wanted {
		for _, v := range values {
			if v != "" && strings.EqualFold(strings.TrimSpace(w), v) {
				return true
			}
		}
	}
	return false
}

// FilterEvents returns the events matching f.
func FilterEvents(events []models.TariffEvent, f Filter) []models.TariffEvent {
	return f.Apply(events)
}
