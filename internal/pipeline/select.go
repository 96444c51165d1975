package pipeline

import (
	"context"
	"strings"

	"tariff-tracker/internal/analytics"
	"tariff-tracker/internal/duplicates"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/normalize"
)

// Selection is a run plus the events that pass the local filter.
type Selection struct {
	Report *Report
	Events []models.TariffEvent
}

// LocalFilter is the local equivalent of q, used on data the API did not
// filter (sample files) and for relevance, which the API cannot filter.
func LocalFilter(q eventsapi.Query, relevance []string) analytics.Filter {
	f := analytics.Filter{
		ImposingCountries: q.ImposingCountries,
		TargetedCountries: q.TargetedCountries,
		MeasureTypes:      q.MeasureTypes,
		Industries:        q.Industries,
		Relevance:         relevance,
		Keyword:           strings.Join(q.Keywords, " "),
		MinRate:           q.MinTariffRate,
	}
	// The local date bound only knows announcement dates.
	if q.EventRange != nil && q.EventDateField != eventsapi.FilterImplementDay {
		f.From = rangeDate(q.EventRange.Gte)
		f.To = rangeDate(q.EventRange.Lte)
	}
	return f
}

func rangeDate(v any) *models.Date {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	d, ok := normalize.ParseDate(s)
	if !ok {
		return nil
	}
	return &d
}

// Select runs src and narrows the result to q. API sources already applied
// q upstream, so only the filters the API lacks are repeated locally.
func (p *Pipeline) Select(ctx context.Context, src Source, q eventsapi.Query, relevance []string) (*Selection, error) {
	report, err := p.Run(ctx, src)
	if err != nil {
		return nil, err
	}

	f := LocalFilter(q, relevance)
	if src.Name() == SourceAPI {
		// The API's keyword and date matching is not reproducible locally.
		f.Keyword, f.From, f.To = "", nil, nil
	}
	events := report.Events
	if !f.IsZero() {
		events = f.Apply(events)
	}
	return &Selection{Report: report, Events: events}, nil
}

// Groups returns the duplicate groups whose canonical event was selected.
func (s *Selection) Groups() []models.DuplicateGroup {
	keep := make(map[string]bool, len(s.Events))
	for i := range s.Events {
		keep[s.Events[i].EventID] = true
	}
	out := []models.DuplicateGroup{}
	for _, g := range s.Report.Groups {
		if keep[g.CanonicalID] {
			out = append(out, g)
		}
	}
	return out
}

// Unique returns the selected events with non-canonical duplicates removed.
func (s *Selection) Unique() []models.TariffEvent {
	return duplicates.Dedupe(s.Events, s.Report.Groups)
}
