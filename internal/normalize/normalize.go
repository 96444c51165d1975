// Package normalize turns Events API payloads into flat TariffEvents.
//
// Both the API's nested record shape (tariff fields under "tariffs_v2") and
// the flat shape produced by marshalling a TariffEvent are accepted, so
// normalizing already-normalized output is a no-op.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/models"
)

// Result is the outcome of one normalization pass.
type Result struct {
	Events []models.TariffEvent
	// Skipped counts records dropped for lacking a usable event id.
	Skipped   int
	Malformed []error
	// Warnings counts all parse warnings carried by Events; DateWarnings
	// only those on date fields.
	Warnings     int
	DateWarnings int
}

// dateFields are the event fields holding calendar dates.
var dateFields = map[string]bool{
	"extraction_date":     true,
	"announcement_date":   true,
	"implementation_date": true,
	"expiration_date":     true,
}

// IsDateField reports whether a warning on field is a date parse warning.
func IsDateField(field string) bool {
	return dateFields[field]
}

// Normalize decodes raw and converts every record into a TariffEvent.
// It fails only when raw is not a JSON array or events envelope; bad
// records are skipped and reported in the Result.
func Normalize(raw []byte) (Result, error) {
	records, err := DecodeRecords(raw)
	if err != nil {
		return Result{}, err
	}
	return NormalizeRecords(records), nil
}

// NormalizeRecords converts already-decoded records.
func NormalizeRecords(records []any) Result {
	res := Result{Events: make([]models.TariffEvent, 0, len(records))}
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			res.skip(apperrors.NewMalformedRecordError(i, "record is not an object"))
			continue
		}
		id, ok := eventID(obj)
		if !ok {
			res.skip(apperrors.NewMalformedRecordError(i, "missing usable event id"))
			continue
		}
		if seen[id] {
			res.skip(apperrors.NewMalformedRecordError(i, fmt.Sprintf("duplicate event id %q", id)))
			continue
		}
		seen[id] = true
		res.Events = append(res.Events, convert(id, obj))
	}

	Canonicalize(res.Events)

	for _, ev := range res.Events {
		for _, w := range ev.ParseWarnings {
			res.Warnings++
			if IsDateField(w.Field) {
				res.DateWarnings++
			}
		}
	}
	return res
}

func (r *Result) skip(err error) {
	r.Skipped++
	r.Malformed = append(r.Malformed, err)
}

// DateWarningErrors returns one DateParseWarning per unparsed date field.
func (r Result) DateWarningErrors() []error {
	var out []error
	for _, ev := range r.Events {
		for _, w := range ev.ParseWarnings {
			if IsDateField(w.Field) {
				out = append(out, &apperrors.DateParseWarning{EventID: ev.EventID, Field: w.Field, Value: w.Value})
			}
		}
	}
	return out
}

// DecodeRecords extracts the record list from a JSON array or an
// {"events": [...]} envelope.
func DecodeRecords(raw []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("decoding events payload: %w", err)
	}

	switch v := top.(type) {
	case []any:
		return v, nil
	case map[string]any:
		events, ok := v["events"]
		if !ok {
			return nil, fmt.Errorf("decoding events payload: object has no events array")
		}
		if events == nil {
			return nil, nil
		}
		list, ok := events.([]any)
		if !ok {
			return nil, fmt.Errorf("decoding events payload: events is %T, not an array", events)
		}
		return list, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("decoding events payload: unexpected %T at top level", top)
	}
}

func eventID(obj map[string]any) (string, bool) {
	for _, key := range []string{"event_id", "id"} {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

// convert builds an event from one record. Tariff fields are read from the
// nested "tariffs_v2" object when present, else from the record itself.
func convert(id string, obj map[string]any) models.TariffEvent {
	t := obj
	if nested, ok := obj[models.EventTypeTariffs].(map[string]any); ok {
		t = nested
	}

	f := fieldReader{}
	ev := models.TariffEvent{
		EventID:         id,
		EventType:       f.str(obj, "event_type"),
		GlobalEventType: f.str(obj, "global_event_type"),

		ImposingCountryCode:  f.str(t, "imposing_country_code"),
		ImposingCountryName:  f.str(t, "imposing_country_name"),
		TargetedCountryCodes: f.strs(t, "targeted_country_codes"),
		TargetedCountryNames: f.strs(t, "targeted_country_names"),

		MeasureType: f.str(t, "measure_type"),
		TariffRates: f.strs(t, "tariff_rates"),

		AffectedIndustries:  f.strs(t, "affected_industries"),
		AffectedProducts:    f.strs(t, "affected_products"),
		HSProductCategories: f.strs(t, "hs_product_categories"),

		LegalBasis:      models.String(f.str(t, "legal_basis")),
		PolicyObjective: models.String(f.str(t, "policy_objective")),
		Exemptions:      models.String(f.str(t, "exemptions")),
		Summary:         models.String(f.str(t, "summary")),
	}

	ev.RelevanceScore = models.String(f.str(t, "relevance_score"))
	if ev.RelevanceScore == nil {
		ev.RelevanceScore = models.String(f.str(obj, "relevance_score"))
	}

	ev.ExtractionDate = f.date(obj, "extraction_date")
	ev.AnnouncementDate = f.date(t, "announcement_date")
	ev.ImplementationDate = f.date(t, "implementation_date")
	ev.ExpirationDate = f.date(t, "expiration_date")

	ev.MainTariffRate = f.rate(t, "main_tariff_rate")
	ev.PreviousTariffRate = f.rate(t, "previous_tariff_rate")
	ev.EstimatedTradeValue = f.number(t, "estimated_trade_value")

	ev.SourceArticles = articles(obj)
	ev.ParseWarnings = append(existingWarnings(obj), f.warnings...)
	return ev
}

// fieldReader extracts loosely typed fields and collects parse warnings.
type fieldReader struct {
	warnings []models.ParseWarning
}

func (f *fieldReader) warn(field string, v any) {
	f.warnings = append(f.warnings, models.ParseWarning{Field: field, Value: fmt.Sprint(v)})
}

func (f *fieldReader) str(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
}

// strs reads a list field. A scalar string is split on commas, matching how
// some upstream records flatten lists.
func (f *fieldReader) strs(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case nil:
		return []string{}
	case string:
		return splitList(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if m, ok := item.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					out = append(out, name)
				}
				continue
			}
			if s, err := cast.ToStringE(item); err == nil {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, err := cast.ToStringE(v); err == nil {
			return []string{s}
		}
		return []string{}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *fieldReader) number(obj map[string]any, key string) *float64 {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return nil
		}
		v = s
	}
	n, err := cast.ToFloat64E(v)
	if err != nil || !finite(n) {
		f.warn(key, v)
		return nil
	}
	return &n
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// rate is number with the non-negative invariant; a negative rate is dropped.
func (f *fieldReader) rate(obj map[string]any, key string) *float64 {
	n := f.number(obj, key)
	if n != nil && *n < 0 {
		f.warn(key, formatFloat(*n))
		return nil
	}
	return n
}

func (f *fieldReader) date(obj map[string]any, key string) *models.Date {
	s := f.str(obj, key)
	if s == "" {
		return nil
	}
	d, ok := ParseDate(s)
	if !ok {
		f.warn(key, s)
		return nil
	}
	return &d
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/1/2",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/1",
	"2006-01",
	"2006",
}

// ParseDate parses the date formats seen in API output. Month-only values
// resolve to the first of the month and year-only values to January 1.
func ParseDate(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), true
		}
	}
	// "YYYY-MM-DD anything": keep the date part
	if i := strings.IndexAny(s, " T"); i == len(models.DateLayout) {
		if t, err := time.Parse(models.DateLayout, s[:i]); err == nil {
			return models.DateOf(t), true
		}
	}
	return models.Date{}, false
}

func articles(obj map[string]any) []models.Article {
	raw, ok := obj["source_articles"].([]any)
	if !ok {
		raw, _ = obj["articles"].([]any)
	}
	out := make([]models.Article, 0, len(raw))
	f := fieldReader{}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := models.Article{
			ID:         f.str(m, "id"),
			Title:      f.str(m, "title"),
			URL:        f.str(m, "url"),
			Media:      f.str(m, "media"),
			SourceName: f.str(m, "name_source"),
			Language:   f.str(m, "language"),
		}
		if a.URL == "" {
			a.URL = f.str(m, "link")
		}
		if d, ok := ParseDate(f.str(m, "published_date")); ok {
			a.PublishedDate = &d
		}
		if a.ID == "" && a.URL == "" && a.Title == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// existingWarnings carries parse warnings from flat input forward so a
// second pass keeps what the first pass found.
func existingWarnings(obj map[string]any) []models.ParseWarning {
	raw, ok := obj["parse_warnings"].([]any)
	if !ok {
		return nil
	}
	out := make([]models.ParseWarning, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := m["field"].(string)
		value, _ := m["value"].(string)
		if field != "" {
			out = append(out, models.ParseWarning{Field: field, Value: value})
		}
	}
	return out
}
