package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/models"
)

const nestedPayload = `{
  "count": 2,
  "events": [
    {
      "id": "evt-1",
      "event_type": "tariffs_v2",
      "global_event_type": "economy",
      "extraction_date": "2025-03-10 12:30:00",
      "tariffs_v2": {
        "imposing_country_code": "us",
        "imposing_country_name": "United States",
        "targeted_country_codes": ["CN", "MX", "CN"],
        "targeted_country_names": ["China"],
        "measure_type": "tariff increase",
        "main_tariff_rate": "25%",
        "previous_tariff_rate": 10,
        "tariff_rates": ["25% on steel"],
        "announcement_date": "2025/3/5",
        "implementation_date": "2025/04",
        "affected_industries": "Steel, Automotive",
        "affected_products": ["steel", "steel", " aluminum "],
        "hs_product_categories": [],
        "relevance_score": "High",
        "summary": "  US raises steel tariffs  "
      },
      "articles": [
        {"id": "a1", "title": "Steel tariffs", "link": "https://example.com/a1", "published_date": "2025-03-05 08:00:00", "name_source": "Wire"}
      ]
    },
    {
      "id": "evt-2",
      "tariffs_v2": {
        "imposing_country_name": "EU",
        "measure_type": "retaliatory",
        "main_tariff_rate": 0,
        "announcement_date": "sometime in spring"
      }
    }
  ]
}`

func TestNormalizeNestedRecords(t *testing.T) {
	res, err := Normalize([]byte(nestedPayload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Events) != 2 || res.Skipped != 0 {
		t.Fatalf("got %d events, %d skipped", len(res.Events), res.Skipped)
	}

	ev := res.Events[0]
	if ev.EventID != "evt-1" || ev.ImposingCountryCode != "US" {
		t.Errorf("id/code = %q/%q", ev.EventID, ev.ImposingCountryCode)
	}
	if got := ev.TargetedCountryCodes; len(got) != 2 || got[0] != "CN" || got[1] != "MX" {
		t.Errorf("targeted codes = %v", got)
	}
	if got := ev.TargetedCountryNames; len(got) != 2 || got[0] != "China" || got[1] != "Mexico" {
		t.Errorf("targeted names = %v", got)
	}
	if ev.MainTariffRate == nil || *ev.MainTariffRate != 25 {
		t.Errorf("main rate = %v", ev.MainTariffRate)
	}
	if ev.PreviousTariffRate == nil || *ev.PreviousTariffRate != 10 {
		t.Errorf("previous rate = %v", ev.PreviousTariffRate)
	}
	if ev.AnnouncementDate == nil || *ev.AnnouncementDate != models.NewDate(2025, time.March, 5) {
		t.Errorf("announcement = %v", ev.AnnouncementDate)
	}
	if ev.ImplementationDate == nil || *ev.ImplementationDate != models.NewDate(2025, time.April, 1) {
		t.Errorf("implementation = %v", ev.ImplementationDate)
	}
	if ev.ExtractionDate == nil || *ev.ExtractionDate != models.NewDate(2025, time.March, 10) {
		t.Errorf("extraction = %v", ev.ExtractionDate)
	}
	if got := ev.AffectedIndustries; len(got) != 2 || got[1] != "Automotive" {
		t.Errorf("industries = %v", got)
	}
	if got := ev.AffectedProducts; len(got) != 2 || got[1] != "aluminum" {
		t.Errorf("products = %v", got)
	}
	if ev.HSProductCategories == nil || len(ev.HSProductCategories) != 0 {
		t.Errorf("hs categories should be empty, got %#v", ev.HSProductCategories)
	}
	if ev.SummaryText() != "US raises steel tariffs" {
		t.Errorf("summary = %q", ev.SummaryText())
	}
	if len(ev.SourceArticles) != 1 || ev.SourceArticles[0].URL != "https://example.com/a1" {
		t.Errorf("articles = %+v", ev.SourceArticles)
	}
	if len(ev.ParseWarnings) != 0 {
		t.Errorf("unexpected warnings: %v", ev.ParseWarnings)
	}
}

func TestNormalizeAbsenceIsDistinctFromZero(t *testing.T) {
	res, err := Normalize([]byte(nestedPayload))
	if err != nil {
		t.Fatal(err)
	}
	ev := res.Events[1]
	if ev.MainTariffRate == nil || *ev.MainTariffRate != 0 {
		t.Errorf("zero rate should be present, got %v", ev.MainTariffRate)
	}
	if ev.PreviousTariffRate != nil || ev.EstimatedTradeValue != nil {
		t.Error("missing numbers should be absent")
	}
	if ev.Summary != nil || ev.LegalBasis != nil {
		t.Error("missing text should be absent")
	}
	if ev.AffectedProducts == nil || ev.TargetedCountryCodes == nil || ev.SourceArticles == nil {
		t.Error("list fields must be empty, not nil")
	}
	if ev.ImposingCountryCode != "EU" || ev.ImposingCountryName != "EU" {
		t.Errorf("imposing = %q/%q", ev.ImposingCountryCode, ev.ImposingCountryName)
	}
}

func TestNormalizeUnparseableDateKeepsEvent(t *testing.T) {
	res, err := Normalize([]byte(nestedPayload))
	if err != nil {
		t.Fatal(err)
	}
	ev := res.Events[1]
	if ev.AnnouncementDate != nil {
		t.Errorf("announcement should be absent, got %v", ev.AnnouncementDate)
	}
	if !ev.HasWarning("announcement_date") {
		t.Errorf("missing parse warning, got %v", ev.ParseWarnings)
	}
	if res.DateWarnings != 1 {
		t.Errorf("DateWarnings = %d, want 1", res.DateWarnings)
	}
	errs := res.DateWarningErrors()
	if len(errs) != 1 || !errors.Is(errs[0], apperrors.ErrDateParse) {
		t.Errorf("DateWarningErrors = %v", errs)
	}
}

func TestNormalizeSkipsRecordsWithoutID(t *testing.T) {
	raw := `[
		{"id": "ok-1", "measure_type": "new tariff"},
		{"measure_type": "no id"},
		{"id": "   "},
		{"id": {"nested": true}},
		"not an object",
		{"event_id": 42},
		{"id": "ok-1", "measure_type": "repeat"}
	]`
	res, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(res.Events))
	}
	if res.Events[1].EventID != "42" {
		t.Errorf("numeric id = %q", res.Events[1].EventID)
	}
	if res.Skipped != 5 || len(res.Malformed) != 5 {
		t.Fatalf("skipped = %d (%d errors), want 5", res.Skipped, len(res.Malformed))
	}
	for _, e := range res.Malformed {
		if !errors.Is(e, apperrors.ErrMalformedRecord) {
			t.Errorf("%v should match ErrMalformedRecord", e)
		}
	}
}

func TestNormalizeNegativeRateAndDateOrder(t *testing.T) {
	raw := `[{
		"event_id": "e1",
		"main_tariff_rate": -5,
		"announcement_date": "2025-05-10",
		"implementation_date": "2025-05-01"
	}]`
	res, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	ev := res.Events[0]
	if ev.MainTariffRate != nil {
		t.Errorf("negative rate kept: %v", *ev.MainTariffRate)
	}
	if !ev.HasWarning("main_tariff_rate") || !ev.HasWarning(DateOrderField) {
		t.Errorf("warnings = %v", ev.ParseWarnings)
	}
	if ev.HasWarning("implementation_date") {
		t.Errorf("parsed implementation date reported as unparsed: %v", ev.ParseWarnings)
	}
	if ev.ImplementationDate == nil {
		t.Error("out-of-order implementation date should be kept")
	}
	if res.DateWarnings != 0 || len(res.DateWarningErrors()) != 0 {
		t.Errorf("DateWarnings = %d, errors = %v, want none", res.DateWarnings, res.DateWarningErrors())
	}
}

func TestNormalizeRejectsNonFiniteNumbers(t *testing.T) {
	for _, word := range []string{"NaN", "Inf", "+Inf", "-Inf", "Infinity", "-infinity"} {
		t.Run(word, func(t *testing.T) {
			raw := `[{
				"event_id": "e1",
				"main_tariff_rate": "` + word + `",
				"previous_tariff_rate": "` + word + `%",
				"estimated_trade_value": "` + word + `"
			}]`
			res, err := Normalize([]byte(raw))
			if err != nil {
				t.Fatal(err)
			}
			ev := res.Events[0]
			if ev.MainTariffRate != nil || ev.PreviousTariffRate != nil || ev.EstimatedTradeValue != nil {
				t.Errorf("non-finite kept: rate %v previous %v value %v",
					ev.MainTariffRate, ev.PreviousTariffRate, ev.EstimatedTradeValue)
			}
			for _, field := range []string{"main_tariff_rate", "previous_tariff_rate", "estimated_trade_value"} {
				if !ev.HasWarning(field) {
					t.Errorf("missing %s warning in %v", field, ev.ParseWarnings)
				}
			}
			if res.DateWarnings != 0 {
				t.Errorf("DateWarnings = %d, want 0", res.DateWarnings)
			}
			if _, err := json.Marshal(res.Events); err != nil {
				t.Errorf("marshal: %v", err)
			}
		})
	}
}

func TestCanonicalizeDropsNonFiniteValues(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	events := []models.TariffEvent{{EventID: "e1", MainTariffRate: &nan, EstimatedTradeValue: &inf}}
	Canonicalize(events)
	if events[0].MainTariffRate != nil || events[0].EstimatedTradeValue != nil {
		t.Fatalf("non-finite kept: %+v", events[0])
	}
	if !events[0].HasWarning("main_tariff_rate") || !events[0].HasWarning("estimated_trade_value") {
		t.Errorf("warnings = %v", events[0].ParseWarnings)
	}
}

func TestNormalizeTopLevelShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		events  int
		wantErr bool
	}{
		{"bare array", `[{"id":"a"}]`, 1, false},
		{"envelope", `{"events":[{"id":"a"},{"id":"b"}],"next_page_token":"x"}`, 2, false},
		{"null events", `{"events":null,"count":0}`, 0, false},
		{"null", `null`, 0, false},
		{"no events key", `{"message":"nope"}`, 0, true},
		{"events not array", `{"events":"x"}`, 0, true},
		{"not json", `<html>`, 0, true},
		{"scalar", `42`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(res.Events) != tt.events {
				t.Errorf("events = %d, want %d", len(res.Events), tt.events)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want models.Date
		ok   bool
	}{
		{"2025-03-05", models.NewDate(2025, time.March, 5), true},
		{"2025/3/5", models.NewDate(2025, time.March, 5), true},
		{"2025/03", models.NewDate(2025, time.March, 1), true},
		{"2025-03", models.NewDate(2025, time.March, 1), true},
		{"2025-03-05 17:45:00", models.NewDate(2025, time.March, 5), true},
		{"2025-03-05T17:45:00Z", models.NewDate(2025, time.March, 5), true},
		{"2025-03-05 noon", models.NewDate(2025, time.March, 5), true},
		{"2025", models.NewDate(2025, time.January, 1), true},
		{"March 5th", models.Date{}, false},
		{"2025-13-01", models.Date{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseDate(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCountryHelpers(t *testing.T) {
	if CountryName("eu") != "European Union" {
		t.Errorf("CountryName(eu) = %q", CountryName("eu"))
	}
	if CountryName("ZZ") != "ZZ" {
		t.Error("unknown code should pass through")
	}
	for _, name := range []string{"USA", "United States", "us", "United States of America"} {
		if code, ok := CountryCode(name); !ok || code != "US" {
			t.Errorf("CountryCode(%q) = %q, %v", name, code, ok)
		}
	}
	if code, ok := CountryCode("UK"); !ok || code != "GB" {
		t.Errorf("CountryCode(UK) = %q, %v", code, ok)
	}
	if _, ok := CountryCode("Atlantis"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestTargetNamesWithoutCodes(t *testing.T) {
	raw := `[{"id":"e1","targeted_country_names":["China","Atlantis","Canada"]}]`
	res, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	ev := res.Events[0]
	if got := ev.TargetedCountryCodes; len(got) != 2 || got[0] != "CN" || got[1] != "CA" {
		t.Errorf("codes = %v", got)
	}
	if len(ev.TargetedCountryNames) != len(ev.TargetedCountryCodes) {
		t.Error("codes and names must stay paired")
	}
	if !ev.HasWarning("targeted_country_names") {
		t.Errorf("expected warning for unresolved name, got %v", ev.ParseWarnings)
	}
}
