package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestObserveAPICall(t *testing.T) {
	r := New()
	r.ObserveAPICall("events_search", OutcomeOK, 120*time.Millisecond)
	r.ObserveAPICall("events_search", OutcomeOK, 80*time.Millisecond)
	r.ObserveAPICall("events_search", OutcomeAuth, time.Millisecond)

	body := scrape(t, r)
	for _, want := range []string{
		`tariff_api_requests_total{endpoint="events_search",outcome="ok"} 2`,
		`tariff_api_requests_total{endpoint="events_search",outcome="auth"} 1`,
		`tariff_api_request_duration_seconds_count{endpoint="events_search"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestObserveRun(t *testing.T) {
	r := New()
	r.ObserveRun(10, 2, 3, 1)

	body := scrape(t, r)
	for _, want := range []string{
		"tariff_records_skipped_total 2",
		"tariff_date_warnings_total 3",
		"tariff_duplicate_groups 1",
		"tariff_events_loaded 10",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveAPICall("x", OutcomeOK, time.Second)
	r.ObserveRun(1, 1, 1, 1)
}
