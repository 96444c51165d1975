package analytics

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tariff-tracker/internal/models"
)

func randomEvents(seed int64, n int) []models.TariffEvent {
	r := rand.New(rand.NewSource(seed))
	pickSome := func(pool []string) []string {
		var out []string
		for _, p := range pool {
			if r.Intn(3) == 0 {
				out = append(out, p)
			}
		}
		return out
	}
	events := make([]models.TariffEvent, n)
	for i := range events {
		ev := models.TariffEvent{
			EventID:              fmt.Sprintf("e%d", i),
			ImposingCountryCode:  []string{"US", "CN", "EU", ""}[r.Intn(4)],
			MeasureType:          []string{"increase", "new tariff", ""}[r.Intn(3)],
			TargetedCountryCodes: pickSome([]string{"CN", "MX", "CA", "JP"}),
			AffectedIndustries:   pickSome([]string{"Steel", "Autos", "Agriculture"}),
		}
		if r.Intn(2) == 0 {
			ev.RelevanceScore = models.String([]string{"High", "Medium", "Low"}[r.Intn(3)])
		}
		if r.Intn(4) > 0 {
			ev.AnnouncementDate = date(2024+r.Intn(2), time.Month(1+r.Intn(12)), 1+r.Intn(28))
		}
		if r.Intn(2) == 0 {
			ev.EstimatedTradeValue = models.Float(float64(r.Intn(1000)) / 10)
		}
		events[i] = ev
	}
	return events
}

// Property 5: Aggregation totals reconcile with the input event count
func TestProperty_AggregationReconciles(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	buckets := []Bucket{Day, Week, Month, Quarter, Year}

	properties.Property("shares sum to n for every dimension, counts too when single-valued", prop.ForAll(
		func(seed int64, n int, b int) bool {
			events := randomEvents(seed, n)
			for _, dim := range Dimensions() {
				res := Aggregate(events, dim, Options{Bucket: buckets[b%len(buckets)]})
				if math.Abs(res.ShareSum()-float64(n)) > 1e-9 {
					t.Logf("%s: share sum %v != %d", dim, res.ShareSum(), n)
					return false
				}
				if !dim.MultiValued() && res.CountSum() != n {
					t.Logf("%s: count sum %d != %d", dim, res.CountSum(), n)
					return false
				}
				if dim.MultiValued() && res.CountSum() < n {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(0, 40),
		gen.IntRange(0, 4),
	))

	properties.Property("trade value: reported plus missing covers every event", prop.ForAll(
		func(seed int64, n int) bool {
			events := randomEvents(seed, n)
			res := SumTradeValue(events, ByMeasureType, Options{})
			reported, missing := 0, 0
			for _, g := range res.Groups {
				reported += g.Reported
				missing += g.Missing
			}
			return reported+missing == n && missing == res.MissingValueCount
		},
		gen.Int64(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
