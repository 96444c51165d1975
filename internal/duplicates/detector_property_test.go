package duplicates

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tariff-tracker/internal/models"
)

var (
	propCountries = []string{"US", "CN", "EU", "MX"}
	propProducts  = []string{"steel", "aluminum", "autos", "soybeans"}
)

// genEvents builds a small batch over a narrow value space so that matches
// are frequent.
func genEvents(seed int64, n int) []models.TariffEvent {
	r := rand.New(rand.NewSource(seed))
	events := make([]models.TariffEvent, n)
	for i := range events {
		ev := models.TariffEvent{
			EventID:              fmt.Sprintf("e%02d", i),
			ImposingCountryCode:  propCountries[r.Intn(2)],
			TargetedCountryCodes: []string{propCountries[r.Intn(len(propCountries))]},
			AffectedProducts:     []string{propProducts[r.Intn(len(propProducts))]},
		}
		if r.Intn(6) > 0 {
			ev.AnnouncementDate = day(r.Intn(10))
		}
		for k := r.Intn(3); k > 0; k-- {
			ev.SourceArticles = append(ev.SourceArticles, models.Article{ID: "x"})
		}
		events[i] = ev
	}
	return events
}

func newParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Property 1: Direct matches satisfy every predicate
func TestProperty_DirectMatchSatisfiesPredicates(t *testing.T) {
	properties := gopter.NewProperties(newParams())

	properties.Property("match implies same imposer, shared target, shared product, close dates", prop.ForAll(
		func(seed int64, tol int) bool {
			d := NewDetector(Config{ToleranceDays: tol})
			events := genEvents(seed, 12)
			for i := range events {
				for j := range events {
					if i == j || !d.Match(events[i], events[j]) {
						continue
					}
					a, b := events[i], events[j]
					if a.ImposingCountryCode != b.ImposingCountryCode {
						return false
					}
					if !intersects(setOf(a.TargetedCountryCodes, identity), setOf(b.TargetedCountryCodes, identity)) {
						return false
					}
					if !intersects(setOf(a.ProductKeys(), identity), setOf(b.ProductKeys(), identity)) {
						return false
					}
					if a.AnnouncementDate == nil || b.AnnouncementDate == nil ||
						a.AnnouncementDate.DaysBetween(*b.AnnouncementDate) > tol {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

func identity(s string) string { return s }

// Property 2: Grouping is deterministic under input permutation
func TestProperty_GroupingIsOrderIndependent(t *testing.T) {
	properties := gopter.NewProperties(newParams())

	properties.Property("shuffled input yields identical groups and canonical ids", prop.ForAll(
		func(seed int64, shuffleSeed int64) bool {
			d := NewDetector(DefaultConfig())
			events := genEvents(seed, 15)
			want := d.FindDuplicates(events)

			shuffled := append([]models.TariffEvent(nil), events...)
			r := rand.New(rand.NewSource(shuffleSeed))
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			got := d.FindDuplicates(shuffled)
			return reflect.DeepEqual(want, got)
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property 3: Grouping is the transitive closure of direct matches
func TestProperty_GroupingIsTransitive(t *testing.T) {
	properties := gopter.NewProperties(newParams())

	properties.Property("matched pairs share a group and groups are connected", prop.ForAll(
		func(seed int64) bool {
			d := NewDetector(DefaultConfig())
			events := genEvents(seed, 15)
			groups := d.FindDuplicates(events)

			groupOf := make(map[string]int)
			for gi, g := range groups {
				if g.Size() < 2 {
					return false
				}
				for _, id := range g.EventIDs {
					if _, dup := groupOf[id]; dup {
						return false
					}
					groupOf[id] = gi
				}
			}

			byID := make(map[string]models.TariffEvent, len(events))
			for _, ev := range events {
				byID[ev.EventID] = ev
			}

			// every direct match lands in the same group
			for i := range events {
				for j := i + 1; j < len(events); j++ {
					if !d.Match(events[i], events[j]) {
						continue
					}
					gi, ok1 := groupOf[events[i].EventID]
					gj, ok2 := groupOf[events[j].EventID]
					if !ok1 || !ok2 || gi != gj {
						return false
					}
				}
			}

			// every group is connected by direct matches
			for _, g := range groups {
				reached := map[string]bool{g.EventIDs[0]: true}
				queue := []string{g.EventIDs[0]}
				for len(queue) > 0 {
					cur := queue[0]
					queue = queue[1:]
					for _, other := range g.EventIDs {
						if !reached[other] && d.Match(byID[cur], byID[other]) {
							reached[other] = true
							queue = append(queue, other)
						}
					}
				}
				if len(reached) != g.Size() {
					return false
				}
				// events without announcement dates never appear
				for _, id := range g.EventIDs {
					if byID[id].AnnouncementDate == nil {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
