package duplicates

import (
	"reflect"
	"testing"
	"time"

	"tariff-tracker/internal/models"
)

func day(d int) *models.Date {
	v := models.NewDate(2025, time.March, 1).AddDays(d)
	return &v
}

func steelEvent(id string, announced *models.Date, articles int) models.TariffEvent {
	ev := models.TariffEvent{
		EventID:              id,
		ImposingCountryCode:  "US",
		TargetedCountryCodes: []string{"CN"},
		AffectedProducts:     []string{"steel"},
		AnnouncementDate:     announced,
	}
	for i := 0; i < articles; i++ {
		ev.SourceArticles = append(ev.SourceArticles, models.Article{ID: id + "-a"})
	}
	return ev
}

func TestOneDayApartIsOneGroup(t *testing.T) {
	events := []models.TariffEvent{steelEvent("a", day(0), 1), steelEvent("b", day(1), 1)}
	groups := NewDetector(Config{ToleranceDays: 2}).FindDuplicates(events)

	if len(groups) != 1 || groups[0].Size() != 2 {
		t.Fatalf("groups = %+v, want one group of 2", groups)
	}
	if groups[0].CanonicalID != "a" {
		t.Errorf("canonical = %q, want earliest announcement", groups[0].CanonicalID)
	}
}

func TestFiveDaysApartIsNoGroup(t *testing.T) {
	events := []models.TariffEvent{steelEvent("a", day(0), 1), steelEvent("b", day(5), 1)}
	groups := NewDetector(Config{ToleranceDays: 2}).FindDuplicates(events)
	if len(groups) != 0 {
		t.Fatalf("groups = %+v, want none", groups)
	}
}

func TestMissingAnnouncementNeverGrouped(t *testing.T) {
	events := []models.TariffEvent{
		steelEvent("a", day(0), 1),
		steelEvent("b", day(0), 1),
		steelEvent("c", nil, 5),
	}
	groups := NewDetector(DefaultConfig()).FindDuplicates(events)
	if len(groups) != 1 {
		t.Fatalf("groups = %+v", groups)
	}
	for _, id := range groups[0].EventIDs {
		if id == "c" {
			t.Fatal("event without announcement date was grouped")
		}
	}
}

func TestTransitiveChainCollapses(t *testing.T) {
	// a~b and b~c, but a and c are 4 days apart
	events := []models.TariffEvent{
		steelEvent("c", day(4), 1),
		steelEvent("a", day(0), 1),
		steelEvent("b", day(2), 1),
	}
	groups := NewDetector(Config{ToleranceDays: 2}).FindDuplicates(events)
	if len(groups) != 1 {
		t.Fatalf("groups = %+v", groups)
	}
	if !reflect.DeepEqual(groups[0].EventIDs, []string{"a", "b", "c"}) {
		t.Errorf("ids = %v", groups[0].EventIDs)
	}
}

func TestCanonicalSelection(t *testing.T) {
	tests := []struct {
		name   string
		events []models.TariffEvent
		want   string
	}{
		{
			"most articles wins",
			[]models.TariffEvent{steelEvent("a", day(0), 1), steelEvent("b", day(1), 3)},
			"b",
		},
		{
			"earliest announcement breaks article tie",
			[]models.TariffEvent{steelEvent("a", day(1), 2), steelEvent("b", day(0), 2)},
			"b",
		},
		{
			"lowest id breaks full tie",
			[]models.TariffEvent{steelEvent("z", day(0), 2), steelEvent("m", day(0), 2)},
			"m",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := NewDetector(DefaultConfig()).FindDuplicates(tt.events)
			if len(groups) != 1 || groups[0].CanonicalID != tt.want {
				t.Fatalf("groups = %+v, want canonical %q", groups, tt.want)
			}
		})
	}
}

func TestEachPredicateIsRequired(t *testing.T) {
	d := NewDetector(Config{ToleranceDays: 2})
	base := steelEvent("a", day(0), 1)

	tests := []struct {
		name   string
		mutate func(*models.TariffEvent)
	}{
		{"imposing country", func(e *models.TariffEvent) { e.ImposingCountryCode = "EU" }},
		{"targeted countries", func(e *models.TariffEvent) { e.TargetedCountryCodes = []string{"MX"} }},
		{"products", func(e *models.TariffEvent) { e.AffectedProducts = []string{"soybeans"} }},
		{"date proximity", func(e *models.TariffEvent) { e.AnnouncementDate = day(3) }},
		{"missing date", func(e *models.TariffEvent) { e.AnnouncementDate = nil }},
	}

	other := steelEvent("b", day(1), 1)
	if !d.Match(base, other) {
		t.Fatal("baseline pair should match")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := steelEvent("b", day(1), 1)
			tt.mutate(&b)
			if d.Match(base, b) {
				t.Errorf("pair matched despite differing %s", tt.name)
			}
		})
	}
}

func TestHSCategoriesCountAsProducts(t *testing.T) {
	a := steelEvent("a", day(0), 1)
	a.AffectedProducts = nil
	a.HSProductCategories = []string{"7208"}
	b := steelEvent("b", day(0), 1)
	b.HSProductCategories = []string{"7208"}
	if !NewDetector(DefaultConfig()).Match(a, b) {
		t.Error("shared HS category should satisfy product overlap")
	}
}

func TestFlagAndDedupe(t *testing.T) {
	events := []models.TariffEvent{
		steelEvent("a", day(0), 2),
		steelEvent("b", day(1), 1),
		steelEvent("c", day(30), 1),
	}
	groups := NewDetector(DefaultConfig()).FindDuplicates(events)
	flagged := Flag(groups)
	if !flagged["b"] || flagged["a"] || flagged["c"] {
		t.Errorf("flagged = %v", flagged)
	}

	kept := Dedupe(events, groups)
	if len(kept) != 2 || kept[0].EventID != "a" || kept[1].EventID != "c" {
		t.Errorf("kept = %v", kept)
	}

	if g, ok := GroupOf(groups, "b"); !ok || g.CanonicalID != "a" {
		t.Errorf("GroupOf(b) = %+v, %v", g, ok)
	}
	if _, ok := GroupOf(groups, "c"); ok {
		t.Error("c should not belong to a group")
	}
}
