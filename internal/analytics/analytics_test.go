package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tariff-tracker/internal/models"
)

func date(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func TestMeasureTypeUnknownBucket(t *testing.T) {
	events := make([]models.TariffEvent, 10)
	types := []string{"new tariff", "new tariff", "increase", "increase", "increase", "retaliatory", "new tariff", "increase", "", ""}
	for i := range events {
		events[i] = models.TariffEvent{EventID: string(rune('a' + i)), MeasureType: types[i]}
	}

	res := Aggregate(events, ByMeasureType, Options{})
	unknown, ok := res.Get(models.UnknownKey)
	if !ok || unknown.Count != 2 {
		t.Fatalf("unknown bucket = %+v, %v; want count 2", unknown, ok)
	}
	if res.CountSum() != 10 || res.Total != 10 {
		t.Errorf("count sum = %d, total = %d; want 10", res.CountSum(), res.Total)
	}
	if res.Groups[0].Key != "increase" || res.Groups[0].Count != 4 {
		t.Errorf("first group = %+v, want increase=4", res.Groups[0])
	}
}

func TestMultiValuedShares(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", TargetedCountryCodes: []string{"CN", "MX"}, TargetedCountryNames: []string{"China", "Mexico"}},
		{EventID: "b", TargetedCountryCodes: []string{"CN"}, TargetedCountryNames: []string{"China"}},
		{EventID: "c"},
	}
	res := Aggregate(events, ByTargetedCountry, Options{})

	cn, _ := res.Get("CN")
	if cn.Count != 2 || cn.Share != 1.5 || cn.Label != "China" {
		t.Errorf("CN = %+v", cn)
	}
	if u, ok := res.Get(models.UnknownKey); !ok || u.Count != 1 {
		t.Errorf("unknown = %+v, %v", u, ok)
	}
	if res.ShareSum() != 3 {
		t.Errorf("share sum = %v, want 3", res.ShareSum())
	}
	if res.CountSum() != 4 {
		t.Errorf("count sum = %d, want 4 mentions", res.CountSum())
	}
}

func TestTimeBuckets(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", AnnouncementDate: date(2025, time.March, 5)}, // Wednesday
		{EventID: "b", AnnouncementDate: date(2025, time.March, 3)}, // Monday
		{EventID: "c", AnnouncementDate: date(2025, time.January, 20)},
		{EventID: "d"},
		{EventID: "e", AnnouncementDate: date(2024, time.December, 31)},
	}

	tests := []struct {
		bucket Bucket
		keys   []string
	}{
		{Day, []string{"2024-12-31", "2025-01-20", "2025-03-03", "2025-03-05", "unknown"}},
		{Week, []string{"2024-12-30", "2025-01-20", "2025-03-03", "unknown"}},
		{Month, []string{"2024-12", "2025-01", "2025-03", "unknown"}},
		{Quarter, []string{"2024-Q4", "2025-Q1", "unknown"}},
		{Year, []string{"2024", "2025", "unknown"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			res := Aggregate(events, ByTime, Options{Bucket: tt.bucket})
			if len(res.Groups) != len(tt.keys) {
				t.Fatalf("groups = %+v", res.Groups)
			}
			for i, k := range tt.keys {
				if res.Groups[i].Key != k {
					t.Errorf("group %d = %q, want %q", i, res.Groups[i].Key, k)
				}
			}
			if res.CountSum() != len(events) {
				t.Errorf("count sum = %d", res.CountSum())
			}
		})
	}
}

func TestWeekLabel(t *testing.T) {
	if got := Week.Label(*date(2025, time.March, 5)); got != "2025-W10" {
		t.Errorf("week label = %q", got)
	}
	if got := Month.Label(*date(2025, time.March, 5)); got != "Mar 2025" {
		t.Errorf("month label = %q", got)
	}
}

func TestSumTradeValue(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", ImposingCountryCode: "US", EstimatedTradeValue: models.Float(0.1)},
		{EventID: "b", ImposingCountryCode: "US", EstimatedTradeValue: models.Float(0.2)},
		{EventID: "c", ImposingCountryCode: "US"},
		{EventID: "d", ImposingCountryCode: "CN", EstimatedTradeValue: models.Float(0)},
	}
	res := SumTradeValue(events, ByImposingCountry, Options{})

	if !res.Total.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("total = %s, want exactly 0.3", res.Total)
	}
	if res.MissingValueCount != 1 {
		t.Errorf("missing = %d", res.MissingValueCount)
	}
	us := res.Groups[0]
	if us.Key != "US" || us.Reported != 2 || us.Missing != 1 {
		t.Errorf("US group = %+v", us)
	}
	cn := res.Groups[1]
	if cn.Key != "CN" || !cn.Sum.IsZero() || cn.Reported != 1 || cn.Missing != 0 {
		t.Errorf("CN group = %+v; a reported zero is not missing", cn)
	}
}

func TestSumTradeValueSkipsNonFinite(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", ImposingCountryCode: "US", EstimatedTradeValue: models.Float(5)},
		{EventID: "b", ImposingCountryCode: "US", EstimatedTradeValue: models.Float(math.Inf(1))},
		{EventID: "c", ImposingCountryCode: "CN", EstimatedTradeValue: models.Float(math.NaN())},
	}
	res := SumTradeValue(events, ByImposingCountry, Options{})
	if !res.Total.Equal(decimal.NewFromInt(5)) || res.MissingValueCount != 2 {
		t.Errorf("total = %s missing = %d, want 5 and 2", res.Total, res.MissingValueCount)
	}
	for _, g := range res.Groups {
		if g.Key == "CN" && (g.Reported != 0 || g.Missing != 1) {
			t.Errorf("CN group = %+v", g)
		}
	}
}

func TestSummarize(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", ImposingCountryName: "United States", TargetedCountryNames: []string{"China"},
			MeasureType: "increase", MainTariffRate: models.Float(25), AffectedIndustries: []string{"Steel"},
			AffectedProducts: []string{"steel"}, AnnouncementDate: date(2025, time.March, 1)},
		{EventID: "b", ImposingCountryName: "China", TargetedCountryNames: []string{"United States"},
			MainTariffRate: models.Float(10), AffectedIndustries: []string{"Steel", "Agriculture"},
			AffectedProducts: []string{"soybeans"}, AnnouncementDate: date(2025, time.March, 9)},
		{EventID: "c", MainTariffRate: models.Float(10.333)},
	}
	st := Summarize(events)

	if st.TotalEvents != 3 || st.RatedEvents != 3 {
		t.Errorf("total/rated = %d/%d", st.TotalEvents, st.RatedEvents)
	}
	if st.AvgTariffRate != 15.11 {
		t.Errorf("avg rate = %v, want 15.11", st.AvgTariffRate)
	}
	if st.MeasureTypes[models.UnknownKey] != 2 || st.MeasureTypes["increase"] != 1 {
		t.Errorf("measure types = %v", st.MeasureTypes)
	}
	if st.Industries["Steel"] != 2 {
		t.Errorf("industries = %v", st.Industries)
	}
	if len(st.ImposingCountries) != 2 || st.ImposingCountries[0] != "China" {
		t.Errorf("imposing = %v", st.ImposingCountries)
	}
	if *st.MaxTariffRate != 25 || st.Earliest.Day != 1 || st.Latest.Day != 9 {
		t.Errorf("max/earliest/latest = %v/%v/%v", *st.MaxTariffRate, st.Earliest, st.Latest)
	}

	empty := Summarize(nil)
	if empty.TotalEvents != 0 || empty.AvgTariffRate != 0 || empty.ImposingCountries == nil {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestRateHistogram(t *testing.T) {
	events := []models.TariffEvent{
		{MainTariffRate: models.Float(0)},
		{MainTariffRate: models.Float(50)},
		{MainTariffRate: models.Float(100)},
		{MainTariffRate: models.Float(100)},
		{},
	}
	h := RateHistogram(events, 4)
	if len(h.Bins) != 4 || h.Missing != 1 {
		t.Fatalf("bins=%d missing=%d", len(h.Bins), h.Missing)
	}
	want := []int{1, 0, 1, 2}
	for i, w := range want {
		if h.Bins[i].Count != w {
			t.Errorf("bin %d [%v,%v) = %d, want %d", i, h.Bins[i].Lower, h.Bins[i].Upper, h.Bins[i].Count, w)
		}
	}

	single := RateHistogram([]models.TariffEvent{{MainTariffRate: models.Float(7)}}, 0)
	if len(single.Bins) != 20 || single.Bins[0].Count != 1 {
		t.Errorf("single-rate histogram = %+v", single.Bins[:1])
	}
}

func TestRateHistogramBounds(t *testing.T) {
	events := []models.TariffEvent{
		{MainTariffRate: models.Float(10)},
		{MainTariffRate: models.Float(math.Inf(1))},
		{MainTariffRate: models.Float(math.NaN())},
		{MainTariffRate: models.Float(30)},
	}
	h := RateHistogram(events, 2)
	if h.Missing != 2 || h.Bins[0].Count != 1 || h.Bins[1].Count != 1 {
		t.Errorf("histogram = %+v", h)
	}
	if h.Bins[1].Upper != 30 {
		t.Errorf("upper edge = %v, want 30", h.Bins[1].Upper)
	}

	capped := RateHistogram(events, 2000000000)
	if len(capped.Bins) != MaxHistogramBins {
		t.Errorf("bins = %d, want %d", len(capped.Bins), MaxHistogramBins)
	}

	st := Summarize(events)
	if st.RatedEvents != 2 || st.AvgTariffRate != 20 || *st.MaxTariffRate != 30 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFilter(t *testing.T) {
	events := []models.TariffEvent{
		{EventID: "a", ImposingCountryCode: "US", ImposingCountryName: "United States", MeasureType: "increase",
			MainTariffRate: models.Float(25), Summary: models.String("Steel tariffs raised"), AnnouncementDate: date(2025, time.March, 1),
			TargetedCountryCodes: []string{"CN"}, TargetedCountryNames: []string{"China"}},
		{EventID: "b", ImposingCountryCode: "CN", MeasureType: "retaliatory", MainTariffRate: models.Float(10),
			AnnouncementDate: date(2025, time.April, 1)},
		{EventID: "c", ImposingCountryCode: "EU"},
	}

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"zero", Filter{}, []string{"a", "b", "c"}},
		{"imposing by name", Filter{ImposingCountries: []string{"united states"}}, []string{"a"}},
		{"targeted", Filter{TargetedCountries: []string{"china"}}, []string{"a"}},
		{"measure", Filter{MeasureTypes: []string{"Retaliatory"}}, []string{"b"}},
		{"keyword", Filter{Keyword: "STEEL"}, []string{"a"}},
		{"min rate drops absent", Filter{MinRate: models.Float(10)}, []string{"a", "b"}},
		{"date range", Filter{From: date(2025, time.March, 15)}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEvents(events, tt.f)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].EventID != id {
					t.Errorf("event %d = %q, want %q", i, got[i].EventID, id)
				}
			}
		})
	}
	if !(Filter{}).IsZero() {
		t.Error("empty filter should be zero")
	}
}

func TestParseDimensionAndBucket(t *testing.T) {
	if d, err := ParseDimension("Measure"); err != nil || d != ByMeasureType {
		t.Errorf("ParseDimension(Measure) = %v, %v", d, err)
	}
	if _, err := ParseDimension("colour"); err == nil {
		t.Error("expected error for unknown dimension")
	}
	if b, err := ParseBucket(""); err != nil || b != Month {
		t.Errorf("ParseBucket(\"\") = %v, %v", b, err)
	}
	if _, err := ParseBucket("fortnight"); err == nil {
		t.Error("expected error for unknown bucket")
	}
}
