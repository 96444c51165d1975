package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	sampleCodes    = []string{"US", "cn", "MX", "EU", "ca", "JP", "", "ZZ"}
	sampleNames    = []string{"China", "Canada", "USA", "Atlantis", "", "European Union"}
	sampleDates    = []string{"2025-03-05", "2025/3/7", "2025/04", "2025-02-28 10:00:00", "soon", "", "2024-12-31T08:00:00Z"}
	sampleRates    = []any{25, "10%", -3, "n/a", nil, 0, 7.5, "  "}
	sampleProducts = []string{"steel", "Steel", " aluminum", "", "EVs", "soybeans"}
)

func pick[T any](xs []T, i int) T {
	if i < 0 {
		i = -i
	}
	return xs[i%len(xs)]
}

// rawRecord builds a nested API record from generator indexes.
func rawRecord(id int, c, t1, t2, n1, d1, d2, r, p1, p2 int, flatten bool) map[string]any {
	tariff := map[string]any{
		"imposing_country_code":  pick(sampleCodes, c),
		"targeted_country_codes": []any{pick(sampleCodes, t1), pick(sampleCodes, t2)},
		"targeted_country_names": []any{pick(sampleNames, n1)},
		"announcement_date":      pick(sampleDates, d1),
		"implementation_date":    pick(sampleDates, d2),
		"main_tariff_rate":       pick(sampleRates, r),
		"estimated_trade_value":  pick(sampleRates, r+1),
		"affected_products":      []any{pick(sampleProducts, p1), pick(sampleProducts, p2)},
		"summary":                fmt.Sprintf(" summary %d ", id),
	}
	if t1%3 == 0 {
		delete(tariff, "targeted_country_codes")
	}
	if flatten {
		tariff["affected_industries"] = "Steel, Autos"
	}
	return map[string]any{
		"id":              fmt.Sprintf("evt-%d", id%7),
		"extraction_date": pick(sampleDates, d1+d2),
		"tariffs_v2":      tariff,
		"articles": []any{
			map[string]any{"id": "a", "link": "https://example.com/a", "published_date": pick(sampleDates, d2)},
		},
	}
}

// Property 4: Normalizer idempotence
//
// Normalizing the marshalled output of a normalization pass yields the same
// events again.
func TestProperty_NormalizerIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	idx := gen.IntRange(0, 50)

	properties.Property("normalize(marshal(normalize(x))) == normalize(x)", prop.ForAll(
		func(seeds []int, flatten bool) bool {
			records := make([]any, 0, len(seeds))
			for i, s := range seeds {
				records = append(records, rawRecord(i+s, s, s+1, s*3, s+2, s*5, s+4, s*7, s+1, s*2, flatten))
			}
			raw, err := json.Marshal(records)
			if err != nil {
				t.Logf("marshal input: %v", err)
				return false
			}

			first, err := Normalize(raw)
			if err != nil {
				t.Logf("first pass: %v", err)
				return false
			}
			again, err := json.Marshal(first.Events)
			if err != nil {
				t.Logf("marshal events: %v", err)
				return false
			}
			second, err := Normalize(again)
			if err != nil {
				t.Logf("second pass: %v", err)
				return false
			}

			if second.Skipped != 0 {
				t.Logf("second pass skipped %d records", second.Skipped)
				return false
			}
			if !reflect.DeepEqual(first.Events, second.Events) {
				a, _ := json.Marshal(first.Events)
				b, _ := json.Marshal(second.Events)
				t.Logf("not idempotent:\n%s\n%s", a, b)
				return false
			}
			return first.Warnings == second.Warnings
		},
		gen.SliceOfN(8, idx),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
