package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"tariff-tracker/internal/models"
)

// ValueGroup is the trade value attached to one bucket.
type ValueGroup struct {
	Key   string          `json:"key" yaml:"key"`
	Label string          `json:"label" yaml:"label"`
	Sum   decimal.Decimal `json:"sum" yaml:"sum"`
	// Reported counts events with a value; Missing those without one.
	Reported int `json:"reported" yaml:"reported"`
	Missing  int `json:"missing" yaml:"missing"`
}

// ValueResult is the output of SumTradeValue.
type ValueResult struct {
	Dimension Dimension       `json:"dimension" yaml:"dimension"`
	Bucket    Bucket          `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Total     decimal.Decimal `json:"total" yaml:"total"`
	// MissingValueCount is the number of events with no reported trade
	// value; these are excluded from every sum.
	MissingValueCount int          `json:"missing_value_count" yaml:"missing_value_count"`
	Groups            []ValueGroup `json:"groups" yaml:"groups"`
}

// SumTradeValue sums estimated_trade_value along dim. For multi-valued
// dimensions an event's full value is attributed to each of its keys; Total
// counts every event once.
func SumTradeValue(events []models.TariffEvent, dim Dimension, opts Options) ValueResult {
	if opts.Bucket == "" {
		opts.Bucket = Month
	}
	res := ValueResult{Dimension: dim, Total: decimal.Zero}
	if dim == ByTime {
		res.Bucket = opts.Bucket
	}

	index := make(map[string]int)
	for i := range events {
		ev := &events[i]
		var value decimal.Decimal
		reported := ev.EstimatedTradeValue != nil && finite(*ev.EstimatedTradeValue)
		if reported {
			value = decimal.NewFromFloat(*ev.EstimatedTradeValue)
			res.Total = res.Total.Add(value)
		} else {
			res.MissingValueCount++
		}

		for _, k := range keysFor(ev, dim, opts) {
			pos, ok := index[k.key]
			if !ok {
				pos = len(res.Groups)
				index[k.key] = pos
				res.Groups = append(res.Groups, ValueGroup{Key: k.key, Label: k.label, Sum: decimal.Zero})
			}
			g := &res.Groups[pos]
			if reported {
				g.Sum = g.Sum.Add(value)
				g.Reported++
			} else {
				g.Missing++
			}
		}
	}
	if res.Groups == nil {
		res.Groups = []ValueGroup{}
	}

	if dim == ByTime {
		sort.Slice(res.Groups, func(i, j int) bool {
			ui, uj := res.Groups[i].Key == models.UnknownKey, res.Groups[j].Key == models.UnknownKey
			if ui != uj {
				return uj
			}
			return res.Groups[i].Key < res.Groups[j].Key
		})
	} else {
		sort.Slice(res.Groups, func(i, j int) bool {
			if c := res.Groups[i].Sum.Cmp(res.Groups[j].Sum); c != 0 {
				return c > 0
			}
			return res.Groups[i].Key < res.Groups[j].Key
		})
	}
	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
