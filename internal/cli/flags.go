package cli

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/config"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/normalize"
	"tariff-tracker/internal/pipeline"
)

// queryFlags are the search filters shared by every command that loads
// events.
type queryFlags struct {
	imposing   []string
	targeted   []string
	measures   []string
	industries []string
	relevance  []string
	keywords   []string
	minRate    float64
	since      string
	from       string
	to         string
	dateField  string
	noArticles bool
}

func addQueryFlags(cmd *cobra.Command) *queryFlags {
	qf := &queryFlags{}
	f := cmd.Flags()
	f.StringSliceVar(&qf.imposing, "imposing", nil, "imposing country codes (e.g. US,CN)")
	f.StringSliceVar(&qf.targeted, "targeted", nil, "targeted country codes")
	f.StringSliceVar(&qf.measures, "measure", nil, "measure types (e.g. \"new tariff\")")
	f.StringSliceVar(&qf.industries, "industry", nil, "affected industries")
	f.StringSliceVar(&qf.relevance, "relevance", nil, "relevance grades: High, Medium, Low")
	f.StringSliceVar(&qf.keywords, "keyword", nil, "keywords matched against the summary")
	f.Float64Var(&qf.minRate, "min-rate", 0, "minimum main tariff rate in percent")
	f.StringVar(&qf.since, "since", "", "extraction window, e.g. 72h, 7d, 2w (default from api.lookback)")
	f.StringVar(&qf.from, "from", "", "earliest event date (YYYY-MM-DD)")
	f.StringVar(&qf.to, "to", "", "latest event date (YYYY-MM-DD)")
	f.StringVar(&qf.dateField, "date-field", "event", "field --from/--to apply to: event, announcement, implementation")
	f.BoolVar(&qf.noArticles, "no-articles", false, "do not request source articles")
	return qf
}

func parseDateFlag(name, value string) (*models.Date, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, ok := normalize.ParseDate(value)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q (want YYYY-MM-DD)", name, value)
	}
	return &d, nil
}

// query builds the Events API query described by the flags.
func (qf *queryFlags) query(cmd *cobra.Command, cfg *config.Config) (eventsapi.Query, error) {
	q := eventsapi.Query{
		EventType:         cfg.API.EventType,
		ImposingCountries: qf.imposing,
		TargetedCountries: qf.targeted,
		MeasureTypes:      qf.measures,
		Industries:        qf.industries,
		Keywords:          qf.keywords,
		ExcludeArticles:   qf.noArticles,
	}
	if cmd.Flags().Changed("min-rate") {
		rate := qf.minRate
		if math.IsNaN(rate) || math.IsInf(rate, 0) {
			return q, fmt.Errorf("invalid --min-rate %v (want a finite number)", rate)
		}
		q.MinTariffRate = &rate
	}

	window, err := eventsapi.RelativeWindow(qf.since, cfg.API.Lookback)
	if err != nil {
		return q, err
	}
	q.ExtractionRange = window

	field, err := eventsapi.DateFieldKey(qf.dateField)
	if err != nil {
		return q, err
	}
	from, err := parseDateFlag("from", qf.from)
	if err != nil {
		return q, err
	}
	to, err := parseDateFlag("to", qf.to)
	if err != nil {
		return q, err
	}
	if from != nil || to != nil {
		r := &eventsapi.Range{}
		if from != nil {
			r.Gte = from.String()
		}
		if to != nil {
			r.Lte = to.String()
		}
		q.EventRange = r
		q.EventDateField = field
	}
	return q, nil
}

// run executes q through the pipeline and applies the local filter.
func (a *App) run(ctx context.Context, q eventsapi.Query, relevance []string) (*pipeline.Selection, error) {
	src := pipeline.SourceFor(a.Config, a.Client, eventsapi.BuildRequest(q), a.forceSample)
	return a.Pipeline.Select(ctx, src, q, relevance)
}

// load runs the query described by qf.
func (a *App) load(cmd *cobra.Command, qf *queryFlags) (*pipeline.Selection, error) {
	q, err := qf.query(cmd, a.Config)
	if err != nil {
		return nil, err
	}
	return a.run(cmd.Context(), q, qf.relevance)
}

// announce prints fallback and data quality notices for a run.
func announce(output *Output, r *pipeline.Report) {
	if r.Fallback {
		output.Warning("No Events API key configured; showing sample data")
	}
	output.Notice(r.Notice())
}
