package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/analytics"
	"tariff-tracker/internal/duplicates"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/pipeline"
	"tariff-tracker/internal/store"
	"tariff-tracker/pkg/utils"
)

// addAnalyticsCommands adds aggregation and summary commands.
func addAnalyticsCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAggregateCmd(app))
	rootCmd.AddCommand(newTradeValueCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newDashboardCmd(app))
	rootCmd.AddCommand(newIndustriesCmd(app))
}

func dimensionHelp() string {
	names := make([]string, 0, len(analytics.Dimensions()))
	for _, d := range analytics.Dimensions() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

// bucketFlag resolves --bucket against the configured default.
func bucketFlag(value, fallback string) (analytics.Bucket, error) {
	if value == "" {
		value = fallback
	}
	return analytics.ParseBucket(value)
}

// scope returns the events analytics run on: all matching events, or the
// canonical ones only when unique is set.
func scope(l *pipeline.Selection, unique bool) []models.TariffEvent {
	if unique {
		return l.Unique()
	}
	return l.Events
}

func newAggregateCmd(app *App) *cobra.Command {
	var (
		by     string
		bucket string
		top    int
		unique bool
	)
	cmd := &cobra.Command{
		Use:     "aggregate",
		Aliases: []string{"agg"},
		Short:   "Count events along a dimension",
		Long: `Count events by imposing country, targeted country, industry, measure type,
relevance or announcement time.

For dimensions an event can have several values of (targeted country,
industry) COUNT counts every mention and SHARE splits each event evenly over
its values, so shares always add up to the number of events.`,
		Example: `  tariff-tracker aggregate --by imposing_country
  tariff-tracker aggregate --by time --bucket week
  tariff-tracker aggregate --by industry --unique --top 5`,
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().StringVar(&by, "by", string(analytics.ByImposingCountry), "dimension: "+dimensionHelp())
	cmd.Flags().StringVar(&bucket, "bucket", "", "time bucket for --by time: day, week, month, quarter, year")
	cmd.Flags().IntVar(&top, "top", 0, "show only the top N groups")
	cmd.Flags().BoolVar(&unique, "unique", false, "count canonical events only")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		dim, err := analytics.ParseDimension(by)
		if err != nil {
			return err
		}
		b, err := bucketFlag(bucket, app.Config.Analytics.TimeBucket)
		if err != nil {
			return err
		}
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}

		res := analytics.Aggregate(scope(l, unique), dim, analytics.Options{Bucket: b})
		groups := res.Top(top)
		if output.Structured() {
			announce(output, l.Report)
			res.Groups = groups
			return output.Emit(res, groups)
		}

		renderGroups(output, groups, res.Total)
		output.Println()
		output.Dim("%d events across %d groups by %s", res.Total, len(res.Groups), res.Dimension)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func renderGroups(output *Output, groups []analytics.Group, total int) {
	peak := 0
	for _, g := range groups {
		if g.Count > peak {
			peak = g.Count
		}
	}
	table := NewTable(output, "KEY", "LABEL", "COUNT", "SHARE", "")
	table.SetMaxWidth(1, 32)
	for _, g := range groups {
		pct := 0.0
		if total > 0 {
			pct = g.Share / float64(total)
		}
		table.AddRow(g.Key, g.Label, fmt.Sprintf("%d", g.Count), utils.FormatShare(pct),
			output.Cyan(Bar(float64(g.Count), float64(peak), 20)))
	}
	table.Render()
}

// valueRow is the flat CSV form of a trade value group.
type valueRow struct {
	Key      string `csv:"key"`
	Label    string `csv:"label"`
	Sum      string `csv:"sum_usd"`
	Reported int    `csv:"reported"`
	Missing  int    `csv:"missing"`
}

func newTradeValueCmd(app *App) *cobra.Command {
	var (
		by     string
		bucket string
		top    int
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "trade-value",
		Short: "Sum estimated trade value along a dimension",
		Long: `Sum the estimated trade value of events along a dimension. Events reporting
no value are counted separately; an event with several values along the
dimension contributes its full value to each.`,
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().StringVar(&by, "by", string(analytics.ByImposingCountry), "dimension: "+dimensionHelp())
	cmd.Flags().StringVar(&bucket, "bucket", "", "time bucket for --by time")
	cmd.Flags().IntVar(&top, "top", 0, "show only the top N groups")
	cmd.Flags().BoolVar(&unique, "unique", true, "sum canonical events only")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		dim, err := analytics.ParseDimension(by)
		if err != nil {
			return err
		}
		b, err := bucketFlag(bucket, app.Config.Analytics.TimeBucket)
		if err != nil {
			return err
		}
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}

		res := analytics.SumTradeValue(scope(l, unique), dim, analytics.Options{Bucket: b})
		if top > 0 && top < len(res.Groups) {
			res.Groups = res.Groups[:top]
		}
		rows := make([]valueRow, 0, len(res.Groups))
		for _, g := range res.Groups {
			rows = append(rows, valueRow{g.Key, g.Label, g.Sum.StringFixed(2), g.Reported, g.Missing})
		}
		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(res, rows)
		}

		table := NewTable(output, "KEY", "LABEL", "TRADE VALUE", "REPORTED", "MISSING")
		table.SetMaxWidth(1, 32)
		for _, g := range res.Groups {
			table.AddRow(g.Key, g.Label, FormatDecimal(g.Sum), fmt.Sprintf("%d", g.Reported), fmt.Sprintf("%d", g.Missing))
		}
		table.Render()
		output.Println()
		output.Printf("Total: %s\n", output.BoldText(utils.FormatUSD(res.Total.InexactFloat64())))
		if res.MissingValueCount > 0 {
			output.Dim("%d events report no trade value", res.MissingValueCount)
		}
		announce(output, l.Report)
		return nil
	}
	return cmd
}

// statsView is the structured form of the stats command.
type statsView struct {
	Stats     analytics.Stats     `json:"stats" yaml:"stats"`
	Histogram analytics.Histogram `json:"rate_histogram" yaml:"rate_histogram"`
}

func newStatsCmd(app *App) *cobra.Command {
	var (
		bins   int
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Headline statistics and tariff rate distribution",
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().IntVar(&bins, "bins", 0, "histogram bins (default analytics.histogram_bins)")
	cmd.Flags().BoolVar(&unique, "unique", false, "canonical events only")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		if bins > analytics.MaxHistogramBins {
			return fmt.Errorf("invalid --bins %d (at most %d)", bins, analytics.MaxHistogramBins)
		}
		if bins <= 0 {
			bins = app.Config.Analytics.HistogramBins
		}
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		events := scope(l, unique)
		view := statsView{
			Stats:     analytics.Summarize(events),
			Histogram: analytics.RateHistogram(events, bins),
		}
		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(view, view.Histogram.Bins)
		}

		renderStats(output, view.Stats)
		output.Println()
		renderHistogram(output, view.Histogram)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func renderStats(output *Output, st analytics.Stats) {
	maxRate := placeholder
	if st.MaxTariffRate != nil {
		maxRate = utils.FormatRate(*st.MaxTariffRate)
	}
	avgRate := placeholder
	if st.RatedEvents > 0 {
		avgRate = utils.FormatRate(st.AvgTariffRate)
	}
	output.Box("Tariff Events", []string{
		fmt.Sprintf("Events:             %s", utils.FormatCount(int64(st.TotalEvents))),
		fmt.Sprintf("Imposing countries: %d", len(st.ImposingCountries)),
		fmt.Sprintf("Targeted countries: %d", len(st.TargetedCountries)),
		fmt.Sprintf("Average rate:       %s (%d rated)", avgRate, st.RatedEvents),
		fmt.Sprintf("Highest rate:       %s", maxRate),
		fmt.Sprintf("Industries:         %d", len(st.Industries)),
		fmt.Sprintf("Products:           %d", len(st.Products)),
		fmt.Sprintf("Announced:          %s to %s", FormatDate(st.Earliest), FormatDate(st.Latest)),
	})
}

func renderHistogram(output *Output, h analytics.Histogram) {
	output.Bold("Main Tariff Rate Distribution")
	if len(h.Bins) == 0 {
		output.Dim("  No tariff rates reported")
		return
	}
	peak := 0
	for _, b := range h.Bins {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range h.Bins {
		label := fmt.Sprintf("%7.1f%% - %6.1f%%", b.Lower, b.Upper)
		output.Printf("  %s %4d %s\n", label, b.Count, output.Cyan(Bar(float64(b.Count), float64(peak), 30)))
	}
	if h.Missing > 0 {
		output.Dim("  %d events without a main rate", h.Missing)
	}
}

// dashboardView is the structured form of the dashboard command.
type dashboardView struct {
	Summary     fetchSummary            `json:"summary" yaml:"summary"`
	Stats       analytics.Stats         `json:"stats" yaml:"stats"`
	Imposing    []analytics.Group       `json:"top_imposing" yaml:"top_imposing"`
	Targeted    []analytics.Group       `json:"top_targeted" yaml:"top_targeted"`
	Measures    []analytics.Group       `json:"measure_types" yaml:"measure_types"`
	Timeline    []analytics.Group       `json:"timeline" yaml:"timeline"`
	Duplicates  []models.DuplicateGroup `json:"duplicate_groups" yaml:"duplicate_groups"`
	Freshness   *store.Freshness        `json:"freshness,omitempty" yaml:"freshness,omitempty"`
	TimeBucket  analytics.Bucket        `json:"time_bucket" yaml:"time_bucket"`
	TopN        int                     `json:"top_n" yaml:"top_n"`
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
}

func newDashboardCmd(app *App) *cobra.Command {
	var (
		bucket string
		top    int
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Overview of current tariff activity",
		Long: `One screen summary: headline statistics, most active imposing and targeted
countries, measure types, a timeline of announcements, duplicate groups and
how fresh the data is. Counts use canonical events only.`,
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", "", "timeline bucket (default analytics.time_bucket)")
	cmd.Flags().IntVar(&top, "top", 0, "rows per ranking (default analytics.top_n)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		b, err := bucketFlag(bucket, app.Config.Analytics.TimeBucket)
		if err != nil {
			return err
		}
		if top <= 0 {
			top = app.Config.Analytics.TopN
		}
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		view := buildDashboard(l, b, top, app.Store, app.Config.Cache.TTL)

		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(view, nil)
		}
		renderDashboard(output, view)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func buildDashboard(l *pipeline.Selection, b analytics.Bucket, top int, ds store.DataStore, staleAfter time.Duration) dashboardView {
	events := l.Unique()
	opts := analytics.Options{Bucket: b}
	view := dashboardView{
		Summary:     summarize(l),
		Stats:       analytics.Summarize(events),
		Imposing:    analytics.Aggregate(events, analytics.ByImposingCountry, opts).Top(top),
		Targeted:    analytics.Aggregate(events, analytics.ByTargetedCountry, opts).Top(top),
		Measures:    analytics.Aggregate(events, analytics.ByMeasureType, opts).Groups,
		Timeline:    analytics.Aggregate(events, analytics.ByTime, opts).Groups,
		Duplicates:  l.Groups(),
		TimeBucket:  b,
		TopN:        top,
		GeneratedAt: time.Now(),
	}
	if ds != nil && l.Report.Source == pipeline.SourceAPI {
		f := store.CheckFreshness(ds, pipeline.SourceAPI, staleAfter, view.GeneratedAt)
		view.Freshness = &f
	}
	return view
}

func renderDashboard(output *Output, v dashboardView) {
	renderStats(output, v.Stats)
	output.Println()

	output.Bold("Top Imposing Countries")
	renderGroups(output, v.Imposing, v.Stats.TotalEvents)
	output.Println()

	output.Bold("Top Targeted Countries")
	renderGroups(output, v.Targeted, v.Stats.TotalEvents)
	output.Println()

	output.Bold("Measure Types")
	renderGroups(output, v.Measures, v.Stats.TotalEvents)
	output.Println()

	output.Bold("Announcements by %s", v.TimeBucket)
	renderGroups(output, v.Timeline, v.Stats.TotalEvents)
	output.Println()

	if n := len(v.Duplicates); n > 0 {
		hidden := len(duplicates.Flag(v.Duplicates))
		output.Info("%d duplicate groups; %d duplicate reports hidden from counts", n, hidden)
	}

	source := v.Summary.Source
	if v.Summary.Fallback {
		source += " (fallback)"
	}
	line := fmt.Sprintf("Source: %s, %d pages (%d cached)", source, v.Summary.Pages, v.Summary.CachedPages)
	if f := v.Freshness; f != nil {
		age := FormatAge(f.LastSync, v.GeneratedAt)
		if f.IsStale {
			line += ", last sync " + output.Yellow(age)
		} else {
			line += ", last sync " + output.Green(age)
		}
	}
	output.Dim("%s", line)
}

// industriesView is the structured form of the industries command.
type industriesView struct {
	Industries []analytics.IndustryProfile `json:"industries" yaml:"industries"`
	Categories []analytics.Group           `json:"hs_product_categories" yaml:"hs_product_categories"`
}

// industryRow is the flat CSV form of an industry profile.
type industryRow struct {
	Industry      string  `csv:"industry"`
	Events        int     `csv:"events"`
	AvgTariffRate float64 `csv:"avg_tariff_rate"`
	RatedEvents   int     `csv:"rated_events"`
	TopMeasure    string  `csv:"top_measure"`
}

func newIndustriesCmd(app *App) *cobra.Command {
	var (
		industry string
		top      int
		unique   bool
	)
	cmd := &cobra.Command{
		Use:   "industries",
		Short: "Tariff impact by industry and product category",
		Example: `  tariff-tracker industries
  tariff-tracker industries --name Steel`,
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().StringVar(&industry, "name", "", "profile a single industry")
	cmd.Flags().IntVar(&top, "top", 0, "rows per table (default analytics.top_n)")
	cmd.Flags().BoolVar(&unique, "unique", true, "canonical events only")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		if top <= 0 {
			top = app.Config.Analytics.TopN
		}
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		events := scope(l, unique)

		if industry != "" {
			p := analytics.ProfileIndustry(events, industry)
			if output.Structured() {
				announce(output, l.Report)
				return output.Emit(p, p.Products)
			}
			renderIndustry(output, p, top)
			announce(output, l.Report)
			return nil
		}

		view := industriesView{
			Industries: analytics.ProfileIndustries(events),
			Categories: analytics.CountValues(events, analytics.ProductCategories),
		}
		if output.Structured() {
			announce(output, l.Report)
			rows := make([]industryRow, 0, len(view.Industries))
			for _, p := range view.Industries {
				rows = append(rows, industryRow{p.Industry, p.Events, p.AvgTariffRate, p.RatedEvents, p.TopMeasure})
			}
			return output.Emit(view, rows)
		}

		output.Bold("Industry Distribution")
		table := NewTable(output, "INDUSTRY", "EVENTS", "AVG RATE", "TOP MEASURE", "")
		table.SetMaxWidth(0, 32)
		profiles := view.Industries
		if len(profiles) > top {
			profiles = profiles[:top]
		}
		peak := 0
		for _, p := range profiles {
			if p.Events > peak {
				peak = p.Events
			}
		}
		for _, p := range profiles {
			rate := placeholder
			if p.RatedEvents > 0 {
				rate = utils.FormatRate(p.AvgTariffRate)
			}
			table.AddRow(p.Industry, fmt.Sprintf("%d", p.Events), rate, FormatText(p.TopMeasure),
				output.Cyan(Bar(float64(p.Events), float64(peak), 20)))
		}
		table.Render()
		output.Println()

		output.Bold("Product Categories")
		if len(view.Categories) == 0 {
			output.Dim("  No HS product category data")
		} else {
			cats := view.Categories
			if len(cats) > top {
				cats = cats[:top]
			}
			renderGroups(output, cats, len(events))
		}
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func renderIndustry(output *Output, p analytics.IndustryProfile, top int) {
	if p.Events == 0 {
		output.Info("No events affect %s", p.Industry)
		return
	}
	rate := placeholder
	if p.RatedEvents > 0 {
		rate = utils.FormatRate(p.AvgTariffRate)
	}
	output.Box(p.Industry, []string{
		fmt.Sprintf("Events:        %d", p.Events),
		fmt.Sprintf("Average rate:  %s (%d rated)", rate, p.RatedEvents),
		fmt.Sprintf("Top measure:   %s", FormatText(p.TopMeasure)),
	})
	output.Println()

	output.Bold("Affected Products")
	if len(p.Products) == 0 {
		output.Dim("  No product data")
	} else {
		products := p.Products
		if len(products) > top {
			products = products[:top]
		}
		renderGroups(output, products, p.Events)
	}
	output.Println()

	output.Bold("Imposing Countries")
	renderGroups(output, p.Imposing, p.Events)
}
