package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/duplicates"
	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/pipeline"
)

// addEventCommands adds commands that load and list events.
func addEventCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newEventsCmd(app))
	rootCmd.AddCommand(newShowCmd(app))
	rootCmd.AddCommand(newDuplicatesCmd(app))
}

// fetchSummary is the structured form of a fetch.
type fetchSummary struct {
	Source          string        `json:"source" yaml:"source"`
	FetchedAt       time.Time     `json:"fetched_at" yaml:"fetched_at"`
	Duration        time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Pages           int           `json:"pages" yaml:"pages"`
	CachedPages     int           `json:"cached_pages" yaml:"cached_pages"`
	Events          int           `json:"events" yaml:"events"`
	Matching        int           `json:"matching" yaml:"matching"`
	Skipped         int           `json:"skipped_records" yaml:"skipped_records"`
	DateWarnings    int           `json:"date_warnings" yaml:"date_warnings"`
	DuplicateGroups int           `json:"duplicate_groups" yaml:"duplicate_groups"`
	Fallback        bool          `json:"fallback" yaml:"fallback"`
	Notice          string        `json:"notice,omitempty" yaml:"notice,omitempty"`
}

func summarize(l *pipeline.Selection) fetchSummary {
	r := l.Report
	return fetchSummary{
		Source:          r.Source,
		FetchedAt:       r.FetchedAt,
		Duration:        r.Duration,
		Pages:           r.Pages,
		CachedPages:     r.Cached,
		Events:          len(r.Events),
		Matching:        len(l.Events),
		Skipped:         r.Skipped,
		DateWarnings:    r.DateWarnings,
		DuplicateGroups: len(r.Groups),
		Fallback:        r.Fallback,
		Notice:          r.Notice(),
	}
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch events and report what was loaded",
		Long: `Fetch tariff events from the Events API (or sample data), normalize them
and detect duplicates. Responses are cached locally for cache.ttl.`,
		Example: `  tariff-tracker fetch
  tariff-tracker fetch --imposing US --since 7d
  tariff-tracker fetch --sample=events.json --json`,
	}
	qf := addQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		s := summarize(l)
		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(s, []fetchSummary{s})
		}

		output.Box("Fetch", []string{
			fmt.Sprintf("Source:           %s", s.Source),
			fmt.Sprintf("Pages:            %d (%d cached)", s.Pages, s.CachedPages),
			fmt.Sprintf("Events:           %d (%d matching)", s.Events, s.Matching),
			fmt.Sprintf("Skipped records:  %d", s.Skipped),
			fmt.Sprintf("Unparsed dates:   %d", s.DateWarnings),
			fmt.Sprintf("Duplicate groups: %d", s.DuplicateGroups),
			fmt.Sprintf("Duration:         %s", FormatDuration(s.Duration)),
		})
		announce(output, l.Report)
		return nil
	}
	return cmd
}

// eventRow is the flat CSV form of an event.
type eventRow struct {
	ID               string `csv:"event_id"`
	Announced        string `csv:"announcement_date"`
	Implemented      string `csv:"implementation_date"`
	Imposing         string `csv:"imposing_country_code"`
	ImposingName     string `csv:"imposing_country_name"`
	Targeted         string `csv:"targeted_country_codes"`
	MeasureType      string `csv:"measure_type"`
	MainRate         string `csv:"main_tariff_rate"`
	Industries       string `csv:"affected_industries"`
	Products         string `csv:"affected_products"`
	TradeValue       string `csv:"estimated_trade_value"`
	Relevance        string `csv:"relevance_score"`
	DuplicateOf      string `csv:"duplicate_of"`
	Summary          string `csv:"summary"`
	SourceArticles   int    `csv:"source_articles"`
	ParseWarningList string `csv:"parse_warnings"`
}

func optionalString(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

func toEventRows(events []models.TariffEvent, canonicalOf map[string]string) []eventRow {
	rows := make([]eventRow, 0, len(events))
	for i := range events {
		ev := &events[i]
		var warnings []string
		for _, w := range ev.ParseWarnings {
			warnings = append(warnings, w.Field)
		}
		rows = append(rows, eventRow{
			ID:               ev.EventID,
			Announced:        optionalString(ev.AnnouncementDate),
			Implemented:      optionalString(ev.ImplementationDate),
			Imposing:         ev.ImposingCountryCode,
			ImposingName:     ev.ImposingCountryName,
			Targeted:         strings.Join(ev.TargetedCountryCodes, ";"),
			MeasureType:      ev.MeasureType,
			MainRate:         optionalFloat(ev.MainTariffRate),
			Industries:       strings.Join(ev.AffectedIndustries, ";"),
			Products:         strings.Join(ev.AffectedProducts, ";"),
			TradeValue:       optionalFloat(ev.EstimatedTradeValue),
			Relevance:        ev.Relevance(),
			DuplicateOf:      canonicalOf[ev.EventID],
			Summary:          ev.SummaryText(),
			SourceArticles:   len(ev.SourceArticles),
			ParseWarningList: strings.Join(warnings, ";"),
		})
	}
	return rows
}

// canonicalIndex maps every non-canonical duplicate to its group's
// canonical id.
func canonicalIndex(groups []models.DuplicateGroup) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.Duplicates() {
			out[id] = g.CanonicalID
		}
	}
	return out
}

// sortEvents orders events in place by key, newest or highest first.
// Events lacking the key sort last; ties fall back to id.
func sortEvents(events []models.TariffEvent, key string) error {
	var less func(a, b *models.TariffEvent) (bool, bool)
	switch key {
	case "date", "":
		less = func(a, b *models.TariffEvent) (bool, bool) {
			if a.AnnouncementDate == nil || b.AnnouncementDate == nil {
				return a.AnnouncementDate != nil, a.AnnouncementDate == nil && b.AnnouncementDate == nil
			}
			if *a.AnnouncementDate == *b.AnnouncementDate {
				return false, true
			}
			return a.AnnouncementDate.After(*b.AnnouncementDate), false
		}
	case "rate":
		less = floatOrder(func(ev *models.TariffEvent) *float64 { return ev.MainTariffRate })
	case "value":
		less = floatOrder(func(ev *models.TariffEvent) *float64 { return ev.EstimatedTradeValue })
	case "id":
		less = func(a, b *models.TariffEvent) (bool, bool) { return false, true }
	default:
		return fmt.Errorf("invalid --sort %q (want date, rate, value or id)", key)
	}
	sort.SliceStable(events, func(i, j int) bool {
		before, tie := less(&events[i], &events[j])
		if tie {
			return events[i].EventID < events[j].EventID
		}
		return before
	})
	return nil
}

func floatOrder(get func(*models.TariffEvent) *float64) func(a, b *models.TariffEvent) (bool, bool) {
	return func(a, b *models.TariffEvent) (bool, bool) {
		va, vb := get(a), get(b)
		if va == nil || vb == nil {
			return va != nil, va == nil && vb == nil
		}
		if *va == *vb {
			return false, true
		}
		return *va > *vb, false
	}
}

func newEventsCmd(app *App) *cobra.Command {
	var (
		limit  int
		unique bool
		sortBy string
	)
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"ls"},
		Short:   "List tariff events",
		Example: `  tariff-tracker events --imposing US --industry Steel
  tariff-tracker events --unique --sort rate --limit 20
  tariff-tracker events --format csv > events.csv`,
	}
	qf := addQueryFlags(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum events shown (0 for all)")
	cmd.Flags().BoolVar(&unique, "unique", false, "hide non-canonical duplicates")
	cmd.Flags().StringVar(&sortBy, "sort", "date", "sort by date, rate, value or id")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}

		events := l.Events
		if unique {
			events = l.Unique()
		}
		events = append([]models.TariffEvent(nil), events...)
		if err := sortEvents(events, sortBy); err != nil {
			return err
		}
		total := len(events)
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}
		canonicalOf := canonicalIndex(l.Report.Groups)

		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(map[string]interface{}{
				"summary": summarize(l),
				"total":   total,
				"events":  events,
			}, toEventRows(events, canonicalOf))
		}

		renderEvents(output, events, canonicalOf)
		output.Println()
		output.Dim("Showing %d of %d events from %s", len(events), total, l.Report.Source)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func renderEvents(output *Output, events []models.TariffEvent, canonicalOf map[string]string) {
	table := NewTable(output, "ID", "ANNOUNCED", "IMPOSING", "TARGETED", "MEASURE", "RATE", "INDUSTRIES", "DUP")
	table.SetMaxWidth(0, 24).SetMaxWidth(3, 20).SetMaxWidth(4, 18).SetMaxWidth(6, 28)
	for i := range events {
		ev := &events[i]
		dup := ""
		if c, ok := canonicalOf[ev.EventID]; ok {
			dup = output.Yellow("↳ " + ShortID(c))
		}
		table.AddRow(
			ev.EventID,
			FormatDate(ev.AnnouncementDate),
			FormatText(ev.ImposingCountryCode),
			FormatList(ev.TargetedCountryCodes),
			FormatText(ev.MeasureType),
			FormatOptionalRate(ev.MainTariffRate),
			FormatList(ev.AffectedIndustries),
			dup,
		)
	}
	table.Render()
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event in detail",
		Args:  cobra.ExactArgs(1),
	}
	qf := addQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		ev, ok := l.Report.Event(args[0])
		if !ok {
			return fmt.Errorf("event %s: %w", args[0], apperrors.ErrNotFound)
		}
		group, grouped := duplicates.GroupOf(l.Report.Groups, ev.EventID)

		if output.Structured() {
			payload := map[string]interface{}{"event": ev}
			if grouped {
				payload["duplicate_group"] = group
			}
			return output.Emit(payload, nil)
		}

		showEvent(output, ev)
		if grouped {
			output.Println()
			output.Bold("Duplicate Group")
			for _, id := range group.EventIDs {
				marker := "  "
				if id == group.CanonicalID {
					marker = output.Green("★ ")
				}
				output.Printf("  %s%s\n", marker, id)
			}
		}
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func showEvent(output *Output, ev *models.TariffEvent) {
	output.Bold("Event %s", ev.EventID)
	output.Printf("  Imposing:        %s\n", FormatCountry(ev.ImposingCountryCode, ev.ImposingCountryName))
	targets := make([]string, len(ev.TargetedCountryCodes))
	for i, code := range ev.TargetedCountryCodes {
		name := ""
		if i < len(ev.TargetedCountryNames) {
			name = ev.TargetedCountryNames[i]
		}
		targets[i] = FormatCountry(code, name)
	}
	output.Printf("  Targeted:        %s\n", FormatList(targets))
	output.Printf("  Measure:         %s\n", FormatText(ev.MeasureType))
	output.Printf("  Main Rate:       %s\n", FormatOptionalRate(ev.MainTariffRate))
	output.Printf("  Previous Rate:   %s\n", FormatOptionalRate(ev.PreviousTariffRate))
	output.Printf("  Other Rates:     %s\n", FormatList(ev.TariffRates))
	output.Printf("  Announced:       %s\n", FormatDate(ev.AnnouncementDate))
	output.Printf("  Implemented:     %s\n", FormatDate(ev.ImplementationDate))
	output.Printf("  Expires:         %s\n", FormatDate(ev.ExpirationDate))
	output.Printf("  Industries:      %s\n", FormatList(ev.AffectedIndustries))
	output.Printf("  Products:        %s\n", FormatList(ev.AffectedProducts))
	output.Printf("  HS Categories:   %s\n", FormatList(ev.HSProductCategories))
	output.Printf("  Trade Value:     %s\n", FormatOptionalValue(ev.EstimatedTradeValue))
	output.Printf("  Relevance:       %s\n", FormatText(ev.Relevance()))
	output.Printf("  Legal Basis:     %s\n", FormatText(models.Deref(ev.LegalBasis)))
	output.Printf("  Objective:       %s\n", FormatText(models.Deref(ev.PolicyObjective)))
	output.Printf("  Exemptions:      %s\n", FormatText(models.Deref(ev.Exemptions)))

	if s := ev.SummaryText(); s != "" {
		output.Println()
		output.Bold("Summary")
		output.Printf("  %s\n", s)
	}
	if len(ev.SourceArticles) > 0 {
		output.Println()
		output.Bold("Source Articles")
		for _, a := range ev.SourceArticles {
			output.Printf("  %s %s\n", FormatDate(a.PublishedDate), FormatText(a.Title))
			if a.URL != "" {
				output.Printf("    %s\n", output.DimText(a.URL))
			}
		}
	}
	if len(ev.ParseWarnings) > 0 {
		output.Println()
		for _, w := range ev.ParseWarnings {
			output.Warning("  could not parse %s: %q", w.Field, w.Value)
		}
	}
}

func newDuplicatesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "duplicates",
		Aliases: []string{"dups"},
		Short:   "List groups of events reporting the same action",
		Long: `Events are duplicates when they share the imposing country, overlap in
targeted countries and products, and were announced within
duplicates.tolerance_days of each other. The canonical event of a group is
the one with the most source articles.`,
	}
	qf := addQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		l, err := app.load(cmd, qf)
		if err != nil {
			return err
		}
		groups := l.Groups()

		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(map[string]interface{}{
				"groups":            groups,
				"tolerance_days":    app.Config.Duplicates.ToleranceDays,
				"duplicate_records": len(duplicates.Flag(groups)),
			}, toGroupRows(groups, l.Report))
		}

		if len(groups) == 0 {
			output.Info("No duplicate events found")
			announce(output, l.Report)
			return nil
		}
		table := NewTable(output, "CANONICAL", "SIZE", "IMPOSING", "MEASURE", "ANNOUNCED", "DUPLICATES")
		table.SetMaxWidth(5, 60)
		for _, row := range toGroupRows(groups, l.Report) {
			table.AddRow(row.Canonical, fmt.Sprintf("%d", row.Size), FormatText(row.Imposing),
				FormatText(row.MeasureType), FormatText(row.Announced), row.Duplicates)
		}
		table.Render()
		output.Println()
		output.Dim("%d groups, tolerance %d days", len(groups), app.Config.Duplicates.ToleranceDays)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

type groupRow struct {
	Canonical   string `csv:"canonical_id"`
	Size        int    `csv:"size"`
	Imposing    string `csv:"imposing_country_code"`
	MeasureType string `csv:"measure_type"`
	Announced   string `csv:"announcement_date"`
	Duplicates  string `csv:"duplicate_ids"`
}

func toGroupRows(groups []models.DuplicateGroup, r *pipeline.Report) []groupRow {
	rows := make([]groupRow, 0, len(groups))
	for _, g := range groups {
		row := groupRow{
			Canonical:  g.CanonicalID,
			Size:       g.Size(),
			Duplicates: strings.Join(g.Duplicates(), ", "),
		}
		if ev, ok := r.Event(g.CanonicalID); ok {
			row.Imposing = ev.ImposingCountryCode
			row.MeasureType = ev.MeasureType
			row.Announced = optionalString(ev.AnnouncementDate)
		}
		rows = append(rows, row)
	}
	return rows
}
