package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/store"
)

// addQueryCommands adds the query builder commands.
func addQueryCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Build, save and run event searches",
		Long: `Build Events API searches from filters, preview the request body, and keep
named searches in the local store for later runs.`,
	}
	cmd.AddCommand(newQueryPreviewCmd(app))
	cmd.AddCommand(newQuerySaveCmd(app))
	cmd.AddCommand(newQueryListCmd(app))
	cmd.AddCommand(newQueryRunCmd(app))
	cmd.AddCommand(newQueryDeleteCmd(app))
	rootCmd.AddCommand(cmd)
}

func newQueryPreviewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the request body a search would send",
		Example: `  tariff-tracker query preview --imposing US --targeted CN --min-rate 10
  tariff-tracker query preview --from 2025-01-01 --date-field announcement --format yaml`,
	}
	qf := addQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		q, err := qf.query(cmd, app.Config)
		if err != nil {
			return err
		}
		req := eventsapi.BuildRequest(q)
		if output.Format() == FormatYAML {
			return output.YAML(req)
		}
		return output.JSON(req)
	}
	return cmd
}

func newQuerySaveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a search under a name",
		Long:  "Save a search under a name. Saving an existing name replaces its filters.",
		Args:  cobra.ExactArgs(1),
	}
	qf := addQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		ds, err := app.requireStore()
		if err != nil {
			return err
		}
		q, err := qf.query(cmd, app.Config)
		if err != nil {
			return err
		}
		// Keep the window relative unless it was given explicitly, so the
		// saved search follows api.lookback.
		if !cmd.Flags().Changed("since") {
			q.ExtractionRange = nil
		}
		saved := &store.SavedQuery{Name: args[0], Query: q}
		if err := ds.SaveQuery(cmd.Context(), saved); err != nil {
			return err
		}
		if output.Structured() {
			return output.Emit(saved, nil)
		}
		output.Success("✓ Saved query %s (%s)", saved.Name, ShortID(saved.ID))
		return nil
	}
	return cmd
}

// queryRow is the flat CSV form of a saved query.
type queryRow struct {
	ID      string `csv:"id"`
	Name    string `csv:"name"`
	Filters string `csv:"filters"`
	Updated string `csv:"updated_at"`
}

// describeQuery renders the filters of q as one line.
func describeQuery(q eventsapi.Query) string {
	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+"="+strings.Join(values, ","))
		}
	}
	add("imposing", q.ImposingCountries)
	add("targeted", q.TargetedCountries)
	add("measure", q.MeasureTypes)
	add("industry", q.Industries)
	add("keyword", q.Keywords)
	if q.MinTariffRate != nil {
		parts = append(parts, fmt.Sprintf("min-rate=%g", *q.MinTariffRate))
	}
	if r := q.ExtractionRange; r != nil {
		parts = append(parts, fmt.Sprintf("extracted=%v..%v", r.Gte, r.Lte))
	}
	if r := q.EventRange; r != nil {
		field := q.EventDateField
		if field == "" {
			field = eventsapi.FilterEventDate
		}
		parts = append(parts, fmt.Sprintf("%s=%v..%v", field, rangeBound(r.Gte), rangeBound(r.Lte)))
	}
	if len(parts) == 0 {
		return "(no filters)"
	}
	return strings.Join(parts, " ")
}

func rangeBound(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func newQueryListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ds, err := app.requireStore()
			if err != nil {
				return err
			}
			queries, err := ds.ListQueries(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]queryRow, 0, len(queries))
			for _, q := range queries {
				rows = append(rows, queryRow{q.ID, q.Name, describeQuery(q.Query), FormatTimestamp(q.UpdatedAt)})
			}
			if output.Structured() {
				return output.Emit(queries, rows)
			}
			if len(rows) == 0 {
				output.Info("No saved queries. Create one with 'tariff-tracker query save <name>'")
				return nil
			}
			table := NewTable(output, "NAME", "ID", "FILTERS", "UPDATED")
			table.SetMaxWidth(2, 70)
			for _, r := range rows {
				table.AddRow(output.Cyan(r.Name), ShortID(r.ID), r.Filters, r.Updated)
			}
			table.Render()
			return nil
		},
	}
}

func newQueryRunCmd(app *App) *cobra.Command {
	var (
		limit  int
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a saved search and list its events",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum events shown (0 for all)")
	cmd.Flags().BoolVar(&unique, "unique", false, "hide non-canonical duplicates")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		ds, err := app.requireStore()
		if err != nil {
			return err
		}
		saved, err := ds.GetQuery(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		q := saved.Query
		if q.ExtractionRange == nil {
			if q.ExtractionRange, err = eventsapi.RelativeWindow("", app.Config.API.Lookback); err != nil {
				return err
			}
		}
		l, err := app.run(cmd.Context(), q, nil)
		if err != nil {
			return err
		}

		events := l.Events
		if unique {
			events = l.Unique()
		}
		total := len(events)
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}
		canonicalOf := canonicalIndex(l.Report.Groups)
		if output.Structured() {
			announce(output, l.Report)
			return output.Emit(map[string]interface{}{
				"query":   saved,
				"summary": summarize(l),
				"events":  events,
			}, toEventRows(events, canonicalOf))
		}

		output.Bold("%s: %s", saved.Name, describeQuery(q))
		output.Println()
		renderEvents(output, events, canonicalOf)
		output.Println()
		output.Dim("Showing %d of %d events from %s", len(events), total, l.Report.Source)
		announce(output, l.Report)
		return nil
	}
	return cmd
}

func newQueryDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved search",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ds, err := app.requireStore()
			if err != nil {
				return err
			}
			if err := ds.DeleteQuery(cmd.Context(), args[0]); err != nil {
				return err
			}
			if output.Structured() {
				return output.Emit(map[string]string{"deleted": args[0]}, nil)
			}
			output.Success("✓ Deleted query %s", args[0])
			return nil
		},
	}
}

