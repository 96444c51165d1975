package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/store"
)

// addAPICommands adds Events API diagnostics, cache maintenance and run
// history.
func addAPICommands(rootCmd *cobra.Command, app *App) {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Inspect the Events API",
	}
	apiCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check the API health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printMap(NewOutput(cmd), "API Health", res)
		},
	})
	apiCmd.AddCommand(&cobra.Command{
		Use:   "subscription",
		Short: "Show the subscription attached to the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Client.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			return printMap(NewOutput(cmd), "Subscription", res)
		},
	})

	var eventType string
	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "List the fields available for an event type",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Client.EventFields(cmd.Context(), eventType)
			if err != nil {
				return err
			}
			return printMap(NewOutput(cmd), "Event Fields", res)
		},
	}
	fieldsCmd.Flags().StringVar(&eventType, "event-type", "", "event type (default from api.event_type)")
	apiCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(apiCmd)

	rootCmd.AddCommand(newCacheCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

// kvRow is one key/value pair of an API response.
type kvRow struct {
	Key   string `csv:"key"`
	Value string `csv:"value"`
}

// printMap prints a decoded JSON object as sorted key: value lines.
func printMap(output *Output, title string, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]kvRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, kvRow{Key: k, Value: scalar(m[k])})
	}
	if output.Structured() {
		return output.Emit(m, rows)
	}

	output.Bold(title)
	output.Println()
	width := 0
	for _, k := range keys {
		if w := displayWidth(k); w > width {
			width = w
		}
	}
	for _, r := range rows {
		output.Printf("  %-*s  %s\n", width+1, r.Key+":", r.Value)
	}
	return nil
}

// scalar renders v on one line; nested values are shown as compact JSON.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return placeholder
	case string:
		return t
	case bool, float64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Events API response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show response cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ds, err := app.requireStore()
			if err != nil {
				return err
			}
			stats, err := ds.CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			if output.Structured() {
				return output.Emit(stats, []kvRow{
					{"entries", fmt.Sprint(stats.Entries)},
					{"bytes", fmt.Sprint(stats.Bytes)},
					{"oldest", FormatTimestamp(stats.Oldest)},
					{"newest", FormatTimestamp(stats.Newest)},
				})
			}
			now := time.Now()
			lines := []string{
				fmt.Sprintf("Enabled:  %v (ttl %s)", app.Config.Cache.Enabled, FormatDuration(app.Config.Cache.TTL)),
				fmt.Sprintf("Entries:  %d", stats.Entries),
				fmt.Sprintf("Size:     %s", formatBytes(stats.Bytes)),
				fmt.Sprintf("Oldest:   %s", FormatAge(stats.Oldest, now)),
				fmt.Sprintf("Newest:   %s", FormatAge(stats.Newest, now)),
			}
			output.Box("Response Cache", lines)
			return nil
		},
	})

	var olderThan time.Duration
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached responses",
		Example: `  tariff-tracker cache purge
  tariff-tracker cache purge --older-than 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ds, err := app.requireStore()
			if err != nil {
				return err
			}
			n, err := ds.PurgeResponses(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			if output.Structured() {
				return output.Emit(map[string]int64{"purged": n}, []kvRow{{"purged", fmt.Sprint(n)}})
			}
			output.Success("✓ Purged %d cached %s", n, plural(int(n), "response", "responses"))
			return nil
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge entries older than this (0 purges all)")
	cmd.AddCommand(purgeCmd)
	return cmd
}

// runRow is the flat CSV form of a fetch run.
type runRow struct {
	ID         string `csv:"id"`
	Source     string `csv:"source"`
	StartedAt  string `csv:"started_at"`
	DurationMS int64  `csv:"duration_ms"`
	Pages      int    `csv:"pages"`
	Events     int    `csv:"events"`
	Skipped    int    `csv:"skipped"`
	Warnings   int    `csv:"date_warnings"`
	Groups     int    `csv:"duplicate_groups"`
	Error      string `csv:"error"`
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit  int
		source string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetch runs",
		Example: `  tariff-tracker history
  tariff-tracker history --source api --since 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ds, err := app.requireStore()
			if err != nil {
				return err
			}
			filter := store.RunFilter{Source: source, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			runs, err := ds.GetRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			rows := make([]runRow, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, runRow{
					ID: r.ID, Source: r.Source, StartedAt: FormatTimestamp(r.StartedAt),
					DurationMS: r.Duration.Milliseconds(), Pages: r.Pages, Events: r.Events,
					Skipped: r.Skipped, Warnings: r.DateWarnings, Groups: r.DuplicateGroups, Error: r.Error,
				})
			}
			if output.Structured() {
				return output.Emit(runs, rows)
			}
			if len(runs) == 0 {
				output.Info("No fetch runs recorded yet")
				return nil
			}

			table := NewTable(output, "STARTED", "SOURCE", "TOOK", "PAGES", "EVENTS", "SKIPPED", "DUP GROUPS", "STATUS")
			table.SetMaxWidth(7, 50)
			for _, r := range runs {
				status := output.Green("ok")
				if r.Error != "" {
					status = output.Red(r.Error)
				}
				table.AddRow(
					FormatTimestamp(r.StartedAt), r.Source, FormatDuration(r.Duration),
					fmt.Sprint(r.Pages), fmt.Sprint(r.Events), fmt.Sprint(r.Skipped),
					fmt.Sprint(r.DuplicateGroups), status,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs shown")
	cmd.Flags().StringVar(&source, "source", "", "only runs from this source (api, sample, or a file path)")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this window")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
