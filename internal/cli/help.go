// Package cli provides the command-line interface for the tariff tracker.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands. None of them need
// configuration.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCommandsCmd(app))
	rootCmd.AddCommand(newExamplesCmd(app))
	rootCmd.AddCommand(newQuickstartCmd(app))
}

type helpEntry struct {
	cmd  string
	desc string
}

type helpCategory struct {
	name     string
	commands []helpEntry
}

var commandCategories = []helpCategory{
	{
		name: "Events",
		commands: []helpEntry{
			{"fetch", "Fetch events and report what was loaded"},
			{"events", "List events matching filters"},
			{"show <id>", "Event details and its duplicate group"},
			{"duplicates", "Groups of reports of the same action"},
		},
	},
	{
		name: "Analytics",
		commands: []helpEntry{
			{"aggregate --by <dim>", "Counts by country, industry, measure, time"},
			{"trade-value --by <dim>", "Estimated trade value sums"},
			{"stats", "Summary statistics and rate histogram"},
			{"dashboard", "One screen overview"},
			{"industries", "Industry profiles"},
		},
	},
	{
		name: "Queries",
		commands: []helpEntry{
			{"query preview", "Show the API request for a search"},
			{"query save <name>", "Save a search"},
			{"query list", "List saved searches"},
			{"query run <name>", "Run a saved search"},
			{"query delete <name>", "Delete a saved search"},
		},
	},
	{
		name: "Events API",
		commands: []helpEntry{
			{"api health", "API health check"},
			{"api subscription", "Subscription details"},
			{"api fields", "Fields of an event type"},
			{"cache stats", "Response cache usage"},
			{"cache purge", "Delete cached responses"},
			{"history", "Recent fetch runs"},
		},
	},
	{
		name: "Server",
		commands: []helpEntry{
			{"serve", "JSON HTTP API and Prometheus metrics"},
		},
	},
	{
		name: "Setup",
		commands: []helpEntry{
			{"config init", "Write template config files"},
			{"config show", "Show the effective configuration"},
			{"config path", "Show config file locations"},
			{"config validate", "Check the configuration"},
			{"version", "Show version"},
		},
	},
}

func noInit() map[string]string {
	return map[string]string{annotationNoInit: "true"}
}

func newCommandsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "commands",
		Short:       "List all commands by category",
		Long:        "Display all available commands organized by category.",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Tariff Tracker Commands")
			output.Println()

			for _, cat := range commandCategories {
				output.Bold(cat.name)
				for _, c := range cat.commands {
					output.Printf("  %-30s %s\n", output.Cyan(c.cmd), c.desc)
				}
				output.Println()
			}

			output.Dim("Use 'tariff-tracker help <command>' for detailed help on any command")
			return nil
		},
	}
}

var workflowExamples = []struct {
	title    string
	commands []string
}{
	{
		title: "First Look (no API key needed)",
		commands: []string{
			"tariff-tracker dashboard --sample      # Overview of the built-in sample",
			"tariff-tracker events --sample --unique # Canonical events only",
			"tariff-tracker duplicates --sample     # How reports were grouped",
		},
	},
	{
		title: "Who Is Targeting Whom",
		commands: []string{
			"tariff-tracker aggregate --by imposing_country",
			"tariff-tracker aggregate --by targeted_country --imposing US",
			"tariff-tracker events --imposing US --targeted CN --min-rate 25",
		},
	},
	{
		title: "Trends Over Time",
		commands: []string{
			"tariff-tracker aggregate --by time --bucket week --since 90d",
			"tariff-tracker aggregate --by measure_type --from 2025-03-01 --date-field announcement",
		},
	},
	{
		title: "Industry Impact",
		commands: []string{
			"tariff-tracker industries --top 5   # Most affected industries",
			"tariff-tracker industries --name Steel",
			"tariff-tracker trade-value --by industry",
		},
	},
	{
		title: "Saved Searches",
		commands: []string{
			"tariff-tracker query preview --imposing CN --measure \"retaliatory tariff\"",
			"tariff-tracker query save china-retaliation --imposing CN --measure \"retaliatory tariff\"",
			"tariff-tracker query run china-retaliation",
		},
	},
	{
		title: "Export",
		commands: []string{
			"tariff-tracker events --format csv > events.csv",
			"tariff-tracker aggregate --by industry --format yaml",
			"tariff-tracker dashboard --json | jq .stats",
		},
	},
	{
		title: "Serve",
		commands: []string{
			"tariff-tracker serve --addr :8080        # JSON API and /metrics",
			"curl 'localhost:8080/v1/aggregate?by=industry&unique=true'",
		},
	},
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "examples",
		Short:       "Show common workflow examples",
		Long:        "Display examples of common tariff tracking workflows.",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			for _, ex := range workflowExamples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "quickstart",
		Short:       "New user guide",
		Long:        "Step-by-step guide for new users.",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Tariff Tracker - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{
					title: "Try the Sample",
					desc:  "Everything works offline on built-in sample events.",
					cmd:   "tariff-tracker dashboard --sample",
				},
				{
					title: "Create Config Files",
					desc:  "Write config.toml and credentials.toml templates.",
					cmd:   "tariff-tracker config init",
				},
				{
					title: "Add Your API Key",
					desc:  "Put your Events API key in credentials.toml, or export EVENTS_API_KEY.",
					cmd:   "tariff-tracker config path  # Shows where the files are",
				},
				{
					title: "Check the Connection",
					desc:  "Verify the key and see what your subscription covers.",
					cmd:   "tariff-tracker api subscription",
				},
				{
					title: "Fetch Events",
					desc:  "Pull the last 30 days and see what was skipped or grouped.",
					cmd:   "tariff-tracker fetch",
				},
				{
					title: "Explore",
					desc:  "Aggregate, filter, and drill into single events.",
					cmd:   "tariff-tracker aggregate --by industry --unique",
				},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Configuration Files")
			output.Println()
			output.Printf("  %s - Events API key\n", output.Cyan("credentials.toml"))
			output.Printf("  %s - API, duplicate tolerance, cache, server and log settings\n", output.Cyan("config.toml"))
			output.Printf("  %s - Local cache, saved queries and run history\n", output.Cyan("tracker.db"))
			output.Println()

			output.Bold("Getting Help")
			output.Println()
			output.Printf("  %s - List all commands\n", output.Cyan("tariff-tracker commands"))
			output.Printf("  %s - Common workflows\n", output.Cyan("tariff-tracker examples"))
			output.Printf("  %s - Help for any command\n", output.Cyan("tariff-tracker help <command>"))
			output.Println()

			output.Bold("Notes")
			output.Println()
			output.Printf("  %s Events come from automated news extraction; check source articles\n", output.Yellow("⚠"))
			output.Printf("  %s Use --unique when counting, or duplicate reports inflate totals\n", output.Yellow("⚠"))
			output.Printf("  %s Keep credentials.toml private\n", output.Yellow("⚠"))
			return nil
		},
	}
}
