package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tariff-tracker/internal/config"
	"tariff-tracker/internal/duplicates"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/logging"
	"tariff-tracker/internal/metrics"
	"tariff-tracker/internal/pipeline"
	"tariff-tracker/internal/store"
)

// builtinSample is the --sample value used when the flag is given bare.
const builtinSample = "builtin"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Client   *eventsapi.Client
	Metrics  *metrics.Registry
	Pipeline *pipeline.Pipeline

	configDir   string
	forceSample bool
}

// NewRootCmd creates the root command for the CLI. Dependencies are built
// in PersistentPreRunE once flags are parsed, so --config and --sample apply.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "tariff-tracker",
		Short: "Tariff Tracker - explore global tariff events",
		Long: `Tariff Tracker pulls tariff events extracted from news by the Events API,
normalizes them, flags duplicate reports of the same action and summarizes
them by country, industry, measure type and time.

Without an API key it runs on built-in sample data.

Use 'tariff-tracker help <command>' for more information about a command.
Use 'tariff-tracker examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ParseFormat(mustString(cmd, "format")); err != nil {
				return err
			}
			if cmd.Annotations[annotationNoInit] == "true" || cmd.Name() == "help" {
				app.configDir = mustString(cmd, "config")
				return nil
			}
			return app.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tariff-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().String("format", string(FormatTable), "output format: table, json, yaml, csv")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("sample", "", "use sample data instead of the API (optionally from a file)")
	rootCmd.PersistentFlags().Lookup("sample").NoOptDefVal = builtinSample

	addCoreCommands(rootCmd, app)
	addEventCommands(rootCmd, app)
	addAnalyticsCommands(rootCmd, app)
	addQueryCommands(rootCmd, app)
	addAPICommands(rootCmd, app)
	addServeCommand(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// annotationNoInit marks commands that run without loading configuration.
const annotationNoInit = "no-init"

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// init loads configuration and wires the store, client and pipeline.
func (a *App) init(cmd *cobra.Command) error {
	a.configDir = mustString(cmd, "config")
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	if sample := mustString(cmd, "sample"); sample != "" {
		a.forceSample = true
		if sample != builtinSample {
			cfg.Sample.Path = sample
		}
	}

	logCfg := logging.LogConfig{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		File:       cfg.Log.File,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	// The store is optional: caching, saved queries and run history are
	// unavailable without it.
	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		a.Store = dataStore
		a.Logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
	}

	a.Metrics = metrics.New()

	opts := []eventsapi.Option{
		eventsapi.WithMetrics(a.Metrics),
		eventsapi.WithLogger(logging.WithOperation(a.Logger, "events_api")),
	}
	if cfg.Cache.Enabled && a.Store != nil {
		opts = append(opts, eventsapi.WithCache(a.Store, cfg.Cache.TTL))
	}
	a.Client = eventsapi.New(eventsapi.ConfigFrom(cfg), opts...)
	if cfg.HasAPIKey() {
		a.Logger.Debug().Str("api_key", logging.MaskCredential(cfg.Credentials.EventsAPI.APIKey)).Msg("Events API client initialized")
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithLogger(a.Logger),
	}
	if a.Store != nil {
		pipeOpts = append(pipeOpts, pipeline.WithStore(a.Store))
	}
	a.Pipeline = pipeline.New(duplicates.Config{ToleranceDays: cfg.Duplicates.ToleranceDays}, pipeOpts...)
	return nil
}

// Close releases the store.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		a.Store = nil
	}
}

// requireStore returns the store or an error explaining why it is missing.
func (a *App) requireStore() (store.DataStore, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("local store unavailable at %s", a.Config.Store.Path)
	}
	return a.Store, nil
}

// addCoreCommands adds version and config commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.Structured() {
				return output.Emit(map[string]string{"version": config.Version}, nil)
			}
			output.Printf("Tariff Tracker v%s\n", config.Version)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.Structured() {
				return output.Emit(configView(app.Config), nil)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration directory path",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := configDir(app.configDir)
			if output.Structured() {
				return output.Emit(map[string]string{"path": dir}, nil)
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration files",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := config.Load(app.configDir); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.Structured() {
				return output.Emit(map[string]bool{"valid": true}, nil)
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	var overwrite bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write configuration templates",
		Annotations: noInit(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			written, err := config.WriteTemplates(app.configDir, overwrite)
			if err != nil {
				return err
			}
			if output.Structured() {
				return output.Emit(map[string][]string{"written": written}, nil)
			}
			if len(written) == 0 {
				output.Info("Configuration already present in %s (use --force to overwrite)", configDir(app.configDir))
				return nil
			}
			for _, path := range written {
				output.Success("✓ Wrote %s", path)
			}
			return nil
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite existing files")
	cmd.AddCommand(initCmd)

	return cmd
}

func configDir(dir string) string {
	if dir == "" {
		return config.DefaultConfigDir()
	}
	return dir
}

// configView is the config as shown to users, with the API key masked.
func configView(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"api":        cfg.API,
		"duplicates": cfg.Duplicates,
		"analytics":  cfg.Analytics,
		"cache":      cfg.Cache,
		"store":      cfg.Store,
		"server":     cfg.Server,
		"log":        cfg.Log,
		"sample":     cfg.Sample,
		"api_key":    logging.MaskCredential(cfg.Credentials.EventsAPI.APIKey),
	}
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Events API")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Event Type:      %s\n", cfg.API.EventType)
	output.Printf("  API Key:         %s\n", FormatText(logging.MaskCredential(cfg.Credentials.EventsAPI.APIKey)))
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Printf("  Retries:         %d (backoff %s)\n", cfg.API.MaxRetries, cfg.API.Backoff)
	output.Printf("  Rate Limit:      %.1f req/s\n", cfg.API.RatePerSecond)
	output.Printf("  Max Pages:       %d\n", cfg.API.MaxPages)
	output.Printf("  Lookback:        %s\n", cfg.API.Lookback)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Tolerance:       %d days\n", cfg.Duplicates.ToleranceDays)
	output.Printf("  Time Bucket:     %s\n", cfg.Analytics.TimeBucket)
	output.Printf("  Histogram Bins:  %d\n", cfg.Analytics.HistogramBins)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Cache:           %v (ttl %s)\n", cfg.Cache.Enabled, cfg.Cache.TTL)
	output.Printf("  Sample File:     %s\n", FormatText(cfg.Sample.Path))
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Log Level:       %s\n", cfg.Log.Level)
}
