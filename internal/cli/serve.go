package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tariff-tracker/internal/logging"
	"tariff-tracker/internal/server"
)

// shutdownTimeout bounds how long serve waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

func addServeCommand(rootCmd *cobra.Command, app *App) {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the event views as a JSON HTTP API",
		Long: `Serve the event views over HTTP. Every request runs its own fetch, so
responses honor the same filters as the CLI (as query parameters) and the
same response cache.

Routes:
  GET /healthz             liveness, circuit breaker and data freshness
  GET /metrics             Prometheus metrics
  GET /v1/events           events, filtered (imposing, targeted, measure,
                           industry, relevance, keyword, min_rate, since,
                           from, to, date_field, unique, limit)
  GET /v1/events/:id       one event and its duplicate group
  GET /v1/duplicates       duplicate groups
  GET /v1/aggregate        counts by dimension (by, bucket, top, unique)
  GET /v1/trade-value      trade value sums (by, bucket, unique)
  GET /v1/stats            summary statistics and rate histogram (bins)
  GET /v1/industries       industry profiles (name)`,
		Example: `  tariff-tracker serve
  tariff-tracker serve --addr 127.0.0.1:9090 --sample`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			srv := server.New(server.Config{
				Settings:    app.Config,
				Client:      app.Client,
				Pipeline:    app.Pipeline,
				Store:       app.Store,
				Metrics:     app.Metrics,
				Logger:      logging.WithOperation(app.Logger, "server"),
				ForceSample: app.forceSample,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			output := NewOutput(cmd)
			output.Info("Serving on %s (Ctrl+C to stop)", addr)
			if app.forceSample || !app.Config.HasAPIKey() {
				output.Warning("Serving sample data")
			}
			return srv.Run(ctx, addr, shutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	rootCmd.AddCommand(cmd)
}
