// Package server exposes the event explorer views as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tariff-tracker/internal/config"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/metrics"
	"tariff-tracker/internal/pipeline"
	"tariff-tracker/internal/store"
)

// Config wires the server to the rest of the application.
type Config struct {
	Settings *config.Config
	Client   *eventsapi.Client
	Pipeline *pipeline.Pipeline
	Store    store.DataStore // optional
	Metrics  *metrics.Registry
	Logger   zerolog.Logger
	// ForceSample serves sample data even when an API key is configured.
	ForceSample bool
}

// Server handles HTTP requests. Each request runs its own pipeline.
type Server struct {
	cfg    Config
	router *gin.Engine
	now    func() time.Time
}

// New builds a server and its routes.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	s := &Server{cfg: cfg, now: time.Now}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.timeout())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(s.cfg.Metrics.Handler()))

	api := router.Group("/v1")
	registerEventRoutes(api, s)
	registerAnalyticsRoutes(api, s)
	return router
}

func registerEventRoutes(router *gin.RouterGroup, s *Server) {
	events := router.Group("/events")
	{
		events.GET("", s.listEvents)
		events.GET("/:id", s.getEvent)
	}
	router.GET("/duplicates", s.listDuplicates)
}

func registerAnalyticsRoutes(router *gin.RouterGroup, s *Server) {
	router.GET("/aggregate", s.aggregate)
	router.GET("/trade-value", s.tradeValue)
	router.GET("/stats", s.stats)
	router.GET("/industries", s.industries)
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.cfg.Logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
