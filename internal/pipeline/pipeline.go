// Package pipeline runs one fetch: load raw pages from a source, normalize
// them into events and flag duplicates.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tariff-tracker/internal/config"
	"tariff-tracker/internal/duplicates"
	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/logging"
	"tariff-tracker/internal/metrics"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/normalize"
	"tariff-tracker/internal/store"
)

// Pipeline turns a Source into a Report.
type Pipeline struct {
	detector *duplicates.Detector
	store    store.DataStore
	metrics  *metrics.Registry
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithStore records runs and sync times in ds.
func WithStore(ds store.DataStore) Option {
	return func(p *Pipeline) { p.store = ds }
}

// WithMetrics records run outcomes in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(cfg duplicates.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector: duplicates.NewDetector(cfg),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report is the result of one run.
type Report struct {
	Source    string                  `json:"source"`
	FetchedAt time.Time               `json:"fetched_at"`
	Duration  time.Duration           `json:"duration"`
	Events    []models.TariffEvent    `json:"events"`
	Groups    []models.DuplicateGroup `json:"duplicate_groups"`
	Pages     int                     `json:"pages"`
	Cached    int                     `json:"cached_pages"`
	Skipped   int                     `json:"skipped_records"`
	// Warnings counts all parse warnings; DateWarnings only unparsed dates.
	Warnings     int     `json:"parse_warnings"`
	DateWarnings int     `json:"date_warnings"`
	Fallback     bool    `json:"fallback"`
	Malformed    []error `json:"-"`
	// Partial holds the error that cut pagination short, if any.
	Partial error `json:"-"`
}

// Run executes the pipeline against src. Only failures that leave nothing
// to show are returned as errors; skipped records and unparsed dates are
// reported on the Report.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Report, error) {
	start := p.now()
	logger := logging.WithOperation(p.logger, "pipeline").With().Str("source", src.Name()).Logger()

	// Step 1: Load raw pages
	batch, err := src.Load(ctx)
	if err != nil {
		p.recordFailure(ctx, src.Name(), start, err)
		return nil, fmt.Errorf("loading %s: %w", src.Name(), err)
	}
	if batch.Partial != nil {
		logger.Warn().Err(batch.Partial).Int("pages", len(batch.Payloads)).Msg("Pagination stopped early")
	}

	// Step 2: Decode and normalize every page as one batch so ids stay
	// unique across pages
	var records []any
	for i, payload := range batch.Payloads {
		recs, err := normalize.DecodeRecords(payload)
		if err != nil {
			err = fmt.Errorf("page %d: %w", i+1, err)
			p.recordFailure(ctx, src.Name(), start, err)
			return nil, err
		}
		records = append(records, recs...)
	}

	res := normalize.NormalizeRecords(records)
	if len(records) > 0 && len(res.Events) == 0 {
		err := fmt.Errorf("%d records: %w", len(records), apperrors.ErrNoUsableEvents)
		p.recordFailure(ctx, src.Name(), start, err)
		return nil, err
	}
	for _, m := range res.Malformed {
		logger.Debug().Err(m).Msg("Skipped record")
	}

	// Step 3: Flag duplicates
	groups := p.detector.FindDuplicates(res.Events)

	report := &Report{
		Source:       src.Name(),
		FetchedAt:    start,
		Duration:     p.now().Sub(start),
		Events:       res.Events,
		Groups:       groups,
		Pages:        len(batch.Payloads),
		Cached:       batch.Cached,
		Skipped:      res.Skipped,
		Warnings:     res.Warnings,
		DateWarnings: res.DateWarnings,
		Fallback:     batch.Fallback,
		Malformed:    res.Malformed,
		Partial:      batch.Partial,
	}

	// Step 4: Record the outcome
	p.metrics.ObserveRun(len(report.Events), report.Skipped, report.DateWarnings, len(groups))
	logging.LogFetch(logger, report.Source, len(report.Events), report.Skipped, report.DateWarnings, len(groups))
	p.recordSuccess(ctx, report)

	return report, nil
}

func (p *Pipeline) recordSuccess(ctx context.Context, r *Report) {
	if p.store == nil {
		return
	}
	run := &store.Run{
		Source:          r.Source,
		StartedAt:       r.FetchedAt,
		Duration:        r.Duration,
		Pages:           r.Pages,
		Events:          len(r.Events),
		Skipped:         r.Skipped,
		DateWarnings:    r.DateWarnings,
		DuplicateGroups: len(r.Groups),
	}
	if r.Partial != nil {
		run.Error = logging.MaskSecrets(r.Partial.Error())
	}
	if err := p.store.RecordRun(ctx, run); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to record run")
	}
	if err := p.store.SetLastSync(r.Source, r.FetchedAt); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to update sync time")
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, source string, start time.Time, err error) {
	p.logger.Error().Err(err).Str("source", source).Msg("Pipeline run failed")
	if p.store == nil {
		return
	}
	run := &store.Run{
		Source:    source,
		StartedAt: start,
		Duration:  p.now().Sub(start),
		Error:     logging.MaskSecrets(err.Error()),
	}
	if rerr := p.store.RecordRun(ctx, run); rerr != nil {
		p.logger.Warn().Err(rerr).Msg("Failed to record run")
	}
}

// Notice is the one-line data quality note shown next to results, e.g.
// "2 records skipped / 1 date unparsed". It is empty when there is nothing
// to report.
func (r *Report) Notice() string {
	var parts []string
	if r.Skipped > 0 {
		parts = append(parts, plural(r.Skipped, "record", "records")+" skipped")
	}
	if r.DateWarnings > 0 {
		parts = append(parts, plural(r.DateWarnings, "date", "dates")+" unparsed")
	}
	if r.Partial != nil {
		parts = append(parts, fmt.Sprintf("results incomplete after %s", plural(r.Pages, "page", "pages")))
	}
	return strings.Join(parts, " / ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// Event returns the event with id.
func (r *Report) Event(id string) (*models.TariffEvent, bool) {
	for i := range r.Events {
		if r.Events[i].EventID == id {
			return &r.Events[i], true
		}
	}
	return nil, false
}

// Flags maps every event id that is a non-canonical duplicate to true.
func (r *Report) Flags() map[string]bool {
	return duplicates.Flag(r.Groups)
}

// Unique returns the events with non-canonical duplicates removed.
func (r *Report) Unique() []models.TariffEvent {
	return duplicates.Dedupe(r.Events, r.Groups)
}

// SourceFor picks the source for a run. forceSample, or no API key,
// selects sample data; without a key the sample is marked as a fallback.
func SourceFor(cfg *config.Config, client *eventsapi.Client, req eventsapi.Request, forceSample bool) Source {
	if forceSample {
		return NewFileSource(cfg.Sample.Path)
	}
	if !cfg.HasAPIKey() || client == nil {
		return NewFallbackSource(cfg.Sample.Path)
	}
	return NewAPISource(client, req)
}
