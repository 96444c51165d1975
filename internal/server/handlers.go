package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tariff-tracker/internal/analytics"
	"tariff-tracker/internal/duplicates"
	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/logging"
	"tariff-tracker/internal/models"
	"tariff-tracker/internal/pipeline"
	"tariff-tracker/internal/resilience"
	"tariff-tracker/internal/store"
)

// defaultLimit caps /v1/events when no limit is given.
const defaultLimit = 100

// runInfo describes the run behind a response.
type runInfo struct {
	Source   string `json:"source"`
	Fallback bool   `json:"fallback"`
	Notice   string `json:"notice,omitempty"`
	Skipped  int    `json:"skipped_records"`
	Warnings int    `json:"date_warnings"`
}

func infoOf(r *pipeline.Report) runInfo {
	return runInfo{
		Source:   r.Source,
		Fallback: r.Fallback,
		Notice:   r.Notice(),
		Skipped:  r.Skipped,
		Warnings: r.DateWarnings,
	}
}

// eventView is an event annotated with its duplicate status.
type eventView struct {
	models.TariffEvent
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		validation *apperrors.ValidationError
		limited    *apperrors.RateLimitError
	)
	switch {
	case apperrors.As(err, &validation):
		status = http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case apperrors.As(err, &limited):
		status = http.StatusServiceUnavailable
		if limited.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds()+0.5)))
		}
	case apperrors.Is(err, apperrors.ErrAuth), apperrors.Is(err, apperrors.ErrMissingAPIKey),
		apperrors.Is(err, apperrors.ErrTransport), apperrors.Is(err, apperrors.ErrNoUsableEvents):
		status = http.StatusBadGateway
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"error":      logging.MaskSecrets(err.Error()),
		"request_id": logging.RequestID(c.Request.Context()),
	})
}

func (s *Server) health(c *gin.Context) {
	settings := s.cfg.Settings
	resp := gin.H{
		"status":             "ok",
		"api_key_configured": settings.HasAPIKey(),
		"sample_mode":        s.cfg.ForceSample || !settings.HasAPIKey(),
	}
	if s.cfg.Client != nil {
		b := s.cfg.Client.Breaker()
		resp["circuit_breaker"] = b
		if b.State == resilience.CircuitOpen {
			resp["status"] = "degraded"
		}
	}
	if s.cfg.Store != nil {
		resp["freshness"] = store.CheckFreshness(s.cfg.Store, pipeline.SourceAPI, settings.Cache.TTL, s.now())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listEvents(c *gin.Context) {
	unique, err := boolParam(c, "unique", false)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := intParam(c, "limit", defaultLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	events := sel.Events
	if unique {
		events = sel.Unique()
	}
	total := len(events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	canonicalOf := make(map[string]string)
	for _, g := range sel.Report.Groups {
		for _, id := range g.Duplicates() {
			canonicalOf[id] = g.CanonicalID
		}
	}
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, eventView{TariffEvent: ev, DuplicateOf: canonicalOf[ev.EventID]})
	}

	c.JSON(http.StatusOK, gin.H{
		"run":    infoOf(sel.Report),
		"total":  total,
		"count":  len(views),
		"events": views,
	})
}

func (s *Server) getEvent(c *gin.Context) {
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	id := c.Param("id")
	ev, ok := sel.Report.Event(id)
	if !ok {
		s.fail(c, fmt.Errorf("event %s: %w", id, apperrors.ErrNotFound))
		return
	}

	resp := gin.H{"run": infoOf(sel.Report), "event": ev}
	if g, ok := duplicates.GroupOf(sel.Report.Groups, id); ok {
		resp["duplicate_group"] = g
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listDuplicates(c *gin.Context) {
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	groups := sel.Groups()
	c.JSON(http.StatusOK, gin.H{
		"run":               infoOf(sel.Report),
		"tolerance_days":    s.cfg.Settings.Duplicates.ToleranceDays,
		"count":             len(groups),
		"duplicate_records": len(duplicates.Flag(groups)),
		"groups":            groups,
	})
}

// dimension reads by and bucket, defaulting the bucket from config.
func (s *Server) dimension(c *gin.Context, fallback analytics.Dimension) (analytics.Dimension, analytics.Options, error) {
	dim := fallback
	if raw := c.Query("by"); raw != "" {
		d, err := analytics.ParseDimension(raw)
		if err != nil {
			return "", analytics.Options{}, apperrors.NewValidationError("by", raw, err.Error())
		}
		dim = d
	}
	raw := c.Query("bucket")
	if raw == "" {
		raw = s.cfg.Settings.Analytics.TimeBucket
	}
	b, err := analytics.ParseBucket(raw)
	if err != nil {
		return "", analytics.Options{}, apperrors.NewValidationError("bucket", raw, err.Error())
	}
	return dim, analytics.Options{Bucket: b}, nil
}

func scope(sel *pipeline.Selection, unique bool) []models.TariffEvent {
	if unique {
		return sel.Unique()
	}
	return sel.Events
}

func (s *Server) aggregate(c *gin.Context) {
	dim, opts, err := s.dimension(c, analytics.ByImposingCountry)
	if err != nil {
		s.fail(c, err)
		return
	}
	unique, err := boolParam(c, "unique", false)
	if err != nil {
		s.fail(c, err)
		return
	}
	top, err := intParam(c, "top", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	res := analytics.Aggregate(scope(sel, unique), dim, opts)
	res.Groups = res.Top(top)
	c.JSON(http.StatusOK, gin.H{"run": infoOf(sel.Report), "result": res})
}

func (s *Server) tradeValue(c *gin.Context) {
	dim, opts, err := s.dimension(c, analytics.ByImposingCountry)
	if err != nil {
		s.fail(c, err)
		return
	}
	unique, err := boolParam(c, "unique", true)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res := analytics.SumTradeValue(scope(sel, unique), dim, opts)
	c.JSON(http.StatusOK, gin.H{"run": infoOf(sel.Report), "result": res})
}

func (s *Server) stats(c *gin.Context) {
	bins, err := intParam(c, "bins", s.cfg.Settings.Analytics.HistogramBins)
	if err == nil && bins > analytics.MaxHistogramBins {
		err = apperrors.NewValidationError("bins", bins, fmt.Sprintf("must be at most %d", analytics.MaxHistogramBins))
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	unique, err := boolParam(c, "unique", false)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	events := scope(sel, unique)
	c.JSON(http.StatusOK, gin.H{
		"run":       infoOf(sel.Report),
		"stats":     analytics.Summarize(events),
		"histogram": analytics.RateHistogram(events, bins),
	})
}

func (s *Server) industries(c *gin.Context) {
	unique, err := boolParam(c, "unique", true)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := s.load(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	events := scope(sel, unique)

	if name := strings.TrimSpace(c.Query("name")); name != "" {
		p := analytics.ProfileIndustry(events, name)
		if p.Events == 0 {
			s.fail(c, fmt.Errorf("industry %s: %w", name, apperrors.ErrNotFound))
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": infoOf(sel.Report), "industry": p})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":        infoOf(sel.Report),
		"industries": analytics.ProfileIndustries(events),
		"categories": analytics.CountValues(events, analytics.ProductCategories),
	})
}
