package server

import (
	"math"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/eventsapi"
	"tariff-tracker/internal/normalize"
	"tariff-tracker/internal/pipeline"
)

// list reads a query parameter given either repeated or comma-separated.
func list(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func boolParam(c *gin.Context, key string, fallback bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return false, apperrors.NewValidationError(key, raw, "must be a boolean")
	}
	return v, nil
}

func intParam(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError(key, raw, "must be a non-negative integer")
	}
	return v, nil
}

// search is a parsed events query plus the local-only filters.
type search struct {
	query     eventsapi.Query
	relevance []string
}

// parseSearch reads the shared filter parameters of the /v1 routes.
func (s *Server) parseSearch(c *gin.Context) (search, error) {
	settings := s.cfg.Settings
	q := eventsapi.Query{
		EventType:         settings.API.EventType,
		ImposingCountries: list(c, "imposing"),
		TargetedCountries: list(c, "targeted"),
		MeasureTypes:      list(c, "measure"),
		Industries:        list(c, "industry"),
		Keywords:          list(c, "keyword"),
	}

	noArticles, err := boolParam(c, "no_articles", false)
	if err != nil {
		return search{}, err
	}
	q.ExcludeArticles = noArticles

	if raw := c.Query("min_rate"); raw != "" {
		rate, err := cast.ToFloat64E(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
		if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return search{}, apperrors.NewValidationError("min_rate", raw, "must be a finite number")
		}
		q.MinTariffRate = &rate
	}

	window, err := eventsapi.RelativeWindow(c.Query("since"), settings.API.Lookback)
	if err != nil {
		return search{}, apperrors.NewValidationError("since", c.Query("since"), err.Error())
	}
	q.ExtractionRange = window

	field, err := eventsapi.DateFieldKey(c.Query("date_field"))
	if err != nil {
		return search{}, apperrors.NewValidationError("date_field", c.Query("date_field"), err.Error())
	}
	var r eventsapi.Range
	for _, bound := range []struct {
		key string
		dst *any
	}{{"from", &r.Gte}, {"to", &r.Lte}} {
		raw := c.Query(bound.key)
		if raw == "" {
			continue
		}
		d, ok := normalize.ParseDate(raw)
		if !ok {
			return search{}, apperrors.NewValidationError(bound.key, raw, "must be a date (YYYY-MM-DD)")
		}
		*bound.dst = d.String()
	}
	if r.Gte != nil || r.Lte != nil {
		q.EventRange = &r
		q.EventDateField = field
	}

	return search{query: q, relevance: list(c, "relevance")}, nil
}

// load runs the search described by the request.
func (s *Server) load(c *gin.Context) (*pipeline.Selection, error) {
	sr, err := s.parseSearch(c)
	if err != nil {
		return nil, err
	}
	src := pipeline.SourceFor(s.cfg.Settings, s.cfg.Client, eventsapi.BuildRequest(sr.query), s.cfg.ForceSample)
	return s.cfg.Pipeline.Select(c.Request.Context(), src, sr.query, sr.relevance)
}
