// Package eventsapi is a client for the Events API tariff search.
package eventsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"

	"tariff-tracker/internal/config"
	apperrors "tariff-tracker/internal/errors"
	"tariff-tracker/internal/logging"
	"tariff-tracker/internal/metrics"
	"tariff-tracker/internal/resilience"
	"tariff-tracker/pkg/utils"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 64 << 20

// Endpoint names used for logging and metrics.
const (
	EndpointSearch       = "events_search"
	EndpointHealth       = "health"
	EndpointSubscription = "subscription"
	EndpointEventFields  = "event_fields"
)

// Config holds client settings.
type Config struct {
	BaseURL          string
	APIKey           string
	EventType        string
	UserAgent        string
	Timeout          time.Duration
	MaxRetries       int
	Backoff          time.Duration
	MaxBackoff       time.Duration
	RatePerSecond    float64
	Burst            int
	MaxPages         int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// ConfigFrom builds a client Config from application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:          cfg.API.BaseURL,
		APIKey:           cfg.Credentials.EventsAPI.APIKey,
		EventType:        cfg.API.EventType,
		UserAgent:        cfg.API.UserAgent,
		Timeout:          cfg.API.Timeout,
		MaxRetries:       cfg.API.MaxRetries,
		Backoff:          cfg.API.Backoff,
		MaxBackoff:       cfg.API.MaxBackoff,
		RatePerSecond:    cfg.API.RatePerSecond,
		Burst:            cfg.API.Burst,
		MaxPages:         cfg.API.MaxPages,
		BreakerThreshold: cfg.API.BreakerThreshold,
		BreakerCooldown:  cfg.API.BreakerCooldown,
	}
}

// ResponseCache stores raw search responses keyed on the exact request and
// page token.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, request []byte, pageToken string, body []byte) error
}

// Page is one page of search results.
type Page struct {
	Raw           []byte
	NextPageToken string
	Count         int
	Cached        bool
}

// Client talks to the Events API.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	cache    ResponseCache
	cacheTTL time.Duration
	metrics  *metrics.Registry
	logger   zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCache enables response caching for searches.
func WithCache(cache ResponseCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.EventType == "" {
		cfg.EventType = "tariffs_v2"
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldown > 0 {
		breakerCfg.Timeout = cfg.BreakerCooldown
	}
	// Only upstream failures count; a bad key or a 429 says nothing about
	// availability.
	breakerCfg.IsFailure = func(err error) bool {
		return apperrors.Is(err, apperrors.ErrTransport)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker("events-api", breakerCfg),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() resilience.CircuitBreakerStats {
	return c.breaker.Stats()
}

// Search fetches one page of results for req.
func (c *Client) Search(ctx context.Context, req Request, pageToken string) (Page, error) {
	if c.cfg.APIKey == "" {
		return Page{}, apperrors.NewAuthError(0, "no events api key configured", apperrors.ErrMissingAPIKey)
	}
	if req.EventType == "" {
		req.EventType = c.cfg.EventType
	}

	body, err := json.Marshal(req.WithPageToken(pageToken))
	if err != nil {
		return Page{}, fmt.Errorf("encoding search request: %w", err)
	}

	key := req.CacheKey(pageToken)
	if c.cache != nil {
		if raw, ok, err := c.cache.GetResponse(ctx, key, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Response cache read failed")
		} else if ok {
			page, err := parsePage(raw)
			if err == nil {
				page.Cached = true
				c.metrics.ObserveAPICall(EndpointSearch, metrics.OutcomeCache, 0)
				c.logger.Debug().Str("page_token", pageToken).Msg("Serving search from cache")
				return page, nil
			}
		}
	}

	raw, err := c.do(ctx, EndpointSearch, http.MethodPost, "/api/events_search", nil, body)
	if err != nil {
		return Page{}, err
	}

	page, err := parsePage(raw)
	if err != nil {
		return Page{}, apperrors.NewTransportError(EndpointSearch, http.StatusOK, err)
	}

	if c.cache != nil {
		reqBody, _ := json.Marshal(req.WithPageToken(""))
		if err := c.cache.PutResponse(ctx, key, reqBody, pageToken, raw); err != nil {
			c.logger.Warn().Err(err).Msg("Response cache write failed")
		}
	}
	return page, nil
}

// Fetch walks result pages for req, up to the configured page limit. When
// a later page fails, the pages already fetched are returned with the error.
func (c *Client) Fetch(ctx context.Context, req Request) ([]Page, error) {
	var pages []Page
	token := ""
	seen := map[string]bool{}

	for len(pages) < c.cfg.MaxPages {
		page, err := c.Search(ctx, req, token)
		if err != nil {
			if len(pages) == 0 {
				return nil, err
			}
			return pages, fmt.Errorf("fetching page %d: %w", len(pages)+1, err)
		}
		pages = append(pages, page)

		token = page.NextPageToken
		if token == "" || seen[token] {
			break
		}
		seen[token] = true
	}
	return pages, nil
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointHealth, "/api/health", nil)
}

// Subscription calls GET /api/subscription.
func (c *Client) Subscription(ctx context.Context) (map[string]any, error) {
	if c.cfg.APIKey == "" {
		return nil, apperrors.NewAuthError(0, "no events api key configured", apperrors.ErrMissingAPIKey)
	}
	return c.getJSON(ctx, EndpointSubscription, "/api/subscription", nil)
}

type eventFieldsParams struct {
	EventType string `url:"event_type"`
}

// EventFields lists the fields available for an event type.
func (c *Client) EventFields(ctx context.Context, eventType string) (map[string]any, error) {
	if c.cfg.APIKey == "" {
		return nil, apperrors.NewAuthError(0, "no events api key configured", apperrors.ErrMissingAPIKey)
	}
	if eventType == "" {
		eventType = c.cfg.EventType
	}
	v, err := query.Values(eventFieldsParams{EventType: eventType})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	return c.getJSON(ctx, EndpointEventFields, "/api/events_info/get_event_fields", v)
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values) (map[string]any, error) {
	raw, err := c.do(ctx, endpoint, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.NewTransportError(endpoint, http.StatusOK, fmt.Errorf("decoding response: %w", err))
	}
	return out, nil
}

// do runs one logical call: bounded retries around a breaker-guarded,
// rate-limited request.
func (c *Client) do(ctx context.Context, endpoint, method, path string, q url.Values, body []byte) ([]byte, error) {
	retryCfg := utils.RetryConfig{
		MaxAttempts:   c.cfg.MaxRetries + 1,
		InitialDelay:  c.cfg.Backoff,
		MaxDelay:      c.cfg.MaxBackoff,
		BackoffFactor: 2,
		ShouldRetry:   apperrors.IsRetryable,
		DelayFor:      apperrors.RetryAfter,
	}

	var out []byte
	err := utils.Retry(ctx, retryCfg, func() error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			b, err := c.once(ctx, endpoint, method, path, q, body)
			out = b
			return err
		})
	})
	if apperrors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.NewTransportError(endpoint, 0, err)
	}
	return out, err
}

func (c *Client) once(ctx context.Context, endpoint, method, path string, q url.Values, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewTransportError(endpoint, 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := c.cfg.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-token", c.cfg.APIKey)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	status := 0
	data, err := func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, apperrors.NewTransportError(endpoint, 0, err)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, apperrors.NewTransportError(endpoint, resp.StatusCode, err)
		}
		return data, classify(endpoint, resp, data)
	}()

	elapsed := time.Since(start)
	logging.LogAPICall(c.logger, method, endpoint, status, elapsed, err)
	c.metrics.ObserveAPICall(endpoint, outcomeOf(err), elapsed)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// classify maps an HTTP response onto the error taxonomy.
func classify(endpoint string, resp *http.Response, body []byte) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.NewAuthError(code, snippet(body), nil)
	case code == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), snippet(body))
	case code >= 500:
		return apperrors.NewTransportError(endpoint, code, fmt.Errorf("%s", snippet(body)))
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", endpoint, code, snippet(body))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case apperrors.Is(err, apperrors.ErrAuth):
		return metrics.OutcomeAuth
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeTransport
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return logging.MaskSecrets(s)
}

// parsePage reads the pagination fields of a search response. A response
// carries either next_page_token or page/total_pages.
func parsePage(raw []byte) (Page, error) {
	var env map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Page{}, fmt.Errorf("decoding search response: %w", err)
	}

	page := Page{Raw: raw}
	if events, ok := env["events"].([]any); ok {
		page.Count = len(events)
	}
	if n, err := cast.ToIntE(env["count"]); err == nil && env["count"] != nil {
		page.Count = n
	}

	if tok, ok := env["next_page_token"].(string); ok && tok != "" {
		page.NextPageToken = tok
		return page, nil
	}
	cur, err1 := cast.ToIntE(env["page"])
	total, err2 := cast.ToIntE(env["total_pages"])
	if err1 == nil && err2 == nil && cur > 0 && cur < total {
		page.NextPageToken = strconv.Itoa(cur + 1)
	}
	return page, nil
}
