package eventsapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tariff-tracker/internal/models"
)

// Filter keys understood by the events_search endpoint.
const (
	FilterExtractionDate  = "extraction_date"
	FilterEventDate       = "event_date"
	FilterImposing        = "tariffs_v2.imposing_country_code"
	FilterTargeted        = "tariffs_v2.targeted_country_codes"
	FilterMeasureType     = "tariffs_v2.measure_type"
	FilterIndustries      = "tariffs_v2.affected_industries"
	FilterMainTariffRate  = "tariffs_v2.main_tariff_rate"
	FilterSummary         = "tariffs_v2.summary"
	FilterAnnouncementDay = "tariffs_v2.announcement_date"
	FilterImplementDay    = "tariffs_v2.implementation_date"
)

// Range is a gte/lte bound. Values are dates or relative expressions such
// as "now-30d".
type Range struct {
	Gte any `json:"gte,omitempty" yaml:"gte,omitempty"`
	Lte any `json:"lte,omitempty" yaml:"lte,omitempty"`
}

// Request is the JSON body of an events_search call.
type Request struct {
	EventType               string         `json:"event_type" yaml:"event_type"`
	AttachArticlesData      bool           `json:"attach_articles_data" yaml:"attach_articles_data"`
	AdditionalFilters       map[string]any `json:"additional_filters" yaml:"additional_filters"`
	AdditionalArticleFields []string       `json:"additional_article_fields,omitempty" yaml:"additional_article_fields,omitempty"`
	Page                    int            `json:"page,omitempty" yaml:"page,omitempty"`
	NextPageToken           string         `json:"next_page_token,omitempty" yaml:"next_page_token,omitempty"`
}

// WithPageToken returns a copy of r addressing the page named by token.
// Numeric tokens select a page number; anything else is passed back to the
// API verbatim.
func (r Request) WithPageToken(token string) Request {
	r.Page, r.NextPageToken = 0, ""
	if token == "" {
		return r
	}
	if n, err := strconv.Atoi(token); err == nil && n > 0 {
		r.Page = n
		return r
	}
	r.NextPageToken = token
	return r
}

// CacheKey identifies r plus a page token. Map keys marshal in sorted
// order, so equal requests always produce equal keys.
func (r Request) CacheKey(token string) string {
	body, _ := json.Marshal(r.WithPageToken(""))
	sum := sha256.Sum256(append(append(body, '|'), token...))
	return hex.EncodeToString(sum[:])
}

// Query is the user-facing description of a search, as built by the query
// builder views.
type Query struct {
	EventType string `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	// ExtractionRange defaults to the last 30 days.
	ExtractionRange *Range `json:"extraction_range,omitempty" yaml:"extraction_range,omitempty"`
	EventRange      *Range `json:"event_range,omitempty" yaml:"event_range,omitempty"`
	// EventDateField selects the field EventRange applies to. Defaults to
	// the API's generic event_date.
	EventDateField     string   `json:"event_date_field,omitempty" yaml:"event_date_field,omitempty"`
	ImposingCountries  []string `json:"imposing_countries,omitempty" yaml:"imposing_countries,omitempty"`
	TargetedCountries  []string `json:"targeted_countries,omitempty" yaml:"targeted_countries,omitempty"`
	MeasureTypes       []string `json:"measure_types,omitempty" yaml:"measure_types,omitempty"`
	Industries         []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	MinTariffRate      *float64 `json:"min_tariff_rate,omitempty" yaml:"min_tariff_rate,omitempty"`
	Keywords           []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ExcludeArticles    bool     `json:"exclude_articles,omitempty" yaml:"exclude_articles,omitempty"`
	ExtraArticleFields []string `json:"extra_article_fields,omitempty" yaml:"extra_article_fields,omitempty"`
}

// DefaultExtractionRange is the window used when a query sets none.
func DefaultExtractionRange() *Range {
	return &Range{Gte: "now-30d", Lte: "now"}
}

// BuildRequest turns a Query into a request body. Single-element lists
// collapse to a scalar filter value.
func BuildRequest(q Query) Request {
	req := Request{
		EventType:          q.EventType,
		AttachArticlesData: !q.ExcludeArticles,
		AdditionalFilters:  map[string]any{},
	}
	if req.EventType == "" {
		req.EventType = models.EventTypeTariffs
	}

	extraction := q.ExtractionRange
	if extraction == nil {
		extraction = DefaultExtractionRange()
	}
	req.AdditionalFilters[FilterExtractionDate] = *extraction

	if q.EventRange != nil {
		field := q.EventDateField
		if field == "" {
			field = FilterEventDate
		}
		req.AdditionalFilters[field] = *q.EventRange
	}

	setList(req.AdditionalFilters, FilterImposing, upper(q.ImposingCountries))
	setList(req.AdditionalFilters, FilterTargeted, upper(q.TargetedCountries))
	setList(req.AdditionalFilters, FilterMeasureType, q.MeasureTypes)
	setList(req.AdditionalFilters, FilterIndustries, q.Industries)

	if q.MinTariffRate != nil {
		req.AdditionalFilters[FilterMainTariffRate] = Range{Gte: *q.MinTariffRate}
	}

	var words []string
	for _, k := range q.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			words = append(words, k)
		}
	}
	if len(words) > 0 {
		req.AdditionalFilters[FilterSummary] = strings.Join(words, " ")
	}

	if req.AttachArticlesData && len(q.ExtraArticleFields) > 0 {
		req.AdditionalArticleFields = q.ExtraArticleFields
	}
	return req
}

func setList(filters map[string]any, key string, values []string) {
	var clean []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}
	switch len(clean) {
	case 0:
	case 1:
		filters[key] = clean[0]
	default:
		filters[key] = clean
	}
}

func upper(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}

var windowPattern = regexp.MustCompile(`^(\d+)([hdwMy])$`)

// RelativeWindow turns "7d" style input into a "now-7d" extraction range.
// An empty value falls back to lookback, then to the 30 day default.
func RelativeWindow(s string, lookback time.Duration) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if lookback <= 0 {
			return DefaultExtractionRange(), nil
		}
		if lookback%(24*time.Hour) == 0 {
			s = fmt.Sprintf("%dd", lookback/(24*time.Hour))
		} else {
			s = fmt.Sprintf("%dh", int(lookback.Hours()+0.5))
		}
	}
	m := windowPattern.FindStringSubmatch(s)
	if m == nil || strings.TrimLeft(m[1], "0") == "" {
		return nil, fmt.Errorf("invalid window %q (want e.g. 72h, 7d, 2w, 3M, 1y)", s)
	}
	return &Range{Gte: "now-" + s, Lte: "now"}, nil
}

// DateFieldKey maps a user-facing date field name (event, announcement,
// implementation) to the filter key EventRange applies to. The generic
// event date maps to "".
func DateFieldKey(field string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "", "event":
		return "", nil
	case "announcement":
		return FilterAnnouncementDay, nil
	case "implementation":
		return FilterImplementDay, nil
	default:
		return "", fmt.Errorf("invalid date field %q (want event, announcement or implementation)", field)
	}
}
