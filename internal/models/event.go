package models

import "strings"

// TariffEvent is one tariff action extracted from news, in flat form.
// Optional scalars are pointers so absence stays distinguishable from zero.
type TariffEvent struct {
	EventID         string  `json:"event_id" yaml:"event_id"`
	EventType       string  `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	GlobalEventType string  `json:"global_event_type,omitempty" yaml:"global_event_type,omitempty"`
	ExtractionDate  *Date   `json:"extraction_date,omitempty" yaml:"extraction_date,omitempty"`
	RelevanceScore  *string `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty"`

	ImposingCountryCode  string   `json:"imposing_country_code" yaml:"imposing_country_code"`
	ImposingCountryName  string   `json:"imposing_country_name" yaml:"imposing_country_name"`
	TargetedCountryCodes []string `json:"targeted_country_codes" yaml:"targeted_country_codes"`
	TargetedCountryNames []string `json:"targeted_country_names" yaml:"targeted_country_names"`

	MeasureType        string   `json:"measure_type,omitempty" yaml:"measure_type,omitempty"`
	MainTariffRate     *float64 `json:"main_tariff_rate,omitempty" yaml:"main_tariff_rate,omitempty"`
	PreviousTariffRate *float64 `json:"previous_tariff_rate,omitempty" yaml:"previous_tariff_rate,omitempty"`
	TariffRates        []string `json:"tariff_rates" yaml:"tariff_rates"`

	AnnouncementDate   *Date `json:"announcement_date,omitempty" yaml:"announcement_date,omitempty"`
	ImplementationDate *Date `json:"implementation_date,omitempty" yaml:"implementation_date,omitempty"`
	ExpirationDate     *Date `json:"expiration_date,omitempty" yaml:"expiration_date,omitempty"`

	AffectedIndustries  []string `json:"affected_industries" yaml:"affected_industries"`
	AffectedProducts    []string `json:"affected_products" yaml:"affected_products"`
	HSProductCategories []string `json:"hs_product_categories" yaml:"hs_product_categories"`

	EstimatedTradeValue *float64 `json:"estimated_trade_value,omitempty" yaml:"estimated_trade_value,omitempty"`

	LegalBasis      *string `json:"legal_basis,omitempty" yaml:"legal_basis,omitempty"`
	PolicyObjective *string `json:"policy_objective,omitempty" yaml:"policy_objective,omitempty"`
	Exemptions      *string `json:"exemptions,omitempty" yaml:"exemptions,omitempty"`
	Summary         *string `json:"summary,omitempty" yaml:"summary,omitempty"`

	SourceArticles []Article      `json:"source_articles" yaml:"source_articles"`
	ParseWarnings  []ParseWarning `json:"parse_warnings,omitempty" yaml:"parse_warnings,omitempty"`
}

// Article is a news article an event was extracted from.
type Article struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	Media         string `json:"media,omitempty" yaml:"media,omitempty"`
	SourceName    string `json:"name_source,omitempty" yaml:"name_source,omitempty"`
	PublishedDate *Date  `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Language      string `json:"language,omitempty" yaml:"language,omitempty"`
}

// ParseWarning records a field that could not be interpreted. The field is
// treated as absent and the event is kept.
type ParseWarning struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// HasWarning reports whether a warning was recorded for field.
func (e *TariffEvent) HasWarning(field string) bool {
	for _, w := range e.ParseWarnings {
		if w.Field == field {
			return true
		}
	}
	return false
}

// ProductKeys returns the union of affected products and HS categories,
// lower-cased, for overlap checks.
func (e *TariffEvent) ProductKeys() []string {
	out := make([]string, 0, len(e.AffectedProducts)+len(e.HSProductCategories))
	for _, p := range e.AffectedProducts {
		out = append(out, strings.ToLower(p))
	}
	for _, p := range e.HSProductCategories {
		out = append(out, strings.ToLower(p))
	}
	return out
}

// Relevance returns the relevance grade or "" when absent.
func (e *TariffEvent) Relevance() string {
	return Deref(e.RelevanceScore)
}

// SummaryText returns the summary or "" when absent.
func (e *TariffEvent) SummaryText() string {
	return Deref(e.Summary)
}

// DuplicateGroup is a set of events describing the same real-world tariff
// action. It is recomputed on every detector run and never persisted.
type DuplicateGroup struct {
	EventIDs    []string `json:"event_ids" yaml:"event_ids"`
	CanonicalID string   `json:"canonical_id" yaml:"canonical_id"`
}

// Size returns the number of events in the group.
func (g DuplicateGroup) Size() int {
	return len(g.EventIDs)
}

// Duplicates returns the non-canonical members of the group.
func (g DuplicateGroup) Duplicates() []string {
	out := make([]string, 0, len(g.EventIDs)-1)
	for _, id := range g.EventIDs {
		if id != g.CanonicalID {
			out = append(out, id)
		}
	}
	return out
}
