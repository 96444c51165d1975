// Package models provides domain models for the tariff tracker.
package models

import (
	"time"
)

// MeasureType is the category of a tariff action reported by the Events API.
// The set is open: values the API introduces later are kept verbatim.
type MeasureType string

const (
	MeasureNewTariff        MeasureType = "new tariff"
	MeasureTariffIncrease   MeasureType = "tariff increase"
	MeasureTariffReduction  MeasureType = "tariff reduction"
	MeasureRetaliatory      MeasureType = "retaliatory tariff"
	MeasureImportBan        MeasureType = "import ban"
	MeasureQuota            MeasureType = "quota"
	MeasureOtherRestriction MeasureType = "other trade restriction"
)

// KnownMeasureTypes lists the measure types offered by the query builder.
func KnownMeasureTypes() []MeasureType {
	return []MeasureType{
		MeasureNewTariff,
		MeasureTariffIncrease,
		MeasureTariffReduction,
		MeasureRetaliatory,
		MeasureImportBan,
		MeasureQuota,
		MeasureOtherRestriction,
	}
}

// Relevance is the API's relevance grade for an event.
type Relevance string

const (
	RelevanceHigh   Relevance = "High"
	RelevanceMedium Relevance = "Medium"
	RelevanceLow    Relevance = "Low"
)

// EventTypeTariffs is the only event type the tracker queries.
const EventTypeTariffs = "tariffs_v2"

// UnknownKey is the bucket used for events lacking a value along a dimension.
const UnknownKey = "unknown"

// Float returns a pointer to v. Used for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// FetchInfo describes where a batch of events came from.
type FetchInfo struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Pages     int       `json:"pages"`
	Cached    bool      `json:"cached"`
}
