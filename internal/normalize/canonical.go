package normalize

import (
	"strconv"
	"strings"

	"tariff-tracker/internal/models"
)

// Canonicalize rewrites events in place into canonical form: trimmed text,
// upper-case country codes, de-duplicated sets, names paired with codes and
// the date ordering check. Applying it twice is the same as applying it once.
func Canonicalize(events []models.TariffEvent) {
	for i := range events {
		canonicalizeEvent(&events[i])
	}
}

func canonicalizeEvent(ev *models.TariffEvent) {
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.EventType = strings.TrimSpace(ev.EventType)
	ev.GlobalEventType = strings.TrimSpace(ev.GlobalEventType)
	ev.MeasureType = strings.TrimSpace(ev.MeasureType)

	ev.ImposingCountryCode = strings.ToUpper(strings.TrimSpace(ev.ImposingCountryCode))
	ev.ImposingCountryName = strings.TrimSpace(ev.ImposingCountryName)
	if ev.ImposingCountryCode == "" && ev.ImposingCountryName != "" {
		if code, ok := CountryCode(ev.ImposingCountryName); ok {
			ev.ImposingCountryCode = code
		}
	}
	if ev.ImposingCountryName == "" && ev.ImposingCountryCode != "" {
		ev.ImposingCountryName = CountryName(ev.ImposingCountryCode)
	}

	pairTargets(ev)

	ev.TariffRates = dedupe(ev.TariffRates)
	ev.AffectedIndustries = dedupe(ev.AffectedIndustries)
	ev.AffectedProducts = dedupe(ev.AffectedProducts)
	ev.HSProductCategories = dedupe(ev.HSProductCategories)

	ev.RelevanceScore = trimOptional(ev.RelevanceScore)
	ev.LegalBasis = trimOptional(ev.LegalBasis)
	ev.PolicyObjective = trimOptional(ev.PolicyObjective)
	ev.Exemptions = trimOptional(ev.Exemptions)
	ev.Summary = trimOptional(ev.Summary)

	if ev.SourceArticles == nil {
		ev.SourceArticles = []models.Article{}
	}

	dropInvalidRate(ev, "main_tariff_rate", &ev.MainTariffRate)
	dropInvalidRate(ev, "previous_tariff_rate", &ev.PreviousTariffRate)
	if ev.EstimatedTradeValue != nil && !finite(*ev.EstimatedTradeValue) {
		addWarning(ev, "estimated_trade_value", formatFloat(*ev.EstimatedTradeValue))
		ev.EstimatedTradeValue = nil
	}

	// Both dates parsed, so the warning is filed apart from the date fields.
	if ev.AnnouncementDate != nil && ev.ImplementationDate != nil &&
		ev.ImplementationDate.Before(*ev.AnnouncementDate) {
		addWarning(ev, DateOrderField, "implementation "+ev.ImplementationDate.String()+" before announcement "+ev.AnnouncementDate.String())
	}

	ev.ParseWarnings = dedupeWarnings(ev.ParseWarnings)
}

// pairTargets keeps targeted codes and names the same length and order.
// Codes win; a missing name is filled from the country table, and a name
// with no resolvable code is dropped with a warning.
func pairTargets(ev *models.TariffEvent) {
	codes := make([]string, 0, len(ev.TargetedCountryCodes))
	names := make([]string, 0, len(ev.TargetedCountryCodes))
	seen := make(map[string]bool)

	add := func(code, name string) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		if name == "" {
			name = CountryName(code)
		}
		codes = append(codes, code)
		names = append(names, name)
	}

	if len(ev.TargetedCountryCodes) > 0 {
		for i, c := range ev.TargetedCountryCodes {
			name := ""
			if i < len(ev.TargetedCountryNames) {
				name = strings.TrimSpace(ev.TargetedCountryNames[i])
			}
			add(strings.ToUpper(strings.TrimSpace(c)), name)
		}
	} else {
		for _, n := range ev.TargetedCountryNames {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			code, ok := CountryCode(n)
			if !ok {
				addWarning(ev, "targeted_country_names", n)
				continue
			}
			add(code, n)
		}
	}

	ev.TargetedCountryCodes = codes
	ev.TargetedCountryNames = names
}

// dedupe trims, drops empty entries and keeps the first occurrence of each
// value. It never returns nil.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	return models.String(strings.TrimSpace(*s))
}

func addWarning(ev *models.TariffEvent, field, value string) {
	ev.ParseWarnings = append(ev.ParseWarnings, models.ParseWarning{Field: field, Value: value})
}

func dedupeWarnings(in []models.ParseWarning) []models.ParseWarning {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.ParseWarning, 0, len(in))
	seen := make(map[models.ParseWarning]bool, len(in))
	for _, w := range in {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DateOrderField keys the warning for an implementation date that precedes
// the announcement date.
const DateOrderField = "date_order"

// dropInvalidRate clears a negative or non-finite rate and records it.
func dropInvalidRate(ev *models.TariffEvent, field string, rate **float64) {
	if *rate == nil {
		return
	}
	if r := **rate; r < 0 || !finite(r) {
		addWarning(ev, field, formatFloat(r))
		*rate = nil
	}
}
