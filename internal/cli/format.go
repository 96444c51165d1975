package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tariff-tracker/internal/models"
	"tariff-tracker/pkg/utils"
)

// placeholder marks an absent value in tables.
const placeholder = "-"

// FormatDate formats an optional event date.
func FormatDate(d *models.Date) string {
	if d == nil || d.IsZero() {
		return placeholder
	}
	return d.String()
}

// FormatOptionalRate formats an optional tariff rate.
func FormatOptionalRate(r *float64) string {
	if r == nil {
		return placeholder
	}
	return utils.FormatRate(*r)
}

// FormatOptionalValue formats an optional trade value in compact dollars.
func FormatOptionalValue(v *float64) string {
	if v == nil {
		return placeholder
	}
	return utils.FormatCompact(*v)
}

// FormatDecimal formats an exact dollar sum compactly.
func FormatDecimal(d decimal.Decimal) string {
	return utils.FormatCompact(d.InexactFloat64())
}

// FormatList joins values for a table cell.
func FormatList(values []string) string {
	if len(values) == 0 {
		return placeholder
	}
	return strings.Join(values, ", ")
}

// FormatText returns s or the placeholder when s is empty.
func FormatText(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// FormatCountry formats a country as "Name (CODE)".
func FormatCountry(code, name string) string {
	switch {
	case code == "" && name == "":
		return placeholder
	case code == "":
		return name
	case name == "" || name == code:
		return code
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatTimestamp formats a wall-clock time, or the placeholder when zero.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.Local().Format("2006-01-02 15:04")
}

// FormatAge formats how long ago t was relative to now.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatDuration(now.Sub(t)) + " ago"
}

// ShortID shortens an identifier for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
