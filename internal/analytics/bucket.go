package analytics

import (
	"fmt"
	"strings"
	"time"

	"tariff-tracker/internal/models"
)

// Bucket is a time granularity.
type Bucket string

const (
	Day     Bucket = "day"
	Week    Bucket = "week"
	Month   Bucket = "month"
	Quarter Bucket = "quarter"
	Year    Bucket = "year"
)

// ParseBucket validates a bucket name. Empty means month.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return Month, nil
	case Day, Week, Month, Quarter, Year:
		return b, nil
	}
	return "", fmt.Errorf("unknown time bucket %q (want day, week, month, quarter or year)", s)
}

// Start returns the first day of the bucket containing d. Weeks start on
// Monday.
func (b Bucket) Start(d models.Date) models.Date {
	switch b {
	case Day:
		return d
	case Week:
		offset := (int(d.Time().Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case Quarter:
		m := time.Month((int(d.Month)-1)/3*3 + 1)
		return models.NewDate(d.Year, m, 1)
	case Year:
		return models.NewDate(d.Year, time.January, 1)
	default:
		return models.NewDate(d.Year, d.Month, 1)
	}
}

// Key returns a sortable key for the bucket containing d.
func (b Bucket) Key(d models.Date) string {
	s := b.Start(d)
	switch b {
	case Day, Week:
		return s.String()
	case Quarter:
		return fmt.Sprintf("%04d-Q%d", s.Year, (int(s.Month)-1)/3+1)
	case Year:
		return fmt.Sprintf("%04d", s.Year)
	default:
		return fmt.Sprintf("%04d-%02d", s.Year, int(s.Month))
	}
}

// Label returns a human-readable bucket name.
func (b Bucket) Label(d models.Date) string {
	s := b.Start(d)
	switch b {
	case Week:
		year, week := s.Time().ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Month:
		return s.Time().Format("Jan 2006")
	default:
		return b.Key(d)
	}
}
