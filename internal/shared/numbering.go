package shared

import (
	"fmt"
	"time"
)

// MonthBounds returns the first instant of the calendar month containing at
// and the first instant of the following month, in at's location.
func MonthBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 1, 0)
}

// DayBounds returns midnight of at's day and midnight of the next day.
func DayBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 0, 1)
}

// SequenceNumber renders PREFIX-YYYYMM-NNNN, e.g. INV-202510-0001.
func SequenceNumber(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("200601"), seq)
}

// FallbackNumber renders PREFIX-<epoch millis> for when the monthly sequence
// cannot be read.
func FallbackNumber(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, at.UnixMilli())
}

// DateLayout is the calendar date format accepted in query strings.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD value in loc. An empty value yields the zero time.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, value, loc)
}
