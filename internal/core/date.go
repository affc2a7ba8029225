// Package core provides the calorie ledger domain: entries, day records,
// date/week canonicalization and the pure aggregation helpers every view
// (dashboard, calendar, stats, day detail) derives from.
//
// All date keys are computed in UTC. The mobile clients historically built
// keys with toISOString(), which is UTC as well; keeping one reference zone
// here is what prevents off-by-one-day drift between client and server.
package core

import (
	"fmt"
	"time"
)

// dateKeyLayout is the canonical "YYYY-MM-DD" form used as ledger keys.
const dateKeyLayout = "2006-01-02"

// DateKey canonicalizes an instant to its UTC date key.
func DateKey(t time.Time) string {
	return t.UTC().Format(dateKeyLayout)
}

// ParseDateKey parses a canonical date key back to a UTC midnight instant.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", s, err)
	}
	return t, nil
}

// WeekWindow returns the seven date keys of the Monday-start week containing
// the reference instant. Sunday counts as the last day of its week, so the
// window for a Sunday starts on the previous Monday. Every week boundary in
// the service goes through this function.
func WeekWindow(ref time.Time) [7]string {
	day := ref.UTC()
	// time.Weekday has Sunday == 0; shift so Monday == 0 and Sunday == 6.
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)

	var window [7]string
	for i := 0; i < 7; i++ {
		window[i] = DateKey(monday.AddDate(0, 0, i))
	}
	return window
}
