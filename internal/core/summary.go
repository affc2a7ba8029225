package core

// Aggregation over a ledger snapshot. These functions never mutate the
// ledger; every screen that classifies a day against the goal goes through
// StatusFor so the over/under tie-break exists in exactly one place.

// DayTotal sums the calories of a day record. Zero for empty or absent days.
func DayTotal(rec DayRecord) int {
	total := 0
	for _, e := range rec {
		total += e.Calories
	}
	return total
}

// StatusFor classifies one day. A day with no entries has no status, and a
// total equal to the goal still counts as under: only a strictly greater
// total is over goal.
func StatusFor(rec DayRecord, goal int) DayStatus {
	if len(rec) == 0 {
		return StatusNoData
	}
	if DayTotal(rec) > goal {
		return StatusOverGoal
	}
	return StatusUnderGoal
}

// WeeklyStatuses classifies each day of the window.
func WeeklyStatuses(l Ledger, window [7]string, goal int) map[string]DayStatus {
	statuses := make(map[string]DayStatus, len(window))
	for _, key := range window {
		statuses[key] = StatusFor(l[key], goal)
	}
	return statuses
}

// CalendarStatuses classifies every logged day of the ledger, keyed by date.
// Unlike the week window this spans the ledger's whole history.
func CalendarStatuses(l Ledger, goal int) map[string]DayStatus {
	statuses := make(map[string]DayStatus, len(l))
	for key, rec := range l {
		statuses[key] = StatusFor(rec, goal)
	}
	return statuses
}

// WeeklyAverage is the mean daily intake across the whole window. Days
// without entries stay in the denominator: the average measures adherence
// over the week, not just over logged days.
func WeeklyAverage(l Ledger, window [7]string) float64 {
	total := 0
	for _, key := range window {
		total += DayTotal(l[key])
	}
	return float64(total) / float64(len(window))
}

// OverGoalDays counts the days of the window that exceeded the goal.
func OverGoalDays(l Ledger, window [7]string, goal int) int {
	count := 0
	for _, key := range window {
		if StatusFor(l[key], goal) == StatusOverGoal {
			count++
		}
	}
	return count
}
