package core

import (
	"math"
	"testing"
	"time"
)

func mustParse(t *testing.T, key string) time.Time {
	t.Helper()
	ts, err := ParseDateKey(key)
	if err != nil {
		t.Fatalf("parse %s: %v", key, err)
	}
	return ts
}

func TestDayTotal(t *testing.T) {
	if got := DayTotal(nil); got != 0 {
		t.Fatalf("nil record total = %d", got)
	}
	if got := DayTotal(DayRecord{}); got != 0 {
		t.Fatalf("empty record total = %d", got)
	}

	rec := DayRecord{
		{Food: "Tavuk", Calories: 650},
		{Food: "Pilav", Calories: 500},
	}
	if got := DayTotal(rec); got != 1150 {
		t.Fatalf("expected 1150, got %d", got)
	}
}

func TestStatusForTieBreak(t *testing.T) {
	goal := 2000
	at := DayRecord{{Food: "Menemen", Calories: goal}}
	over := DayRecord{{Food: "Menemen", Calories: goal + 1}}

	if got := StatusFor(nil, goal); got != StatusNoData {
		t.Fatalf("empty day status = %s", got)
	}
	// Equal to goal counts as under; only strictly greater is over.
	if got := StatusFor(at, goal); got != StatusUnderGoal {
		t.Fatalf("total == goal status = %s", got)
	}
	if got := StatusFor(over, goal); got != StatusOverGoal {
		t.Fatalf("total == goal+1 status = %s", got)
	}
}

func TestDailyScenario(t *testing.T) {
	goal := 2000
	rec := DayRecord{
		{Food: "Tavuk", Calories: 650},
		{Food: "Pilav", Calories: 500},
	}
	if DayTotal(rec) != 1150 || StatusFor(rec, goal) != StatusUnderGoal {
		t.Fatalf("expected 1150 under goal, got %d %s", DayTotal(rec), StatusFor(rec, goal))
	}

	rec = append(rec, Entry{Food: "Baklava", Calories: 900})
	if DayTotal(rec) != 2050 || StatusFor(rec, goal) != StatusOverGoal {
		t.Fatalf("expected 2050 over goal, got %d %s", DayTotal(rec), StatusFor(rec, goal))
	}
}

func TestWeeklyAggregation(t *testing.T) {
	window := [7]string{
		"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07",
		"2024-03-08", "2024-03-09", "2024-03-10",
	}
	// Entries only on Monday and Wednesday.
	l := Ledger{
		"2024-03-04": {{Food: "Çorba", Calories: 1200}},
		"2024-03-06": {{Food: "İskender", Calories: 2500}},
	}
	goal := 2000

	avg := WeeklyAverage(l, window)
	if want := float64(1200+2500) / 7; math.Abs(avg-want) > 1e-9 {
		t.Fatalf("expected average %.4f, got %.4f", want, avg)
	}

	if got := OverGoalDays(l, window, goal); got != 1 {
		t.Fatalf("expected 1 over-goal day, got %d", got)
	}

	statuses := WeeklyStatuses(l, window, goal)
	if len(statuses) != 7 {
		t.Fatalf("expected 7 statuses, got %d", len(statuses))
	}
	if statuses["2024-03-04"] != StatusUnderGoal {
		t.Fatalf("monday status = %s", statuses["2024-03-04"])
	}
	if statuses["2024-03-06"] != StatusOverGoal {
		t.Fatalf("wednesday status = %s", statuses["2024-03-06"])
	}
	for _, key := range []string{"2024-03-05", "2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10"} {
		if statuses[key] != StatusNoData {
			t.Fatalf("%s status = %s", key, statuses[key])
		}
	}
}

func TestCalendarStatuses(t *testing.T) {
	goal := 2000
	l := Ledger{
		"2024-02-26": {{Food: "Mantı", Calories: 2100}},
		"2024-03-04": {{Food: "Çorba", Calories: 1200}},
		"2024-03-20": {},
	}

	statuses := CalendarStatuses(l, goal)
	if len(statuses) != 3 {
		t.Fatalf("expected a status per logged date, got %v", statuses)
	}
	if statuses["2024-02-26"] != StatusOverGoal {
		t.Fatalf("2024-02-26 status = %s", statuses["2024-02-26"])
	}
	if statuses["2024-03-04"] != StatusUnderGoal {
		t.Fatalf("2024-03-04 status = %s", statuses["2024-03-04"])
	}
	if statuses["2024-03-20"] != StatusNoData {
		t.Fatalf("empty record status = %s", statuses["2024-03-20"])
	}

	if got := CalendarStatuses(Ledger{}, goal); len(got) != 0 {
		t.Fatalf("empty ledger should have no statuses, got %v", got)
	}
}

func TestAggregationDoesNotMutateLedger(t *testing.T) {
	window := WeekWindow(mustParse(t, "2024-03-06"))
	l := Ledger{"2024-03-04": {{Food: "Elma", Calories: 80}}}

	WeeklyStatuses(l, window, 2000)
	WeeklyAverage(l, window)
	OverGoalDays(l, window, 2000)

	if len(l) != 1 || len(l["2024-03-04"]) != 1 {
		t.Fatalf("aggregation mutated the ledger: %v", l)
	}
}
