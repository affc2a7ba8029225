package core

import (
	"strings"
	"testing"
)

func TestEntryValidate(t *testing.T) {
	good := []Entry{
		{Food: "Tavuk", Calories: 650},
		{Food: "Su", Calories: 0},
	}
	for i, e := range good {
		if err := e.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	bads := []Entry{
		{Food: "", Calories: 100},
		{Food: "   ", Calories: 100},
		{Food: "Elma", Calories: -1},
		{Food: strings.Repeat("a", 101), Calories: 10},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestLedgerDay(t *testing.T) {
	l := Ledger{
		"2024-03-04": {{Food: "Tavuk", Calories: 650}},
	}

	rec := l.Day("2024-03-04")
	if len(rec) != 1 || rec[0].Food != "Tavuk" {
		t.Fatalf("unexpected record %v", rec)
	}

	// Returned record is a copy, not an aliased slice.
	rec[0].Calories = 1
	if l["2024-03-04"][0].Calories != 650 {
		t.Fatal("Day must not alias ledger storage")
	}

	if got := l.Day("2024-01-01"); len(got) != 0 {
		t.Fatalf("absent day should be empty, got %v", got)
	}
}

func TestLedgerClone(t *testing.T) {
	l := Ledger{"2024-03-04": {{Food: "Muz", Calories: 100}}}
	cp := l.Clone()
	cp["2024-03-04"][0].Calories = 999
	cp["2024-03-05"] = DayRecord{{Food: "Elma", Calories: 80}}

	if l["2024-03-04"][0].Calories != 100 {
		t.Fatal("clone must not share entry storage")
	}
	if _, ok := l["2024-03-05"]; ok {
		t.Fatal("clone must not share the map")
	}

	var nilLedger Ledger
	if got := nilLedger.Clone(); got == nil {
		t.Fatal("cloning a nil ledger should give an empty ledger")
	}
}

func TestProfileGoalOrDefault(t *testing.T) {
	if got := (Profile{}).GoalOrDefault(); got != DefaultCalorieGoal {
		t.Fatalf("expected default goal, got %d", got)
	}
	if got := (Profile{CalorieGoal: -5}).GoalOrDefault(); got != DefaultCalorieGoal {
		t.Fatalf("expected default goal for negative value, got %d", got)
	}
	if got := (Profile{CalorieGoal: 1800}).GoalOrDefault(); got != 1800 {
		t.Fatalf("expected 1800, got %d", got)
	}
}
