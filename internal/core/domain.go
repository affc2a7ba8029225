package core

import (
	"errors"
	"strings"
)

const (
	// DefaultCalorieGoal applies when a profile is missing or has no goal set.
	DefaultCalorieGoal = 2000

	maxFoodNameLength = 100
)

type (
	// Entry is a single logged food item.
	Entry struct {
		Food     string `json:"food"`
		Calories int    `json:"calories"`
	}

	// DayRecord is the ordered list of entries for one date key,
	// insertion order preserved.
	DayRecord []Entry

	// Ledger maps a date key ("2006-01-02") to that day's record.
	// One ledger per user.
	Ledger map[string]DayRecord

	// Profile holds the per-user goal plus display-only fields.
	Profile struct {
		Name         string  `json:"name,omitempty"`
		Image        string  `json:"image,omitempty"`
		CalorieGoal  int     `json:"calorieGoal,omitempty"`
		TargetWeight float64 `json:"targetWeight,omitempty"`
	}

	// DayStatus classifies a day's total against the goal.
	DayStatus string
)

const (
	// StatusNoData marks a day with no logged entries.
	StatusNoData DayStatus = "no_data"
	// StatusUnderGoal marks a day at or under the goal.
	StatusUnderGoal DayStatus = "under_goal"
	// StatusOverGoal marks a day strictly over the goal.
	StatusOverGoal DayStatus = "over_goal"
)

var (
	ErrEmptyFood        = errors.New("empty food name")
	ErrFoodTooLong      = errors.New("food name too long (max 100 characters)")
	ErrNegativeCalories = errors.New("negative calories")
)

// Validate rejects entries with an empty food name or negative calories.
// Zero calories is legal (water, tea).
func (e Entry) Validate() error {
	if len(strings.TrimSpace(e.Food)) == 0 {
		return ErrEmptyFood
	}
	if len(e.Food) > maxFoodNameLength {
		return ErrFoodTooLong
	}
	if e.Calories < 0 {
		return ErrNegativeCalories
	}
	return nil
}

// Day returns a copy of the record for key, nil-safe for absent days.
func (l Ledger) Day(key string) DayRecord {
	rec, ok := l[key]
	if !ok || len(rec) == 0 {
		return DayRecord{}
	}
	out := make(DayRecord, len(rec))
	copy(out, rec)
	return out
}

// Clone deep-copies the ledger so cached snapshots stay immutable.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return Ledger{}
	}
	out := make(Ledger, len(l))
	for key, rec := range l {
		cp := make(DayRecord, len(rec))
		copy(cp, rec)
		out[key] = cp
	}
	return out
}

// GoalOrDefault returns the configured calorie goal, or DefaultCalorieGoal
// when the profile has none.
func (p Profile) GoalOrDefault() int {
	if p.CalorieGoal <= 0 {
		return DefaultCalorieGoal
	}
	return p.CalorieGoal
}
