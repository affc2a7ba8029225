package http

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"kalori/internal/core"
)

// Turkish weekday labels, Monday first, matching the week window order.
var weekdayLabels = [7]string{"Pzt", "Sal", "Çar", "Per", "Cum", "Cmt", "Paz"}

type entryRequest struct {
	Food     string `json:"food"`
	Calories int    `json:"calories"`
}

type dayResponse struct {
	Date    string         `json:"date"`
	Entries core.DayRecord `json:"entries"`
	Total   int            `json:"total"`
	Goal    int            `json:"goal"`
	Status  core.DayStatus `json:"status"`
}

// Mutation responses echo the updated record without classifying it; the
// goal and status come from the day view, which reads the profile.
type mutationResponse struct {
	Date    string         `json:"date"`
	Entries core.DayRecord `json:"entries"`
	Total   int            `json:"total"`
}

type weekDay struct {
	Date   string         `json:"date"`
	Label  string         `json:"label"`
	Total  int            `json:"total"`
	Status core.DayStatus `json:"status"`
}

type weekResponse struct {
	Days []weekDay `json:"days"`
	Goal int       `json:"goal"`
}

type statsResponse struct {
	Days          []weekDay `json:"days"`
	WeeklyAverage int       `json:"weekly_average"`
	OverGoalDays  int       `json:"over_goal_days"`
	Goal          int       `json:"goal"`
	TargetWeight  float64   `json:"target_weight"`
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	dateKey := r.PathValue("date")
	if _, err := core.ParseDateKey(dateKey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	uid := userID(r)

	// Fetch the day and the profile concurrently, they live in separate
	// documents.
	var (
		rec  core.DayRecord
		prof core.Profile
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rec, err = s.engine.GetDayRecord(ctx, uid, dateKey)
		return err
	})
	g.Go(func() error {
		var err error
		prof, err = s.profiles.Get(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	goal := prof.GoalOrDefault()
	writeJSON(w, http.StatusOK, dayResponse{
		Date:    dateKey,
		Entries: rec,
		Total:   core.DayTotal(rec),
		Goal:    goal,
		Status:  core.StatusFor(rec, goal),
	})
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	dateKey := r.PathValue("date")

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	uid := userID(r)
	rec, err := s.engine.AddEntry(r.Context(), uid, dateKey, core.Entry{
		Food:     req.Food,
		Calories: req.Calories,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logs.LogEntryAdded(r.Context(), uid, dateKey, req.Food, req.Calories)

	writeJSON(w, http.StatusCreated, mutationResponse{
		Date:    dateKey,
		Entries: rec,
		Total:   core.DayTotal(rec),
	})
}

func (s *Server) handleReplaceEntry(w http.ResponseWriter, r *http.Request) {
	dateKey := r.PathValue("date")

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry index")
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	uid := userID(r)
	rec, err := s.engine.ReplaceEntry(r.Context(), uid, dateKey, index, core.Entry{
		Food:     req.Food,
		Calories: req.Calories,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logs.LogEntryReplaced(r.Context(), uid, dateKey, index, req.Food, req.Calories)

	writeJSON(w, http.StatusOK, mutationResponse{
		Date:    dateKey,
		Entries: rec,
		Total:   core.DayTotal(rec),
	})
}

// refDate picks the week reference from the date query parameter, defaulting
// to today.
func refDate(r *http.Request) (time.Time, error) {
	if v := r.URL.Query().Get("date"); v != "" {
		return core.ParseDateKey(v)
	}
	return time.Now().UTC(), nil
}

// loadLedgerAndProfile fetches both documents concurrently for the
// aggregation views.
func (s *Server) loadLedgerAndProfile(r *http.Request) (core.Ledger, core.Profile, error) {
	uid := userID(r)

	var (
		l    core.Ledger
		prof core.Profile
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		l, err = s.engine.GetLedger(ctx, uid)
		return err
	})
	g.Go(func() error {
		var err error
		prof, err = s.profiles.Get(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, core.Profile{}, err
	}
	return l, prof, nil
}

func weekDays(l core.Ledger, window [7]string, goal int) []weekDay {
	days := make([]weekDay, 0, len(window))
	for i, key := range window {
		rec := l.Day(key)
		days = append(days, weekDay{
			Date:   key,
			Label:  weekdayLabels[i],
			Total:  core.DayTotal(rec),
			Status: core.StatusFor(rec, goal),
		})
	}
	return days
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	l, prof, err := s.loadLedgerAndProfile(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	goal := prof.GoalOrDefault()
	writeJSON(w, http.StatusOK, weekResponse{
		Days: weekDays(l, core.WeekWindow(ref), goal),
		Goal: goal,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	l, prof, err := s.loadLedgerAndProfile(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	goal := prof.GoalOrDefault()
	window := core.WeekWindow(ref)

	writeJSON(w, http.StatusOK, statsResponse{
		Days:          weekDays(l, window, goal),
		WeeklyAverage: int(math.Round(core.WeeklyAverage(l, window))),
		OverGoalDays:  core.OverGoalDays(l, window, goal),
		Goal:          goal,
		TargetWeight:  prof.TargetWeight,
	})
}

type calendarResponse struct {
	Days map[string]core.DayStatus `json:"days"`
	Goal int                       `json:"goal"`
}

// handleCalendar classifies every logged date against the goal, so the
// calendar view can color the whole history in one request.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	l, prof, err := s.loadLedgerAndProfile(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	goal := prof.GoalOrDefault()
	writeJSON(w, http.StatusOK, calendarResponse{
		Days: core.CalendarStatuses(l, goal),
		Goal: goal,
	})
}

type profileResponse struct {
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	CalorieGoal  int     `json:"calorie_goal"`
	TargetWeight float64 `json:"target_weight"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.profiles.Get(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Name:         prof.Name,
		Image:        prof.Image,
		CalorieGoal:  prof.GoalOrDefault(),
		TargetWeight: prof.TargetWeight,
	})
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	prof := core.Profile{
		Name:         req.Name,
		Image:        req.Image,
		CalorieGoal:  req.CalorieGoal,
		TargetWeight: req.TargetWeight,
	}
	if err := s.profiles.Save(r.Context(), userID(r), prof); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Name:         prof.Name,
		Image:        prof.Image,
		CalorieGoal:  prof.GoalOrDefault(),
		TargetWeight: prof.TargetWeight,
	})
}
