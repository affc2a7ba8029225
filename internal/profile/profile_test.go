package profile

import (
	"context"
	"testing"

	"kalori/internal/core"
	"kalori/internal/docstore"
	"kalori/internal/docstore/memory"
)

func TestGetAbsentProfile(t *testing.T) {
	s := NewService(memory.New())
	p, err := s.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p != (core.Profile{}) {
		t.Fatalf("expected zero profile, got %+v", p)
	}
	if p.GoalOrDefault() != core.DefaultCalorieGoal {
		t.Fatalf("expected default goal, got %d", p.GoalOrDefault())
	}
}

func TestSaveAndGet(t *testing.T) {
	s := NewService(memory.New())
	ctx := context.Background()

	want := core.Profile{Name: "Ayşe", Image: "🦊", CalorieGoal: 1800, TargetWeight: 62.5}
	if err := s.Save(ctx, "u1", want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	// Second save overwrites (last write wins).
	want.CalorieGoal = 2200
	if err := s.Save(ctx, "u1", want); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	got, err = s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CalorieGoal != 2200 {
		t.Fatalf("expected goal 2200, got %d", got.CalorieGoal)
	}
}

func TestSaveValidation(t *testing.T) {
	s := NewService(memory.New())
	ctx := context.Background()

	if err := s.Save(ctx, "", core.Profile{}); err == nil {
		t.Fatal("expected error for empty user")
	}
	if err := s.Save(ctx, "u1", core.Profile{CalorieGoal: -100}); err == nil {
		t.Fatal("expected error for negative goal")
	}
}

// conflictOnFirstWrite wraps the memory store and fails the first write.
type conflictOnFirstWrite struct {
	docstore.Store
	conflicts int
}

func (s *conflictOnFirstWrite) Write(ctx context.Context, collection, userID string, doc docstore.Document, expected docstore.Version) (docstore.Version, error) {
	if s.conflicts > 0 {
		s.conflicts--
		return 0, docstore.ErrConflict
	}
	return s.Store.Write(ctx, collection, userID, doc, expected)
}

func TestSaveRetriesOnConflict(t *testing.T) {
	s := NewService(&conflictOnFirstWrite{Store: memory.New(), conflicts: 1})
	if err := s.Save(context.Background(), "u1", core.Profile{CalorieGoal: 1900}); err != nil {
		t.Fatalf("save should retry once on conflict: %v", err)
	}
}
