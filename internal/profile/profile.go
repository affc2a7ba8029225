// Package profile reads and writes the per-user profile document: the
// calorie goal plus display-only fields. The goal is read fresh on every
// call; goal changes made on another device take effect on the next query.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kalori/internal/core"
	"kalori/internal/docstore"
)

var (
	// ErrNoUser is returned when a save has no user identity.
	ErrNoUser = errors.New("no user")
	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Service provides profile access over the document store.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Get returns the user's profile, or a zero profile when none exists yet.
// Callers use Profile.GoalOrDefault for the effective goal.
func (s *Service) Get(ctx context.Context, userID string) (core.Profile, error) {
	if userID == "" {
		return core.Profile{}, nil
	}

	doc, _, err := s.store.Read(ctx, docstore.CollectionProfiles, userID)
	if err != nil {
		return core.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if len(doc) == 0 {
		return core.Profile{}, nil
	}

	var p core.Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return core.Profile{}, fmt.Errorf("%w: corrupt profile document for %s: %v", docstore.ErrUnavailable, userID, err)
	}
	return p, nil
}

// Save stores the profile. Profile edits are last-write-wins by intent, so a
// version conflict is retried once against the fresh version before giving up.
func (s *Service) Save(ctx context.Context, userID string, p core.Profile) error {
	if userID == "" {
		return ErrNoUser
	}
	if p.CalorieGoal < 0 {
		return fmt.Errorf("%w: calorie goal must not be negative, got %d", ErrInvalidProfile, p.CalorieGoal)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, version, err := s.store.Read(ctx, docstore.CollectionProfiles, userID)
		if err != nil {
			return fmt.Errorf("read profile version: %w", err)
		}
		_, err = s.store.Write(ctx, docstore.CollectionProfiles, userID, body, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return fmt.Errorf("write profile: %w", err)
		}
	}
	return docstore.ErrConflict
}
