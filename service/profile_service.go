package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

// ProfileService reads and updates profiles for both roles. One service
// parameterized by the profile's role tag replaces per-role controller
// copies.
type ProfileService struct {
	store ports.UserStore
}

// NewProfileService creates a new profile service.
func NewProfileService(store ports.UserStore) *ProfileService {
	return &ProfileService{store: store}
}

// Get returns the profile belonging to an identity.
func (s *ProfileService) Get(ctx context.Context, userID string) (*core.Profile, error) {
	profile, err := s.store.Profile(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return profile, nil
}

// Update replaces the role-relevant fields of a profile and recomputes its
// completeness. Conflicting writes are serialized by the storage engine; no
// extra locking here.
func (s *ProfileService) Update(ctx context.Context, userID string, update core.ProfileUpdate) (*core.Profile, error) {
	if update.Experience < 0 {
		return nil, fmt.Errorf("%w: experience must be non-negative", core.ErrInvalidInput)
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.Apply(update, time.Now().UTC())

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return profile, nil
}
