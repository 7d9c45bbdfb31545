package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delinked/delinked/core"
)

func TestProfileGetAndUpdate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	result := f.login(t, "organizer")

	profiles := NewProfileService(f.store)

	profile, err := profiles.Get(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, profile.Completed)

	updated, err := profiles.Update(ctx, result.User.ID, core.ProfileUpdate{
		Name:             "Alice",
		OrganizationName: "Acme",
		Email:            "alice@example.com",
	})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	// The update persisted.
	profile, err = profiles.Get(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", profile.OrganizationName)
	assert.True(t, profile.Completed)

	// Replacing with partial data clears the rest and un-completes.
	updated, err = profiles.Update(ctx, result.User.ID, core.ProfileUpdate{Name: "Alice"})
	require.NoError(t, err)
	assert.False(t, updated.Completed)
	assert.Empty(t, updated.OrganizationName)
}

func TestProfileUpdateRejectsNegativeExperience(t *testing.T) {
	f := newAuthFixture(t)
	result := f.login(t, "candidate")

	profiles := NewProfileService(f.store)
	_, err := profiles.Update(context.Background(), result.User.ID, core.ProfileUpdate{Experience: -1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestProfileNotFound(t *testing.T) {
	f := newAuthFixture(t)
	profiles := NewProfileService(f.store)

	_, err := profiles.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = profiles.Update(context.Background(), "missing", core.ProfileUpdate{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
