package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

// The Redis adapter shares these semantics but needs a live server, so it is
// exercised in integration environments rather than here.
func storesUnderTest(t *testing.T) map[string]ports.UserStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "delinked.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ports.UserStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func newTestUser(role core.Role) (*core.User, *core.Profile) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := &core.User{
		ID:        uuid.New().String(),
		Address:   "0x" + uuid.New().String()[:8] + "00000000000000000000000000000000",
		Nonce:     "nonce-1",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return u, core.NewProfile(u.ID, role, now)
}

func TestCreateAndLookup(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, p := newTestUser(core.RoleOrganizer)

			require.NoError(t, s.CreateUser(ctx, u, p))

			byAddr, err := s.UserByAddress(ctx, u.Address)
			require.NoError(t, err)
			assert.Equal(t, u.ID, byAddr.ID)
			assert.Equal(t, u.Nonce, byAddr.Nonce)
			assert.Equal(t, core.RoleOrganizer, byAddr.Role)

			byID, err := s.UserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, u.Address, byID.Address)

			// Profile was created atomically alongside the user, empty.
			prof, err := s.Profile(ctx, u.ID)
			require.NoError(t, err)
			assert.False(t, prof.Completed)
			assert.Empty(t, prof.Name)
			assert.Equal(t, core.RoleOrganizer, prof.Role)

			// Duplicate address is rejected.
			dup, dupProf := newTestUser(core.RoleCandidate)
			dup.Address = u.Address
			assert.ErrorIs(t, s.CreateUser(ctx, dup, dupProf), core.ErrAlreadyExists)

			_, err = s.UserByAddress(ctx, "0xunknown")
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.UserByID(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSetNonce(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, p := newTestUser(core.RoleCandidate)
			require.NoError(t, s.CreateUser(ctx, u, p))

			require.NoError(t, s.SetNonce(ctx, u.Address, "nonce-2"))
			got, err := s.UserByAddress(ctx, u.Address)
			require.NoError(t, err)
			assert.Equal(t, "nonce-2", got.Nonce)

			assert.ErrorIs(t, s.SetNonce(ctx, "0xunknown", "x"), core.ErrNotFound)
		})
	}
}

func TestConsumeNonce(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, p := newTestUser(core.RoleCandidate)
			require.NoError(t, s.CreateUser(ctx, u, p))

			// First consumption with the stored value succeeds and rotates.
			require.NoError(t, s.ConsumeNonce(ctx, u.Address, "nonce-1", "nonce-2"))
			got, err := s.UserByAddress(ctx, u.Address)
			require.NoError(t, err)
			assert.Equal(t, "nonce-2", got.Nonce)

			// Replaying the consumed value fails; the stored nonce is untouched.
			assert.ErrorIs(t, s.ConsumeNonce(ctx, u.Address, "nonce-1", "nonce-3"), core.ErrNonceMismatch)
			got, err = s.UserByAddress(ctx, u.Address)
			require.NoError(t, err)
			assert.Equal(t, "nonce-2", got.Nonce)

			assert.ErrorIs(t, s.ConsumeNonce(ctx, "0xunknown", "nonce-2", "x"), core.ErrNotFound)
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, p := newTestUser(core.RoleCandidate)
			require.NoError(t, s.CreateUser(ctx, u, p))

			prof, err := s.Profile(ctx, u.ID)
			require.NoError(t, err)

			prof.Apply(core.ProfileUpdate{
				Name:       "Bob",
				Email:      "bob@example.com",
				Skills:     []string{"go", "solidity"},
				Experience: 4,
			}, time.Now().UTC().Truncate(time.Millisecond))
			require.True(t, prof.Completed)
			require.NoError(t, s.SaveProfile(ctx, prof))

			got, err := s.Profile(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "Bob", got.Name)
			assert.Equal(t, []string{"go", "solidity"}, got.Skills)
			assert.Equal(t, 4, got.Experience)
			assert.True(t, got.Completed)

			_, err = s.Profile(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrNotFound)

			orphan := core.NewProfile("missing", core.RoleCandidate, time.Now())
			assert.ErrorIs(t, s.SaveProfile(ctx, orphan), core.ErrNotFound)
		})
	}
}
