package ports

import (
	"context"

	"github.com/delinked/delinked/core"
)

// UserStore persists identities and their profiles. Implementations must
// make CreateUser and ConsumeNonce atomic; no application-level locking is
// layered on top.
type UserStore interface {
	// CreateUser stores a new identity together with its empty profile in a
	// single atomic operation. Returns core.ErrAlreadyExists if the address
	// is taken.
	CreateUser(ctx context.Context, user *core.User, profile *core.Profile) error

	UserByAddress(ctx context.Context, address string) (*core.User, error)
	UserByID(ctx context.Context, id string) (*core.User, error)

	// SetNonce replaces the stored nonce for an existing identity.
	SetNonce(ctx context.Context, address, nonce string) error

	// ConsumeNonce atomically compares the stored nonce with presented and,
	// on match, replaces it with next. A stale value yields
	// core.ErrNonceMismatch, so at most one authenticate call per issued
	// nonce can succeed.
	ConsumeNonce(ctx context.Context, address, presented, next string) error

	Profile(ctx context.Context, userID string) (*core.Profile, error)
	SaveProfile(ctx context.Context, profile *core.Profile) error
}
