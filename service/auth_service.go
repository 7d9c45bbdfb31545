package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/internal/eth"
	"github.com/delinked/delinked/ports"
)

// AuthService orchestrates the challenge-response protocol: nonce issuance,
// signature verification, identity provisioning and session token issuance.
type AuthService struct {
	store     ports.UserStore
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	sessionTTL time.Duration
}

// NewAuthService creates a new authentication service.
func NewAuthService(store ports.UserStore, tokenizer ports.Tokenizer, eventPub ports.EventPublisher) *AuthService {
	return &AuthService{
		store:      store,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		logger:     slog.Default().With("component", "auth"),
		sessionTTL: core.DefaultSessionTTL,
	}
}

// WithSessionTTL overrides the default session lifetime.
func (s *AuthService) WithSessionTTL(ttl time.Duration) *AuthService {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
	return s
}

// NonceResult is the outcome of a nonce request.
type NonceResult struct {
	Nonce     string
	IsNewUser bool
	Role      core.Role // empty for new users
}

// UserSummary is the identity view returned to clients; it never carries the
// nonce.
type UserSummary struct {
	ID      string
	Address string
	Role    core.Role
}

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	Token     string
	User      UserSummary
	IsNewUser bool
}

// RequestNonce issues a challenge for an address. For an existing identity
// the fresh nonce replaces the stored one; for an unknown address the nonce
// is returned without being persisted, so unauthenticated probing cannot
// pre-register state.
func (s *AuthService) RequestNonce(ctx context.Context, address string) (*NonceResult, error) {
	address = core.NormalizeAddress(address)
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	nonce, err := core.NewNonce()
	if err != nil {
		return nil, err
	}

	user, err := s.store.UserByAddress(ctx, address)
	if errors.Is(err, core.ErrNotFound) {
		return &NonceResult{Nonce: nonce, IsNewUser: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	if err := s.store.SetNonce(ctx, address, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return &NonceResult{Nonce: nonce, Role: user.Role}, nil
}

// Authenticate verifies a signed challenge and issues a session token. A
// previously unseen address must supply a role and gets an identity plus an
// empty profile; for an existing identity the presented nonce is consumed
// atomically and any supplied role is ignored.
func (s *AuthService) Authenticate(ctx context.Context, address, signature, nonce, roleStr string) (*AuthResult, error) {
	address = core.NormalizeAddress(address)
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	if !eth.VerifyPersonal(address, core.ChallengeMessage(nonce), signature) {
		return nil, core.ErrInvalidSignature
	}

	next, err := core.NewNonce()
	if err != nil {
		return nil, err
	}

	user, err := s.store.UserByAddress(ctx, address)
	switch {
	case errors.Is(err, core.ErrNotFound):
		user, err = s.register(ctx, address, next, roleStr)
		if err != nil {
			return nil, err
		}
		result, err := s.issue(user, true)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, user, true)
		return result, nil

	case err != nil:
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	// Rotating through a compare-and-swap makes replay of the just-used
	// nonce fail: at most one authenticate call per issued nonce succeeds.
	if err := s.store.ConsumeNonce(ctx, address, nonce, next); err != nil {
		if errors.Is(err, core.ErrNonceMismatch) || errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNonceMismatch
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	result, err := s.issue(user, false)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, user, false)
	return result, nil
}

// register provisions an identity and its empty profile for a first
// authentication.
func (s *AuthService) register(ctx context.Context, address, nonce, roleStr string) (*core.User, error) {
	if roleStr == "" {
		return nil, core.ErrMissingRole
	}
	role, err := core.ParseRole(roleStr)
	if err != nil {
		return nil, core.ErrMissingRole
	}

	now := time.Now().UTC()
	user := &core.User{
		ID:        uuid.New().String(),
		Address:   address,
		Nonce:     nonce,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateUser(ctx, user, core.NewProfile(user.ID, role, now)); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			// Lost a race with a concurrent first authentication.
			return nil, core.ErrNonceMismatch
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *core.User, isNew bool) (*AuthResult, error) {
	now := time.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Address:   user.Address,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &AuthResult{
		Token:     token,
		User:      UserSummary{ID: user.ID, Address: user.Address, Role: user.Role},
		IsNewUser: isNew,
	}, nil
}

// notify publishes a lifecycle event; failures are logged, never surfaced,
// since the token is already issued.
func (s *AuthService) notify(ctx context.Context, user *core.User, registered bool) {
	if s.eventPub == nil {
		return
	}
	var err error
	if registered {
		err = s.eventPub.PublishRegistered(ctx, user)
	} else {
		err = s.eventPub.PublishAuthenticated(ctx, user)
	}
	if err != nil {
		s.logger.Warn("failed to publish auth event", "address", user.Address, "err", err)
	}
}

// CurrentUser re-fetches the identity behind a verified token claim. The
// identity may have been deleted after token issuance.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*UserSummary, error) {
	user, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return &UserSummary{ID: user.ID, Address: user.Address, Role: user.Role}, nil
}
