package store

import (
	"context"
	"sync"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

// MemoryStore is an in-memory implementation of the UserStore interface,
// used in tests and single-process development setups.
type MemoryStore struct {
	mu       sync.RWMutex
	byAddr   map[string]*core.User
	byID     map[string]string // user id -> address
	profiles map[string]*core.Profile
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() ports.UserStore {
	return &MemoryStore{
		byAddr:   make(map[string]*core.User),
		byID:     make(map[string]string),
		profiles: make(map[string]*core.Profile),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *core.User, profile *core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddr[user.Address]; exists {
		return core.ErrAlreadyExists
	}

	u := *user
	p := cloneProfile(profile)
	s.byAddr[u.Address] = &u
	s.byID[u.ID] = u.Address
	s.profiles[u.ID] = p
	return nil
}

func (s *MemoryStore) UserByAddress(ctx context.Context, address string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byAddr[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *s.byAddr[addr]
	return &out, nil
}

func (s *MemoryStore) SetNonce(ctx context.Context, address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byAddr[address]
	if !ok {
		return core.ErrNotFound
	}
	u.Nonce = nonce
	return nil
}

func (s *MemoryStore) ConsumeNonce(ctx context.Context, address, presented, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byAddr[address]
	if !ok {
		return core.ErrNotFound
	}
	if u.Nonce != presented {
		return core.ErrNonceMismatch
	}
	u.Nonce = next
	return nil
}

func (s *MemoryStore) Profile(ctx context.Context, userID string) (*core.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, profile *core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.UserID]; !ok {
		return core.ErrNotFound
	}
	s.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func cloneProfile(p *core.Profile) *core.Profile {
	out := *p
	if p.Skills != nil {
		out.Skills = append([]string(nil), p.Skills...)
	}
	return &out
}
