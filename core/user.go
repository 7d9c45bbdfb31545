package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Role classifies an identity at first authentication and never changes
// afterwards.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleCandidate Role = "candidate"
)

// ParseRole validates a role string supplied by a client.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RoleOrganizer:
		return RoleOrganizer, nil
	case RoleCandidate:
		return RoleCandidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// User binds a wallet address to a role and the current single-use nonce.
// The address is the unique key and is always stored lowercase.
type User struct {
	ID        string
	Address   string
	Nonce     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeAddress lowercases a wallet address so lookups are
// case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NewNonce returns a fresh random challenge value, 16 bytes hex-encoded.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ChallengeMessage is the exact string a wallet signs to authenticate.
func ChallengeMessage(nonce string) string {
	return "Login to DeLinked: " + nonce
}
