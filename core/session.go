package core

import "time"

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is the identity a signed token asserts. Nothing is persisted
// server-side; possession of a validly signed, unexpired token is the whole
// proof.
type Session struct {
	ID        string // token ID (jti)
	UserID    string
	Address   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
