package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the identity fields a session
// token asserts.
type SessionClaims struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
	Role    string `json:"role"`
}
