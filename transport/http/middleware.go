package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

// sessionKey is the gin context key the auth middleware stores the verified
// session under.
const sessionKey = "session"

// AuthMiddleware validates the bearer token on each protected request and
// attaches the decoded session to the context.
func AuthMiddleware(tokenizer ports.Tokenizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token, authorization denied"})
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		session, err := tokenizer.TokenToSession(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			msg := "token is not valid"
			if errors.Is(err, core.ErrTokenExpired) {
				msg = "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireRole layers on top of AuthMiddleware and rejects sessions whose
// role does not match.
func RequireRole(role core.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if session.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied: not " + articleFor(role)})
			return
		}
		c.Next()
	}
}

// SessionFromContext returns the session attached by AuthMiddleware, or nil.
func SessionFromContext(c *gin.Context) *core.Session {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil
	}
	session, ok := v.(*core.Session)
	if !ok {
		return nil
	}
	return session
}

func articleFor(role core.Role) string {
	if role == core.RoleOrganizer {
		return "an organizer"
	}
	return "a candidate"
}
