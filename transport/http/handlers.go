package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/obs"
	"github.com/delinked/delinked/service"
)

// AuthHandlers contains HTTP handlers for the auth endpoints.
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// NonceResponse is the body of a successful nonce request.
type NonceResponse struct {
	Nonce     string `json:"nonce"`
	IsNewUser bool   `json:"isNewUser"`
	Role      string `json:"role,omitempty"`
}

// AuthenticateRequest is the body of an authenticate call. Role is required
// only for previously unseen addresses.
type AuthenticateRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
	Role      string `json:"role"`
}

// UserResponse is the identity view returned to clients.
type UserResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// AuthenticateResponse is the body of a successful authentication.
type AuthenticateResponse struct {
	Token     string       `json:"token"`
	User      UserResponse `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

// Nonce handles GET /auth/nonce/:address.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	result, err := h.authService.RequestNonce(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, NonceResponse{
		Nonce:     result.Nonce,
		IsNewUser: result.IsNewUser,
		Role:      string(result.Role),
	})
}

// Authenticate handles POST /auth/authenticate.
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address, signature and nonce are required"})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), req.Address, req.Signature, req.Nonce, req.Role)
	if err != nil {
		status, msg, outcome := mapAuthError(err)
		obs.CountAuthAttempt(outcome)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	obs.CountAuthAttempt("success")
	c.JSON(http.StatusOK, AuthenticateResponse{
		Token:     result.Token,
		User:      userResponse(result.User),
		IsNewUser: result.IsNewUser,
	})
}

// Me handles GET /auth/me.
func (h *AuthHandlers) Me(c *gin.Context) {
	session := SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userResponse(*user)})
}

func userResponse(u service.UserSummary) UserResponse {
	return UserResponse{ID: u.ID, Address: u.Address, Role: string(u.Role)}
}

func mapAuthError(err error) (status int, msg string, outcome string) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusBadRequest, err.Error(), "invalid_address"
	case errors.Is(err, core.ErrMissingRole):
		return http.StatusBadRequest, core.ErrMissingRole.Error(), "missing_role"
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature", "invalid_signature"
	case errors.Is(err, core.ErrNonceMismatch):
		return http.StatusUnauthorized, "nonce has already been consumed", "stale_nonce"
	default:
		return http.StatusInternalServerError, "server error", "error"
	}
}
