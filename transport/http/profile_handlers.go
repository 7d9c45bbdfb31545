package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/service"
)

// ProfileHandlers serves the role-scoped profile endpoints. A single handler
// set parameterized by role replaces per-role controller copies.
type ProfileHandlers struct {
	profiles *service.ProfileService
	role     core.Role
}

// NewProfileHandlers creates handlers for one role's profile routes.
func NewProfileHandlers(profiles *service.ProfileService, role core.Role) *ProfileHandlers {
	return &ProfileHandlers{profiles: profiles, role: role}
}

// ProfileResponse is the role-shaped profile view. Organizer responses omit
// skills and experience; candidate responses omit the organization name.
type ProfileResponse struct {
	UserID           string    `json:"userId"`
	Role             string    `json:"role"`
	Name             string    `json:"name,omitempty"`
	OrganizationName *string   `json:"organizationName,omitempty"`
	Email            string    `json:"email,omitempty"`
	Skills           []string  `json:"skills,omitempty"`
	Experience       *int      `json:"experience,omitempty"`
	Completed        bool      `json:"profileCompleted"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProfileUpdateRequest carries a profile replacement. Fields outside the
// route's role are ignored.
type ProfileUpdateRequest struct {
	Name             string   `json:"name"`
	OrganizationName string   `json:"organizationName"`
	Email            string   `json:"email"`
	Skills           []string `json:"skills"`
	Experience       int      `json:"experience"`
}

// Get handles GET /{role}s/profile.
func (h *ProfileHandlers) Get(c *gin.Context) {
	session := SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), session.UserID)
	if err != nil {
		h.writeProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profileResponse(profile)})
}

// Update handles PUT /{role}s/profile.
func (h *ProfileHandlers) Update(c *gin.Context) {
	session := SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), session.UserID, core.ProfileUpdate{
		Name:             req.Name,
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Skills:           req.Skills,
		Experience:       req.Experience,
	})
	if err != nil {
		h.writeProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profileResponse(profile)})
}

func (h *ProfileHandlers) writeProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": string(h.role) + " profile not found"})
	case errors.Is(err, core.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

func profileResponse(p *core.Profile) ProfileResponse {
	resp := ProfileResponse{
		UserID:    p.UserID,
		Role:      string(p.Role),
		Name:      p.Name,
		Email:     p.Email,
		Completed: p.Completed,
		UpdatedAt: p.UpdatedAt,
	}
	switch p.Role {
	case core.RoleOrganizer:
		org := p.OrganizationName
		resp.OrganizationName = &org
	case core.RoleCandidate:
		exp := p.Experience
		resp.Skills = p.Skills
		resp.Experience = &exp
	}
	return resp
}
