package core

import "time"

// Profile holds the editable account data for an identity. A single struct
// covers both roles; the Role tag selects which fields are meaningful.
// Organizers use Name, OrganizationName and Email. Candidates use Name,
// Skills, Experience and Email.
type Profile struct {
	UserID           string
	Role             Role
	Name             string
	OrganizationName string
	Email            string
	Skills           []string
	Experience       int
	Completed        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewProfile returns the empty profile created alongside a fresh identity.
func NewProfile(userID string, role Role, now time.Time) *Profile {
	return &Profile{
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProfileUpdate carries the fields of a profile replacement. Only the fields
// relevant to the profile's role are applied.
type ProfileUpdate struct {
	Name             string
	OrganizationName string
	Email            string
	Skills           []string
	Experience       int
}

// Apply replaces the role-relevant fields and recomputes Completed.
func (p *Profile) Apply(u ProfileUpdate, now time.Time) {
	p.Name = u.Name
	p.Email = u.Email
	switch p.Role {
	case RoleOrganizer:
		p.OrganizationName = u.OrganizationName
	case RoleCandidate:
		p.Skills = u.Skills
		p.Experience = u.Experience
	}
	p.Recompute()
	p.UpdatedAt = now
}

// Recompute derives Completed from the role-required fields.
func (p *Profile) Recompute() {
	switch p.Role {
	case RoleOrganizer:
		p.Completed = p.Name != "" && p.OrganizationName != "" && p.Email != ""
	case RoleCandidate:
		p.Completed = p.Name != "" && len(p.Skills) > 0 && p.Experience > 0 && p.Email != ""
	default:
		p.Completed = false
	}
}
