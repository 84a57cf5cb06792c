package models

import (
	"strings"
	"time"
)

// Role enumerates the roles a user can hold inside an organization.
type Role string

const (
	RoleOrgAdmin Role = "org_admin"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// Valid reports whether the role is one of the known organization roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOrgAdmin, RoleReviewer, RoleViewer:
		return true
	default:
		return false
	}
}

// ParseRole normalises a raw role string.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Organization owns forms and the memberships of its reviewers.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership binds a user to an organization with a role.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_membership_user_org" json:"user_id"`
	OrgID     uint      `gorm:"not null;uniqueIndex:idx_membership_user_org" json:"org_id"`
	Role      Role      `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
