package dto

import (
	"time"

	"github.com/noah-isme/inform-api/internal/models"
)

// OrganizationCreateRequest registers a new organization.
type OrganizationCreateRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,max=128"`
	// AdminUserID, when set, becomes the first org_admin.
	AdminUserID string `json:"admin_user_id" validate:"omitempty,max=128"`
}

// MembershipRequest grants or changes a member's role.
type MembershipRequest struct {
	Role string `json:"role" validate:"required,oneof=org_admin reviewer viewer"`
}

// OrganizationResponse exposes an organization.
type OrganizationResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOrganizationResponse converts an organization model.
func NewOrganizationResponse(model models.Organization) OrganizationResponse {
	return OrganizationResponse{ID: model.ID, Name: model.Name, Slug: model.Slug, CreatedAt: model.CreatedAt}
}

// MembershipResponse exposes a membership.
type MembershipResponse struct {
	OrgID  uint   `json:"org_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
