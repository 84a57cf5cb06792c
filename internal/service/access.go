package service

import (
	"context"
	"strings"

	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// Viewer identifies the authenticated caller.
type Viewer struct {
	UserID       string
	IsSuperAdmin bool
}

// Access is the resolved standing of a viewer inside one organization.
type Access struct {
	Viewer   Viewer
	OrgID    uint
	Role     models.Role
	IsMember bool
}

// IsAdmin reports whether the viewer bypasses visibility policies.
func (a Access) IsAdmin() bool {
	return a.Viewer.IsSuperAdmin || (a.IsMember && a.Role == models.RoleOrgAdmin)
}

// CanReview reports whether the viewer may score submissions.
func (a Access) CanReview() bool {
	return a.IsAdmin() || (a.IsMember && a.Role == models.RoleReviewer)
}

// CanRead reports whether the viewer may see anything in the organization.
func (a Access) CanRead() bool {
	return a.Viewer.IsSuperAdmin || a.IsMember
}

type accessResolver struct {
	memberships repository.MembershipRepository
}

func newAccessResolver(memberships repository.MembershipRepository) accessResolver {
	return accessResolver{memberships: memberships}
}

// resolve looks up the viewer's role in orgID. Anonymous viewers resolve to
// no access.
func (r accessResolver) resolve(ctx context.Context, viewer Viewer, orgID uint) (Access, error) {
	access := Access{Viewer: viewer, OrgID: orgID}
	if strings.TrimSpace(viewer.UserID) == "" {
		return access, nil
	}

	role, ok, err := r.memberships.RoleFor(ctx, viewer.UserID, orgID)
	if err != nil {
		return Access{}, err
	}
	access.Role = role
	access.IsMember = ok
	return access, nil
}

func (r accessResolver) requireRead(ctx context.Context, viewer Viewer, orgID uint) (Access, error) {
	access, err := r.resolve(ctx, viewer, orgID)
	if err != nil {
		return Access{}, err
	}
	if !access.CanRead() {
		return Access{}, ErrForbidden
	}
	return access, nil
}

func (r accessResolver) requireReviewer(ctx context.Context, viewer Viewer, orgID uint) (Access, error) {
	access, err := r.resolve(ctx, viewer, orgID)
	if err != nil {
		return Access{}, err
	}
	if !access.CanReview() {
		return Access{}, ErrForbidden
	}
	return access, nil
}

func (r accessResolver) requireAdmin(ctx context.Context, viewer Viewer, orgID uint) (Access, error) {
	access, err := r.resolve(ctx, viewer, orgID)
	if err != nil {
		return Access{}, err
	}
	if !access.IsAdmin() {
		return Access{}, ErrForbidden
	}
	return access, nil
}
