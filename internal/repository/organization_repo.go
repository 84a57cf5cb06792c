package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// OrganizationRepository stores organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uint) (models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (models.Organization, error)
}

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates an organization repository.
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return translateConflict(r.db.WithContext(ctx).Create(org).Error)
}

func (r *organizationRepository) GetByID(ctx context.Context, id uint) (models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (r *organizationRepository) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error; err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// MembershipRepository answers which role a user holds in an organization.
type MembershipRepository interface {
	Upsert(ctx context.Context, membership *models.Membership) error
	RoleFor(ctx context.Context, userID string, orgID uint) (models.Role, bool, error)
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a membership repository.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Upsert(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Membership
		err := tx.Where("user_id = ? AND org_id = ?", membership.UserID, membership.OrgID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return translateConflict(tx.Create(membership).Error)
		case err != nil:
			return err
		}

		membership.ID = existing.ID
		membership.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Update("role", membership.Role).Error
	})
}

func (r *membershipRepository) RoleFor(ctx context.Context, userID string, orgID uint) (models.Role, bool, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return membership.Role, true, nil
}
