package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// OrganizationService registers organizations and manages their members.
type OrganizationService interface {
	Create(ctx context.Context, viewer Viewer, payload dto.OrganizationCreateRequest) (dto.OrganizationResponse, error)
	Get(ctx context.Context, viewer Viewer, orgID uint) (dto.OrganizationResponse, error)
	SetMember(ctx context.Context, viewer Viewer, orgID uint, userID string, payload dto.MembershipRequest) (dto.MembershipResponse, error)
}

type organizationService struct {
	orgs        repository.OrganizationRepository
	memberships repository.MembershipRepository
	access      accessResolver
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewOrganizationService constructs the organization service.
func NewOrganizationService(orgs repository.OrganizationRepository, memberships repository.MembershipRepository, validate *validator.Validate, logger zerolog.Logger) OrganizationService {
	return &organizationService{
		orgs:        orgs,
		memberships: memberships,
		access:      newAccessResolver(memberships),
		validator:   validate,
		logger:      logger.With().Str("component", "organization_service").Logger(),
	}
}

// Create is reserved for super admins.
func (s *organizationService) Create(ctx context.Context, viewer Viewer, payload dto.OrganizationCreateRequest) (dto.OrganizationResponse, error) {
	if !viewer.IsSuperAdmin {
		return dto.OrganizationResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.OrganizationResponse{}, invalidPayload("%s", err.Error())
	}

	slug := strings.ToLower(strings.TrimSpace(payload.Slug))
	if !slugPattern.MatchString(slug) {
		return dto.OrganizationResponse{}, invalidPayload("slug must contain lowercase letters, digits and dashes")
	}

	org := models.Organization{Name: strings.TrimSpace(payload.Name), Slug: slug}
	if err := s.orgs.Create(ctx, &org); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.OrganizationResponse{}, ErrOrganizationSlugTaken
		}
		return dto.OrganizationResponse{}, err
	}

	if admin := strings.TrimSpace(payload.AdminUserID); admin != "" {
		if err := s.memberships.Upsert(ctx, &models.Membership{UserID: admin, OrgID: org.ID, Role: models.RoleOrgAdmin}); err != nil {
			return dto.OrganizationResponse{}, err
		}
	}

	s.logger.Info().Uint("org_id", org.ID).Str("slug", org.Slug).Msg("organization created")
	return dto.NewOrganizationResponse(org), nil
}

func (s *organizationService) Get(ctx context.Context, viewer Viewer, orgID uint) (dto.OrganizationResponse, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return dto.OrganizationResponse{}, err
	}
	if _, err := s.access.requireRead(ctx, viewer, orgID); err != nil {
		return dto.OrganizationResponse{}, err
	}
	return dto.NewOrganizationResponse(org), nil
}

// SetMember grants or changes a role. Org admins and super admins only.
func (s *organizationService) SetMember(ctx context.Context, viewer Viewer, orgID uint, userID string, payload dto.MembershipRequest) (dto.MembershipResponse, error) {
	if _, err := s.load(ctx, orgID); err != nil {
		return dto.MembershipResponse{}, err
	}
	if _, err := s.access.requireAdmin(ctx, viewer, orgID); err != nil {
		return dto.MembershipResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.MembershipResponse{}, invalidPayload("%s", err.Error())
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.MembershipResponse{}, invalidPayload("user id is required")
	}
	role, ok := models.ParseRole(payload.Role)
	if !ok {
		return dto.MembershipResponse{}, invalidPayload("unknown role %q", payload.Role)
	}

	membership := models.Membership{UserID: userID, OrgID: orgID, Role: role}
	if err := s.memberships.Upsert(ctx, &membership); err != nil {
		return dto.MembershipResponse{}, err
	}

	return dto.MembershipResponse{OrgID: orgID, UserID: userID, Role: string(role)}, nil
}

func (s *organizationService) load(ctx context.Context, orgID uint) (models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Organization{}, ErrOrganizationNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}
