package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// FormRepository persists forms together with their versioned schema and rubric.
type FormRepository interface {
	Create(ctx context.Context, form *models.Form, formVersion *models.FormVersion, rubric *models.RubricVersion) error
	GetByID(ctx context.Context, id uint) (models.Form, error)
	GetByOrgSlug(ctx context.Context, orgSlug, formSlug string) (models.Form, error)
	ListByOrg(ctx context.Context, orgID uint) ([]models.Form, error)
	Update(ctx context.Context, form *models.Form) error
	Delete(ctx context.Context, id uint) error
	Publish(ctx context.Context, formID uint, formVersion *models.FormVersion, rubric *models.RubricVersion, publishedAt time.Time) (models.Form, error)
	LatestFormVersion(ctx context.Context, formID uint, publishedOnly bool) (models.FormVersion, error)
	LatestRubricVersion(ctx context.Context, formID uint, publishedOnly bool) (models.RubricVersion, error)
	GetRubricVersion(ctx context.Context, id uint) (models.RubricVersion, error)
}

type formRepository struct {
	db *gorm.DB
}

// NewFormRepository constructs a form repository.
func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

func (r *formRepository) Create(ctx context.Context, form *models.Form, formVersion *models.FormVersion, rubric *models.RubricVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(form).Error; err != nil {
			return translateConflict(err)
		}

		formVersion.FormID = form.ID
		formVersion.Version = 1
		if err := tx.Create(formVersion).Error; err != nil {
			return err
		}

		rubric.FormID = form.ID
		rubric.Version = 1
		return tx.Create(rubric).Error
	})
}

func (r *formRepository) GetByID(ctx context.Context, id uint) (models.Form, error) {
	var form models.Form
	if err := r.db.WithContext(ctx).First(&form, id).Error; err != nil {
		return models.Form{}, err
	}
	return form, nil
}

func (r *formRepository) GetByOrgSlug(ctx context.Context, orgSlug, formSlug string) (models.Form, error) {
	var form models.Form
	err := r.db.WithContext(ctx).
		Joins("JOIN organizations ON organizations.id = forms.org_id").
		Where("organizations.slug = ? AND forms.slug = ?", orgSlug, formSlug).
		First(&form).Error
	if err != nil {
		return models.Form{}, err
	}
	return form, nil
}

func (r *formRepository) ListByOrg(ctx context.Context, orgID uint) ([]models.Form, error) {
	var forms []models.Form
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&forms).Error; err != nil {
		return nil, err
	}
	return forms, nil
}

func (r *formRepository) Update(ctx context.Context, form *models.Form) error {
	return translateConflict(r.db.WithContext(ctx).Save(form).Error)
}

func (r *formRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Form{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Publish freezes the supplied schema and rubric as the next published
// versions. An unpublished draft version is published in place; a published
// version is never modified and a new version number is allocated instead.
func (r *formRepository) Publish(ctx context.Context, formID uint, formVersion *models.FormVersion, rubric *models.RubricVersion, publishedAt time.Time) (models.Form, error) {
	var form models.Form
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&form, formID).Error; err != nil {
			return err
		}

		if err := publishFormVersion(tx, formID, formVersion, publishedAt); err != nil {
			return err
		}
		if err := publishRubricVersion(tx, formID, rubric, publishedAt); err != nil {
			return err
		}

		if form.Status == models.FormStatusDraft {
			form.Status = models.FormStatusOpen
			if err := tx.Model(&form).Update("status", form.Status).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Form{}, err
	}
	return form, nil
}

func publishFormVersion(tx *gorm.DB, formID uint, version *models.FormVersion, publishedAt time.Time) error {
	var latest models.FormVersion
	err := tx.Where("form_id = ?", formID).Order("version DESC").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	version.FormID = formID
	version.PublishedAt = &publishedAt
	if err == nil && latest.PublishedAt == nil {
		version.ID = latest.ID
		version.Version = latest.Version
		version.CreatedAt = latest.CreatedAt
		return tx.Save(version).Error
	}

	version.ID = 0
	version.Version = latest.Version + 1
	return translateConflict(tx.Create(version).Error)
}

func publishRubricVersion(tx *gorm.DB, formID uint, rubric *models.RubricVersion, publishedAt time.Time) error {
	var latest models.RubricVersion
	err := tx.Where("form_id = ?", formID).Order("version DESC").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rubric.FormID = formID
	rubric.PublishedAt = &publishedAt
	if err == nil && latest.PublishedAt == nil {
		rubric.ID = latest.ID
		rubric.Version = latest.Version
		rubric.CreatedAt = latest.CreatedAt
		return tx.Save(rubric).Error
	}

	rubric.ID = 0
	rubric.Version = latest.Version + 1
	return translateConflict(tx.Create(rubric).Error)
}

func (r *formRepository) LatestFormVersion(ctx context.Context, formID uint, publishedOnly bool) (models.FormVersion, error) {
	query := r.db.WithContext(ctx).Where("form_id = ?", formID)
	if publishedOnly {
		query = query.Where("published_at IS NOT NULL")
	}

	var version models.FormVersion
	if err := query.Order("version DESC").First(&version).Error; err != nil {
		return models.FormVersion{}, err
	}
	return version, nil
}

func (r *formRepository) LatestRubricVersion(ctx context.Context, formID uint, publishedOnly bool) (models.RubricVersion, error) {
	query := r.db.WithContext(ctx).Where("form_id = ?", formID)
	if publishedOnly {
		query = query.Where("published_at IS NOT NULL")
	}

	var rubric models.RubricVersion
	if err := query.Order("version DESC").First(&rubric).Error; err != nil {
		return models.RubricVersion{}, err
	}
	return rubric, nil
}

func (r *formRepository) GetRubricVersion(ctx context.Context, id uint) (models.RubricVersion, error) {
	var rubric models.RubricVersion
	if err := r.db.WithContext(ctx).First(&rubric, id).Error; err != nil {
		return models.RubricVersion{}, err
	}
	return rubric, nil
}
