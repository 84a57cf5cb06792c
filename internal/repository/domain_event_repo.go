package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// DomainEventFilter narrows domain event queries.
type DomainEventFilter struct {
	Page     int
	PageSize int
	OrgID    uint
	Type     string
}

// DomainEventRepository persists the domain event log.
type DomainEventRepository interface {
	Create(ctx context.Context, event *models.DomainEvent) error
	List(ctx context.Context, filter DomainEventFilter) ([]models.DomainEvent, int64, error)
}

type domainEventRepository struct {
	db *gorm.DB
}

// NewDomainEventRepository constructs the domain event repository.
func NewDomainEventRepository(db *gorm.DB) DomainEventRepository {
	return &domainEventRepository{db: db}
}

func (r *domainEventRepository) Create(ctx context.Context, event *models.DomainEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *domainEventRepository) List(ctx context.Context, filter DomainEventFilter) ([]models.DomainEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DomainEvent{})

	if filter.OrgID != 0 {
		query = query.Where("org_id = ?", filter.OrgID)
	}

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var events []models.DomainEvent
	if err := query.Order("created_at DESC").Order("id DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
