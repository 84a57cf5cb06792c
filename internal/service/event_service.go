package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// EventRecorder persists and fans out domain events.
type EventRecorder interface {
	Record(ctx context.Context, orgID uint, eventType string, payload map[string]interface{}) error
}

// EventService records domain events and exposes them to organization admins.
type EventService interface {
	EventRecorder
	List(ctx context.Context, viewer Viewer, orgID uint, eventType string, page, pageSize int) (dto.DomainEventListResponse, error)
}

type eventService struct {
	repo         repository.DomainEventRepository
	access       accessResolver
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
	now          func() time.Time
}

type eventEnvelope struct {
	Source string                  `json:"source"`
	Event  dto.DomainEventResponse `json:"event"`
	SentAt time.Time               `json:"sent_at"`
}

// NewEventService constructs the event service. Redis and NATS are optional.
func NewEventService(repo repository.DomainEventRepository, memberships repository.MembershipRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &eventService{
		repo:         repo,
		access:       newAccessResolver(memberships),
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_service").Logger(),
		nodeID:       uuid.NewString(),
		now:          time.Now,
	}
}

func (s *eventService) Record(ctx context.Context, orgID uint, eventType string, payload map[string]interface{}) error {
	event := models.DomainEvent{
		EventID:   uuid.NewString(),
		OrgID:     orgID,
		Type:      eventType,
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, &event); err != nil {
		return err
	}

	if err := s.publish(ctx, dto.NewDomainEventResponse(event)); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish domain event")
	}
	return nil
}

func (s *eventService) List(ctx context.Context, viewer Viewer, orgID uint, eventType string, page, pageSize int) (dto.DomainEventListResponse, error) {
	if _, err := s.access.requireAdmin(ctx, viewer, orgID); err != nil {
		return dto.DomainEventListResponse{}, err
	}

	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}

	events, total, err := s.repo.List(ctx, repository.DomainEventFilter{OrgID: orgID, Type: eventType, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.DomainEventListResponse{}, err
	}

	items := make([]dto.DomainEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, dto.NewDomainEventResponse(event))
	}

	return dto.DomainEventListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *eventService) publish(ctx context.Context, event dto.DomainEventResponse) error {
	payload, err := json.Marshal(eventEnvelope{Source: s.nodeID, Event: event, SentAt: s.now().UTC()})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}
