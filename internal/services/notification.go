package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
	"github.com/yungbote/trainhub-backend/internal/realtime/bus"
)

type NotificationInput struct {
	UserID   uuid.UUID
	Type     string
	Title    string
	Message  string
	LinkTo   string
	Metadata map[string]any
}

type NotificationService interface {
	// Create persists the notifications and pushes each one to its user's stream.
	// A failed push is logged; the row is the source of truth.
	Create(ctx context.Context, inputs ...NotificationInput) ([]*notify.Notification, error)
	List(ctx context.Context, unreadOnly bool, page Page) (PageResult[*notify.Notification], error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	UnreadCount(ctx context.Context) (int64, error)
}

type notificationService struct {
	log     *logger.Logger
	repo    repos.NotificationRepo
	bus     bus.Bus
	metrics *observability.Metrics
}

func NewNotificationService(log *logger.Logger, repo repos.NotificationRepo, b bus.Bus, metrics *observability.Metrics) NotificationService {
	return &notificationService{
		log:     log.With("service", "NotificationService"),
		repo:    repo,
		bus:     b,
		metrics: metrics,
	}
}

func (s *notificationService) Create(ctx context.Context, inputs ...NotificationInput) ([]*notify.Notification, error) {
	rows := make([]*notify.Notification, 0, len(inputs))
	for _, in := range inputs {
		if in.UserID == uuid.Nil {
			continue
		}
		n := &notify.Notification{
			UserID:  in.UserID,
			Type:    in.Type,
			Title:   in.Title,
			Message: in.Message,
			LinkTo:  in.LinkTo,
		}
		if len(in.Metadata) > 0 {
			if raw, err := json.Marshal(in.Metadata); err == nil {
				n.Metadata = datatypes.JSON(raw)
			}
		}
		rows = append(rows, n)
	}
	if len(rows) == 0 {
		return rows, nil
	}
	created, err := s.repo.Create(dbctx.Context{Ctx: ctx}, rows)
	if err != nil {
		return nil, internal("Notification.Create", err)
	}
	byType := map[string]int{}
	for _, n := range created {
		byType[n.Type]++
		if s.bus == nil {
			continue
		}
		msg := realtime.SSEMessage{
			Channel: realtime.UserChannel(n.UserID),
			Event:   realtime.SSEEventNotification,
			Data:    n,
		}
		if err := s.bus.Publish(ctx, msg); err != nil {
			s.log.Warn("notification publish failed", "notification_id", n.ID, "error", err)
		}
	}
	for kind, count := range byType {
		s.metrics.IncNotification(kind, count)
	}
	return created, nil
}

func (s *notificationService) List(ctx context.Context, unreadOnly bool, page Page) (PageResult[*notify.Notification], error) {
	a, err := requireActor(ctx)
	if err != nil {
		return PageResult[*notify.Notification]{}, err
	}
	page = page.Normalize()
	rows, total, err := s.repo.ListByUser(dbctx.Context{Ctx: ctx}, a.UserID, unreadOnly, page.Limit, page.Offset())
	if err != nil {
		return PageResult[*notify.Notification]{}, internal("Notification.List", err)
	}
	return newPageResult(rows, total, page), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	ok, err := s.repo.MarkRead(dbctx.Context{Ctx: ctx}, a.UserID, id, nowUTC())
	if err != nil {
		return internal("Notification.MarkRead", err)
	}
	if !ok {
		return notFound("Notification.MarkRead", "unread notification")
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context) (int64, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnread(dbctx.Context{Ctx: ctx}, a.UserID)
	if err != nil {
		return 0, internal("Notification.UnreadCount", err)
	}
	return n, nil
}
