package notify

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type NotificationRepo interface {
	Create(dbc dbctx.Context, rows []*types.Notification) ([]*types.Notification, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*types.Notification, int64, error)
	MarkRead(dbc dbctx.Context, userID, id uuid.UUID, at time.Time) (bool, error)
	CountUnread(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(dbc dbctx.Context, rows []*types.Notification) ([]*types.Notification, error) {
	if len(rows) == 0 {
		return []*types.Notification{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*types.Notification, int64, error) {
	q := dbc.DB(r.db).Model(&types.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*types.Notification
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkRead only touches the caller's own unread notification.
func (r *notificationRepo) MarkRead(dbc dbctx.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepo) CountUnread(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
