package training

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type DailyReportFilter struct {
	TraineeID *uuid.UUID
	CourseID  *uuid.UUID
	// ManagedBy limits to courses the user created or is assigned to as trainer.
	ManagedBy *uuid.UUID
}

type DailyReportRepo interface {
	Create(dbc dbctx.Context, report *types.DailyReport) error
	List(dbc dbctx.Context, filter DailyReportFilter, limit, offset int) ([]*types.DailyReport, int64, error)
}

type dailyReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyReportRepo(db *gorm.DB, baseLog *logger.Logger) DailyReportRepo {
	return &dailyReportRepo{db: db, log: baseLog.With("repo", "DailyReportRepo")}
}

func (r *dailyReportRepo) Create(dbc dbctx.Context, report *types.DailyReport) error {
	return dbc.DB(r.db).Create(report).Error
}

func (r *dailyReportRepo) List(dbc dbctx.Context, filter DailyReportFilter, limit, offset int) ([]*types.DailyReport, int64, error) {
	q := dbc.DB(r.db).Model(&types.DailyReport{})
	if filter.TraineeID != nil {
		q = q.Where("trainee_id = ?", *filter.TraineeID)
	}
	if filter.CourseID != nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if filter.ManagedBy != nil {
		q = q.Where(`course_id IN (
			SELECT id FROM course WHERE creator_id = ?
			UNION SELECT course_id FROM course_trainer WHERE trainer_id = ?
		)`, *filter.ManagedBy, *filter.ManagedBy)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*types.DailyReport
	if err := q.Order("report_date DESC, created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
