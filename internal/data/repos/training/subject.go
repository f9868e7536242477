package training

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type SubjectRepo interface {
	Create(dbc dbctx.Context, subject *types.Subject) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subject, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Subject, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Subject, error)
	ListIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	ListInProgressIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	FirstByOrder(dbc dbctx.Context, courseID uuid.UUID) (*types.Subject, error)
	MaxOrder(dbc dbctx.Context, courseID uuid.UUID) (int, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	FinishIfAllTraineesDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	ForceFinishByCourse(dbc dbctx.Context, courseID uuid.UUID, at time.Time) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error
}

type subjectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubjectRepo(db *gorm.DB, baseLog *logger.Logger) SubjectRepo {
	return &subjectRepo{db: db, log: baseLog.With("repo", "SubjectRepo")}
}

func (r *subjectRepo) Create(dbc dbctx.Context, subject *types.Subject) error {
	return dbc.DB(r.db).Create(subject).Error
}

func (r *subjectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subject, error) {
	var rows []*types.Subject
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *subjectRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Subject, error) {
	var rows []*types.Subject
	if len(ids) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *subjectRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Subject, error) {
	var rows []*types.Subject
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("sort_order ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *subjectRepo) ListIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.Subject{}).
		Where("course_id = ?", courseID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *subjectRepo) ListInProgressIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.Subject{}).
		Where("course_id = ? AND status = ?", courseID, types.StatusInProgress).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FirstByOrder returns the lowest-ordered subject. Duplicate orders fall back to creation time.
func (r *subjectRepo) FirstByOrder(dbc dbctx.Context, courseID uuid.UUID) (*types.Subject, error) {
	var rows []*types.Subject
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("sort_order ASC, created_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *subjectRepo) MaxOrder(dbc dbctx.Context, courseID uuid.UUID) (int, error) {
	var max sql.NullInt64
	if err := dbc.DB(r.db).
		Model(&types.Subject{}).
		Where("course_id = ?", courseID).
		Select("MAX(sort_order)").
		Row().
		Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

func (r *subjectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Subject{}).Where("id = ?", id).Updates(updates).Error
}

// FinishIfAllTraineesDone closes an IN_PROGRESS subject once it has trainee records and none of
// them is unfinished. Count and flip are one statement so concurrent finishers cannot both fire.
func (r *subjectRepo) FinishIfAllTraineesDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Subject{}).
		Where("id = ? AND status = ?", id, types.StatusInProgress).
		Where("EXISTS (SELECT 1 FROM trainee_subject ts WHERE ts.subject_id = ?)", id).
		Where("NOT EXISTS (SELECT 1 FROM trainee_subject ts WHERE ts.subject_id = ? AND ts.status <> ?)", id, types.StatusFinished).
		Updates(map[string]interface{}{
			"status":     types.StatusFinished,
			"end_date":   at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *subjectRepo) ForceFinishByCourse(dbc dbctx.Context, courseID uuid.UUID, at time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.Subject{}).
		Where("course_id = ? AND status <> ?", courseID, types.StatusFinished).
		Updates(map[string]interface{}{
			"status":     types.StatusFinished,
			"start_date": gorm.Expr("COALESCE(start_date, ?)", at),
			"end_date":   at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *subjectRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Subject{}).Error
}

func (r *subjectRepo) DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error {
	return dbc.DB(r.db).Where("course_id = ?", courseID).Delete(&types.Subject{}).Error
}
