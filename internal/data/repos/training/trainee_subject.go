package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type TraineeSubjectRepo interface {
	Create(dbc dbctx.Context, rows []*types.TraineeSubject) ([]*types.TraineeSubject, error)
	GetByCourseTraineeAndSubject(dbc dbctx.Context, courseTraineeID, subjectID uuid.UUID) (*types.TraineeSubject, error)
	ListByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) ([]*types.TraineeSubject, error)
	ListBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]*types.TraineeSubject, error)
	CountUnfinishedByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	FinishBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID, at time.Time) (int64, error)
	DeleteByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) error
	DeleteBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) error
}

type traineeSubjectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraineeSubjectRepo(db *gorm.DB, baseLog *logger.Logger) TraineeSubjectRepo {
	return &traineeSubjectRepo{db: db, log: baseLog.With("repo", "TraineeSubjectRepo")}
}

func (r *traineeSubjectRepo) Create(dbc dbctx.Context, rows []*types.TraineeSubject) ([]*types.TraineeSubject, error) {
	if len(rows) == 0 {
		return []*types.TraineeSubject{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeSubjectRepo) GetByCourseTraineeAndSubject(dbc dbctx.Context, courseTraineeID, subjectID uuid.UUID) (*types.TraineeSubject, error) {
	var rows []*types.TraineeSubject
	if err := dbc.DB(r.db).
		Where("course_trainee_id = ? AND subject_id = ?", courseTraineeID, subjectID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *traineeSubjectRepo) ListByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) ([]*types.TraineeSubject, error) {
	var rows []*types.TraineeSubject
	if err := dbc.DB(r.db).
		Where("course_trainee_id = ?", courseTraineeID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeSubjectRepo) ListBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]*types.TraineeSubject, error) {
	var rows []*types.TraineeSubject
	if len(subjectIDs) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).
		Where("subject_id IN ?", subjectIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeSubjectRepo) CountUnfinishedByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) (int64, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.TraineeSubject{}).
		Where("course_trainee_id = ? AND status <> ?", courseTraineeID, types.StatusFinished).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *traineeSubjectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.TraineeSubject{}).Where("id = ?", id).Updates(updates).Error
}

// FinishBySubjects force-finishes every unfinished trainee record under the given subjects.
func (r *traineeSubjectRepo) FinishBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Model(&types.TraineeSubject{}).
		Where("subject_id IN ? AND status <> ?", subjectIDs, types.StatusFinished).
		Updates(map[string]interface{}{
			"status":      types.StatusFinished,
			"started_at":  gorm.Expr("COALESCE(started_at, ?)", at),
			"finished_at": at,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

func (r *traineeSubjectRepo) DeleteByCourseTrainee(dbc dbctx.Context, courseTraineeID uuid.UUID) error {
	return dbc.DB(r.db).Where("course_trainee_id = ?", courseTraineeID).Delete(&types.TraineeSubject{}).Error
}

func (r *traineeSubjectRepo) DeleteBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("subject_id IN ?", subjectIDs).Delete(&types.TraineeSubject{}).Error
}
