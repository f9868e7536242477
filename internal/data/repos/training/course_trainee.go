package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type CourseTraineeRepo interface {
	Create(dbc dbctx.Context, rows []*types.CourseTrainee) ([]*types.CourseTrainee, error)
	GetByCourseAndTrainee(dbc dbctx.Context, courseID, traineeID uuid.UUID) (*types.CourseTrainee, error)
	GetByCourseAndTrainees(dbc dbctx.Context, courseID uuid.UUID, traineeIDs []uuid.UUID) ([]*types.CourseTrainee, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.CourseTrainee, error)
	ListByTrainee(dbc dbctx.Context, traineeID uuid.UUID) ([]*types.CourseTrainee, error)
	TraineeIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.EnrollmentStatus) error
	MarkCompletedIfDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCompletedWhereDone(dbc dbctx.Context, courseID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ClearCompletedByCourse(dbc dbctx.Context, courseID uuid.UUID) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error
}

type courseTraineeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseTraineeRepo(db *gorm.DB, baseLog *logger.Logger) CourseTraineeRepo {
	return &courseTraineeRepo{db: db, log: baseLog.With("repo", "CourseTraineeRepo")}
}

func (r *courseTraineeRepo) Create(dbc dbctx.Context, rows []*types.CourseTrainee) ([]*types.CourseTrainee, error) {
	if len(rows) == 0 {
		return []*types.CourseTrainee{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseTraineeRepo) GetByCourseAndTrainee(dbc dbctx.Context, courseID, traineeID uuid.UUID) (*types.CourseTrainee, error) {
	rows, err := r.GetByCourseAndTrainees(dbc, courseID, []uuid.UUID{traineeID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *courseTraineeRepo) GetByCourseAndTrainees(dbc dbctx.Context, courseID uuid.UUID, traineeIDs []uuid.UUID) ([]*types.CourseTrainee, error) {
	var rows []*types.CourseTrainee
	if len(traineeIDs) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).
		Where("course_id = ? AND trainee_id IN ?", courseID, traineeIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseTraineeRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.CourseTrainee, error) {
	var rows []*types.CourseTrainee
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("enrolled_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseTraineeRepo) ListByTrainee(dbc dbctx.Context, traineeID uuid.UUID) ([]*types.CourseTrainee, error) {
	var rows []*types.CourseTrainee
	if err := dbc.DB(r.db).
		Where("trainee_id = ?", traineeID).
		Order("enrolled_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseTraineeRepo) TraineeIDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.CourseTrainee{}).
		Where("course_id = ?", courseID).
		Pluck("trainee_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseTraineeRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.EnrollmentStatus) error {
	return dbc.DB(r.db).
		Model(&types.CourseTrainee{}).
		Where("id = ?", id).
		Update("status", status).Error
}

const enrollmentDoneCond = `EXISTS (SELECT 1 FROM trainee_subject ts WHERE ts.course_trainee_id = course_trainee.id)
	AND NOT EXISTS (SELECT 1 FROM trainee_subject ts WHERE ts.course_trainee_id = course_trainee.id AND ts.status <> ?)`

// MarkCompletedIfDone stamps completed_at once every trainee_subject of the enrollment is FINISHED.
func (r *courseTraineeRepo) MarkCompletedIfDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.CourseTrainee{}).
		Where("id = ? AND completed_at IS NULL", id).
		Where(enrollmentDoneCond, types.StatusFinished).
		Updates(map[string]interface{}{"completed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompletedWhereDone is the course-wide form of MarkCompletedIfDone.
// It returns the trainee ids that were stamped by this call.
func (r *courseTraineeRepo) MarkCompletedWhereDone(dbc dbctx.Context, courseID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var rows []*types.CourseTrainee
	if err := dbc.DB(r.db).
		Where("course_id = ? AND completed_at IS NULL", courseID).
		Where(enrollmentDoneCond, types.StatusFinished).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	traineeIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		traineeIDs = append(traineeIDs, row.TraineeID)
	}
	if err := dbc.DB(r.db).
		Model(&types.CourseTrainee{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"completed_at": at, "updated_at": at}).Error; err != nil {
		return nil, err
	}
	return traineeIDs, nil
}

func (r *courseTraineeRepo) ClearCompletedByCourse(dbc dbctx.Context, courseID uuid.UUID) error {
	return dbc.DB(r.db).
		Model(&types.CourseTrainee{}).
		Where("course_id = ? AND completed_at IS NOT NULL", courseID).
		Update("completed_at", nil).Error
}

func (r *courseTraineeRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.CourseTrainee{}).Error
}

func (r *courseTraineeRepo) DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error {
	return dbc.DB(r.db).Where("course_id = ?", courseID).Delete(&types.CourseTrainee{}).Error
}
