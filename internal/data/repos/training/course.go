package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type CourseFilter struct {
	Status types.Status
	// TrainerID restricts to courses the user created or is assigned to.
	TrainerID *uuid.UUID
	// TraineeID restricts to courses the user is enrolled in.
	TraineeID *uuid.UUID
}

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error)
	GetWithStructure(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	List(dbc dbctx.Context, filter CourseFilter, limit, offset int) ([]*types.Course, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	FinishIfAllDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) error {
	return dbc.DB(r.db).Create(course).Error
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	var rows []*types.Course
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *courseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error) {
	var rows []*types.Course
	if len(ids) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseRepo) GetWithStructure(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	var rows []*types.Course
	err := dbc.DB(r.db).
		Preload("Subjects", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("Subjects.Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LockByID takes the course row lock every progression write serializes on.
// SQLite has no row locks; its single writer gives the same ordering.
func (r *courseRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	var rows []*types.Course
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *courseRepo) List(dbc dbctx.Context, filter CourseFilter, limit, offset int) ([]*types.Course, int64, error) {
	q := dbc.DB(r.db).Model(&types.Course{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.TrainerID != nil {
		q = q.Where(
			"(creator_id = ? OR id IN (SELECT course_id FROM course_trainer WHERE trainer_id = ?))",
			*filter.TrainerID, *filter.TrainerID,
		)
	}
	if filter.TraineeID != nil {
		q = q.Where("id IN (SELECT course_id FROM course_trainee WHERE trainee_id = ?)", *filter.TraineeID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*types.Course
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Course{}).Where("id = ?", id).Updates(updates).Error
}

// FinishIfAllDone flips an IN_PROGRESS course to FINISHED in a single statement, and only when
// every subject is FINISHED and no trainee_subject in the course is unfinished. The bool is true
// only for the caller whose statement performed the flip.
func (r *courseRepo) FinishIfAllDone(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Course{}).
		Where("id = ? AND status = ?", id, types.StatusInProgress).
		Where("EXISTS (SELECT 1 FROM subject s WHERE s.course_id = ?)", id).
		Where("NOT EXISTS (SELECT 1 FROM subject s WHERE s.course_id = ? AND s.status <> ?)", id, types.StatusFinished).
		Where(`NOT EXISTS (
			SELECT 1 FROM trainee_subject ts
			JOIN subject s ON s.id = ts.subject_id
			WHERE s.course_id = ? AND ts.status <> ?
		)`, id, types.StatusFinished).
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

func (r *courseRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Course{}).Error
}

type CourseTrainerRepo interface {
	Create(dbc dbctx.Context, rows []*types.CourseTrainer) error
	Exists(dbc dbctx.Context, courseID, trainerID uuid.UUID) (bool, error)
	ListTrainerIDs(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	Delete(dbc dbctx.Context, courseID, trainerID uuid.UUID) (int64, error)
	DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error
}

type courseTrainerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseTrainerRepo(db *gorm.DB, baseLog *logger.Logger) CourseTrainerRepo {
	return &courseTrainerRepo{db: db, log: baseLog.With("repo", "CourseTrainerRepo")}
}

// Create ignores rows that already exist.
func (r *courseTrainerRepo) Create(dbc dbctx.Context, rows []*types.CourseTrainer) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "trainer_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *courseTrainerRepo) Exists(dbc dbctx.Context, courseID, trainerID uuid.UUID) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.CourseTrainer{}).
		Where("course_id = ? AND trainer_id = ?", courseID, trainerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseTrainerRepo) ListTrainerIDs(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.CourseTrainer{}).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Pluck("trainer_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseTrainerRepo) Delete(dbc dbctx.Context, courseID, trainerID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).
		Where("course_id = ? AND trainer_id = ?", courseID, trainerID).
		Delete(&types.CourseTrainer{})
	return res.RowsAffected, res.Error
}

func (r *courseTrainerRepo) DeleteByCourse(dbc dbctx.Context, courseID uuid.UUID) error {
	return dbc.DB(r.db).Where("course_id = ?", courseID).Delete(&types.CourseTrainer{}).Error
}
