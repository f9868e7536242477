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

// DueTask is a task with a due date inside a reminder window, joined with its parents.
type DueTask struct {
	TaskID       uuid.UUID
	TaskTitle    string
	DueDate      time.Time
	SubjectID    uuid.UUID
	SubjectTitle string
	CourseID     uuid.UUID
	CourseTitle  string
}

type TaskRepo interface {
	Create(dbc dbctx.Context, task *types.Task) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Task, error)
	ListBySubject(dbc dbctx.Context, subjectID uuid.UUID) ([]*types.Task, error)
	ListBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]*types.Task, error)
	ListIDsBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]uuid.UUID, error)
	MaxOrder(dbc dbctx.Context, subjectID uuid.UUID) (int, error)
	ListDueBetween(dbc dbctx.Context, from, to time.Time) ([]DueTask, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(dbc dbctx.Context, task *types.Task) error {
	return dbc.DB(r.db).Create(task).Error
}

func (r *taskRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Task, error) {
	var rows []*types.Task
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *taskRepo) ListBySubject(dbc dbctx.Context, subjectID uuid.UUID) ([]*types.Task, error) {
	return r.ListBySubjects(dbc, []uuid.UUID{subjectID})
}

func (r *taskRepo) ListBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]*types.Task, error) {
	var rows []*types.Task
	if len(subjectIDs) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).
		Where("subject_id IN ?", subjectIDs).
		Order("sort_order ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *taskRepo) ListIDsBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(subjectIDs) == 0 {
		return ids, nil
	}
	if err := dbc.DB(r.db).
		Model(&types.Task{}).
		Where("subject_id IN ?", subjectIDs).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *taskRepo) MaxOrder(dbc dbctx.Context, subjectID uuid.UUID) (int, error) {
	var max sql.NullInt64
	if err := dbc.DB(r.db).
		Model(&types.Task{}).
		Where("subject_id = ?", subjectID).
		Select("MAX(sort_order)").
		Row().
		Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

// ListDueBetween returns tasks due in [from, to) whose subject is IN_PROGRESS.
func (r *taskRepo) ListDueBetween(dbc dbctx.Context, from, to time.Time) ([]DueTask, error) {
	var rows []DueTask
	err := dbc.DB(r.db).
		Table("task t").
		Select(`t.id AS task_id, t.title AS task_title, t.due_date AS due_date,
			s.id AS subject_id, s.title AS subject_title,
			c.id AS course_id, c.title AS course_title`).
		Joins("JOIN subject s ON s.id = t.subject_id").
		Joins("JOIN course c ON c.id = s.course_id").
		Where("s.status = ? AND t.due_date >= ? AND t.due_date < ?", types.StatusInProgress, from, to).
		Order("t.due_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *taskRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Task{}).Where("id = ?", id).Updates(updates).Error
}

func (r *taskRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Task{}).Error
}

func (r *taskRepo) DeleteBySubjects(dbc dbctx.Context, subjectIDs []uuid.UUID) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("subject_id IN ?", subjectIDs).Delete(&types.Task{}).Error
}
