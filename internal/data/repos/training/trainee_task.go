package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type TraineeTaskRepo interface {
	Create(dbc dbctx.Context, rows []*types.TraineeTask) ([]*types.TraineeTask, error)
	GetByTraineeAndTask(dbc dbctx.Context, traineeID, taskID uuid.UUID) (*types.TraineeTask, error)
	ListByTraineesAndTasks(dbc dbctx.Context, traineeIDs, taskIDs []uuid.UUID) ([]*types.TraineeTask, error)
	ListByTasks(dbc dbctx.Context, taskIDs []uuid.UUID) ([]*types.TraineeTask, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	CompleteExisting(dbc dbctx.Context, traineeIDs, taskIDs []uuid.UUID, at time.Time) (int64, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type traineeTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraineeTaskRepo(db *gorm.DB, baseLog *logger.Logger) TraineeTaskRepo {
	return &traineeTaskRepo{db: db, log: baseLog.With("repo", "TraineeTaskRepo")}
}

func (r *traineeTaskRepo) Create(dbc dbctx.Context, rows []*types.TraineeTask) ([]*types.TraineeTask, error) {
	if len(rows) == 0 {
		return []*types.TraineeTask{}, nil
	}
	if err := dbc.DB(r.db).Omit("Files").Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeTaskRepo) GetByTraineeAndTask(dbc dbctx.Context, traineeID, taskID uuid.UUID) (*types.TraineeTask, error) {
	var rows []*types.TraineeTask
	if err := dbc.DB(r.db).
		Where("trainee_id = ? AND task_id = ?", traineeID, taskID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *traineeTaskRepo) ListByTraineesAndTasks(dbc dbctx.Context, traineeIDs, taskIDs []uuid.UUID) ([]*types.TraineeTask, error) {
	var rows []*types.TraineeTask
	if len(traineeIDs) == 0 || len(taskIDs) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).
		Where("trainee_id IN ? AND task_id IN ?", traineeIDs, taskIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeTaskRepo) ListByTasks(dbc dbctx.Context, taskIDs []uuid.UUID) ([]*types.TraineeTask, error) {
	var rows []*types.TraineeTask
	if len(taskIDs) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).
		Where("task_id IN ?", taskIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *traineeTaskRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.TraineeTask{}).Where("id = ?", id).Updates(updates).Error
}

// CompleteExisting moves every existing, not yet COMPLETED row in the trainee x task grid to COMPLETED.
func (r *traineeTaskRepo) CompleteExisting(dbc dbctx.Context, traineeIDs, taskIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(traineeIDs) == 0 || len(taskIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Model(&types.TraineeTask{}).
		Where("trainee_id IN ? AND task_id IN ? AND status <> ?", traineeIDs, taskIDs, types.TaskCompleted).
		Updates(map[string]interface{}{
			"status":       types.TaskCompleted,
			"completed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected, res.Error
}

func (r *traineeTaskRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.TraineeTask{}).Error
}

type TraineeTaskFileRepo interface {
	Create(dbc dbctx.Context, file *types.TraineeTaskFile) error
	ListByTraineeTask(dbc dbctx.Context, traineeTaskID uuid.UUID) ([]*types.TraineeTaskFile, error)
	DeleteByTraineeTasks(dbc dbctx.Context, traineeTaskIDs []uuid.UUID) ([]string, error)
}

type traineeTaskFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraineeTaskFileRepo(db *gorm.DB, baseLog *logger.Logger) TraineeTaskFileRepo {
	return &traineeTaskFileRepo{db: db, log: baseLog.With("repo", "TraineeTaskFileRepo")}
}

func (r *traineeTaskFileRepo) Create(dbc dbctx.Context, file *types.TraineeTaskFile) error {
	return dbc.DB(r.db).Create(file).Error
}

func (r *traineeTaskFileRepo) ListByTraineeTask(dbc dbctx.Context, traineeTaskID uuid.UUID) ([]*types.TraineeTaskFile, error) {
	var rows []*types.TraineeTaskFile
	if err := dbc.DB(r.db).
		Where("trainee_task_id = ?", traineeTaskID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteByTraineeTasks removes file rows and returns their bucket keys so the caller can
// delete the objects once the transaction has committed.
func (r *traineeTaskFileRepo) DeleteByTraineeTasks(dbc dbctx.Context, traineeTaskIDs []uuid.UUID) ([]string, error) {
	if len(traineeTaskIDs) == 0 {
		return nil, nil
	}
	var keys []string
	if err := dbc.DB(r.db).
		Model(&types.TraineeTaskFile{}).
		Where("trainee_task_id IN ?", traineeTaskIDs).
		Pluck("bucket_key", &keys).Error; err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if err := dbc.DB(r.db).
		Where("trainee_task_id IN ?", traineeTaskIDs).
		Delete(&types.TraineeTaskFile{}).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
