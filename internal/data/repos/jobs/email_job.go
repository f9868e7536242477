package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/trainhub-backend/internal/domain/jobs"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type EmailJobRepo interface {
	Create(dbc dbctx.Context, jobs []*types.EmailJob) ([]*types.EmailJob, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.EmailJob, error)
	ClaimNextRunnable(dbc dbctx.Context, now time.Time, staleRunning time.Duration) (*types.EmailJob, error)
	MarkSent(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string, nextRunAt time.Time) error
	// MarkDead fails the job and exhausts its attempts so it is never claimed again.
	MarkDead(dbc dbctx.Context, id uuid.UUID, lastError string, at time.Time) error
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
}

type emailJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmailJobRepo(db *gorm.DB, baseLog *logger.Logger) EmailJobRepo {
	return &emailJobRepo{
		db:  db,
		log: baseLog.With("repo", "EmailJobRepo"),
	}
}

func (r *emailJobRepo) Create(dbc dbctx.Context, jobs []*types.EmailJob) ([]*types.EmailJob, error) {
	if len(jobs) == 0 {
		return []*types.EmailJob{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *emailJobRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.EmailJob, error) {
	var rows []*types.EmailJob
	if len(ids) == 0 {
		return rows, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimNextRunnable picks one runnable job and marks it running in the same transaction.
// Runnable means queued and due, failed with attempts left and due, or running with a lock
// older than staleRunning (a worker died mid-send).
func (r *emailJobRepo) ClaimNextRunnable(dbc dbctx.Context, now time.Time, staleRunning time.Duration) (*types.EmailJob, error) {
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.EmailJob
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.EmailJob
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (status = ? AND next_run_at <= ?)
          OR (
            status = ?
            AND attempts < max_attempts
            AND next_run_at <= ?
          )
          OR (
            status = ?
            AND locked_at IS NOT NULL
            AND locked_at < ?
            AND attempts < max_attempts
          )
        )
      `, types.EmailStatusQueued, now, types.EmailStatusFailed, now, types.EmailStatusRunning, staleCutoff).
			Order("next_run_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.EmailJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":     types.EmailStatusRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.EmailStatusRunning
		job.Attempts++
		job.LockedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *emailJobRepo) MarkSent(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.EmailStatusSent,
			"sent_at":    at,
			"locked_at":  nil,
			"last_error": "",
			"updated_at": at,
		}).Error
}

func (r *emailJobRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string, nextRunAt time.Time) error {
	return dbc.DB(r.db).
		Model(&types.EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.EmailStatusFailed,
			"locked_at":   nil,
			"last_error":  lastError,
			"next_run_at": nextRunAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *emailJobRepo) MarkDead(dbc dbctx.Context, id uuid.UUID, lastError string, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.EmailStatusFailed,
			"attempts":   gorm.Expr("max_attempts"),
			"locked_at":  nil,
			"last_error": lastError,
			"updated_at": at,
		}).Error
}

func (r *emailJobRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.EmailJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
