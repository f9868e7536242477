package db

import (
	"fmt"

	"github.com/yungbote/trainhub-backend/internal/domain/auth"
	"github.com/yungbote/trainhub-backend/internal/domain/jobs"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity + auth
		// =========================
		&user.User{},
		&auth.UserToken{},

		// =========================
		// Course structure
		// =========================
		&training.Course{},
		&training.Subject{},
		&training.Task{},
		&training.CourseTrainer{},

		// =========================
		// Trainee progress
		// =========================
		&training.CourseTrainee{},
		&training.TraineeSubject{},
		&training.TraineeTask{},
		&training.TraineeTaskFile{},
		&training.DailyReport{},

		// =========================
		// Side effects
		// =========================
		&notify.Notification{},
		&jobs.EmailJob{},
	)
}

// EnsureProgressIndexes adds the composite indexes the cascade checks scan on.
// Statements are portable between Postgres and SQLite.
func EnsureProgressIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"idx_trainee_subject_subject_status", `CREATE INDEX IF NOT EXISTS idx_trainee_subject_subject_status ON trainee_subject(subject_id, status);`},
		{"idx_trainee_subject_trainee_status", `CREATE INDEX IF NOT EXISTS idx_trainee_subject_trainee_status ON trainee_subject(trainee_id, status);`},
		{"idx_subject_course_order", `CREATE INDEX IF NOT EXISTS idx_subject_course_order ON subject(course_id, sort_order);`},
		{"idx_task_subject_order", `CREATE INDEX IF NOT EXISTS idx_task_subject_order ON task(subject_id, sort_order);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

func EnsureQueueIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_email_job_runnable
		ON email_job(next_run_at)
		WHERE status IN ('queued', 'failed');
	`).Error; err != nil {
		return fmt.Errorf("create idx_email_job_runnable: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_notification_user_created ON notification(user_id, created_at);`).Error; err != nil {
		return fmt.Errorf("create idx_notification_user_created: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureProgressIndexes(s.db); err != nil {
		s.log.Error("Progress index migration failed", "error", err)
		return err
	}
	if err := EnsureQueueIndexes(s.db); err != nil {
		s.log.Error("Queue index migration failed", "error", err)
		return err
	}
	return nil
}
