package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/jobs"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const (
	EmailKindEnrollment    = "enrollment"
	EmailKindCourseFinish  = "course_finished"
	EmailKindTaskReminder  = "task_reminder"
	EmailKindSubjectFinish = "subject_finished"
)

// EmailQueue persists outbound mail for the email worker.
type EmailQueue interface {
	Enqueue(ctx context.Context, kind string, payloads ...jobs.EmailPayload) (int, error)
}

type emailQueue struct {
	log         *logger.Logger
	repo        repos.EmailJobRepo
	maxAttempts int
}

func NewEmailQueue(log *logger.Logger, repo repos.EmailJobRepo, maxAttempts int) EmailQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &emailQueue{log: log.With("service", "EmailQueue"), repo: repo, maxAttempts: maxAttempts}
}

// Enqueue skips payloads without a recipient and returns how many jobs were queued.
func (q *emailQueue) Enqueue(ctx context.Context, kind string, payloads ...jobs.EmailPayload) (int, error) {
	now := nowUTC()
	rows := make([]*jobs.EmailJob, 0, len(payloads))
	for _, p := range payloads {
		if strings.TrimSpace(p.To) == "" {
			continue
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return 0, internal("EmailQueue.Enqueue", err)
		}
		rows = append(rows, &jobs.EmailJob{
			Kind:        kind,
			Status:      jobs.EmailStatusQueued,
			MaxAttempts: q.maxAttempts,
			NextRunAt:   now,
			Payload:     datatypes.JSON(raw),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := q.repo.Create(dbctx.Context{Ctx: ctx}, rows); err != nil {
		return 0, internal("EmailQueue.Enqueue", err)
	}
	q.log.Debug("emails queued", "kind", kind, "count", len(rows))
	return len(rows), nil
}
