package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const reminderHorizon = 24 * time.Hour

type ReminderResult struct {
	Tasks     int
	Reminders int
}

// ReminderService nudges trainees about tasks due within the next day.
type ReminderService interface {
	SendDueReminders(ctx context.Context, now time.Time) (ReminderResult, error)
}

type reminderService struct {
	log          *logger.Logger
	tasks        repos.TaskRepo
	trainees     repos.CourseTraineeRepo
	traineeTasks repos.TraineeTaskRepo
	announcer    *Announcer
}

func NewReminderService(log *logger.Logger, tasks repos.TaskRepo, trainees repos.CourseTraineeRepo, traineeTasks repos.TraineeTaskRepo, announcer *Announcer) ReminderService {
	return &reminderService{
		log:          log.With("service", "ReminderService"),
		tasks:        tasks,
		trainees:     trainees,
		traineeTasks: traineeTasks,
		announcer:    announcer,
	}
}

// SendDueReminders covers tasks of IN_PROGRESS subjects due in (now, now+24h]. Trainees
// who already completed the task are skipped.
func (s *reminderService) SendDueReminders(ctx context.Context, now time.Time) (ReminderResult, error) {
	var out ReminderResult
	dbc := dbctx.Context{Ctx: ctx}
	due, err := s.tasks.ListDueBetween(dbc, now, now.Add(reminderHorizon))
	if err != nil {
		return out, internal("Reminder.SendDueReminders", err)
	}
	out.Tasks = len(due)
	if len(due) == 0 {
		return out, nil
	}

	taskIDs := make([]uuid.UUID, 0, len(due))
	for _, d := range due {
		taskIDs = append(taskIDs, d.TaskID)
	}
	rows, err := s.traineeTasks.ListByTasks(dbc, taskIDs)
	if err != nil {
		return out, internal("Reminder.SendDueReminders", err)
	}
	type cell struct{ trainee, task uuid.UUID }
	done := make(map[cell]struct{}, len(rows))
	for _, tt := range rows {
		if tt.Status == training.TaskCompleted {
			done[cell{tt.TraineeID, tt.TaskID}] = struct{}{}
		}
	}

	traineesByCourse := map[uuid.UUID][]uuid.UUID{}
	for _, d := range due {
		ids, ok := traineesByCourse[d.CourseID]
		if !ok {
			ids, err = s.trainees.TraineeIDsByCourse(dbc, d.CourseID)
			if err != nil {
				return out, internal("Reminder.SendDueReminders", err)
			}
			traineesByCourse[d.CourseID] = ids
		}
		var recipients []uuid.UUID
		for _, id := range ids {
			if _, ok := done[cell{id, d.TaskID}]; ok {
				continue
			}
			recipients = append(recipients, id)
		}
		if len(recipients) == 0 {
			continue
		}
		out.Reminders += len(recipients)
		s.announcer.Announce(ctx, Announcement{
			UserIDs: recipients,
			Type:    notify.TypeTaskDue,
			Title:   "Task due soon",
			Message: fmt.Sprintf("%q in %s (%s) is due %s.", d.TaskTitle, d.SubjectTitle, d.CourseTitle,
				d.DueDate.UTC().Format("Jan 2 15:04 MST")),
			LinkTo:    subjectLink(d.CourseID, d.SubjectID),
			Metadata:  map[string]any{"taskId": d.TaskID},
			EmailKind: EmailKindTaskReminder,
		})
	}
	s.log.Info("due reminders sent", "tasks", out.Tasks, "reminders", out.Reminders)
	return out, nil
}
