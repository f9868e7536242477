package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

// ProgressionService is the trainee-facing entry point to task and subject completion.
type ProgressionService interface {
	SetTaskCompletion(ctx context.Context, taskID uuid.UUID, completed bool) (domainagg.SetTaskCompletionResult, error)
	CompleteSubject(ctx context.Context, subjectID uuid.UUID) (domainagg.CompleteSubjectResult, error)
}

type ProgressionServiceDeps struct {
	Log         *logger.Logger
	Courses     repos.CourseRepo
	Subjects    repos.SubjectRepo
	Trainees    repos.CourseTraineeRepo
	Progression domainagg.ProgressionAggregate
	Announcer   *Announcer
}

type progressionService struct {
	deps ProgressionServiceDeps
	log  *logger.Logger
}

func NewProgressionService(deps ProgressionServiceDeps) ProgressionService {
	return &progressionService{deps: deps, log: deps.Log.With("service", "ProgressionService")}
}

func requireTrainee(ctx context.Context, op string) (actorInfo, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if a.role != user.RoleTrainee {
		return a, domainagg.NewError(domainagg.CodeForbidden, op, "only trainees can do this", nil)
	}
	return a, nil
}

func (s *progressionService) SetTaskCompletion(ctx context.Context, taskID uuid.UUID, completed bool) (domainagg.SetTaskCompletionResult, error) {
	const op = "Progression.SetTaskCompletion"
	a, err := requireTrainee(ctx, op)
	if err != nil {
		return domainagg.SetTaskCompletionResult{}, err
	}
	res, err := s.deps.Progression.SetTaskCompletion(ctx, domainagg.SetTaskCompletionInput{
		TraineeID: a.UserID,
		TaskID:    taskID,
		Completed: completed,
		At:        nowUTC(),
	})
	if err != nil {
		return res, err
	}
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(res.CourseID), realtime.SSEEventProgress, map[string]any{
		"traineeId": a.UserID,
		"taskId":    res.TaskID,
		"subjectId": res.SubjectID,
		"status":    res.Status,
	})
	return res, nil
}

// CompleteSubject finishes the subject for the calling trainee. Notifications for any
// parent transition the call triggered go out after commit.
func (s *progressionService) CompleteSubject(ctx context.Context, subjectID uuid.UUID) (domainagg.CompleteSubjectResult, error) {
	const op = "Progression.CompleteSubject"
	a, err := requireTrainee(ctx, op)
	if err != nil {
		return domainagg.CompleteSubjectResult{}, err
	}
	res, err := s.deps.Progression.CompleteSubject(ctx, domainagg.CompleteSubjectInput{
		TraineeID: a.UserID,
		SubjectID: subjectID,
		At:        nowUTC(),
	})
	if err != nil {
		return res, err
	}
	s.log.Info("trainee completed subject", "trainee_id", a.UserID, "subject_id", subjectID,
		"subject_closed", res.Cascade.SubjectFinished(subjectID), "course_closed", res.Cascade.CourseFinished)

	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(res.CourseID), realtime.SSEEventProgress, map[string]any{
		"traineeId": a.UserID,
		"subjectId": subjectID,
		"status":    training.StatusFinished,
	})
	s.announceCascade(ctx, a.UserID, res)
	return res, nil
}

func (s *progressionService) announceCascade(ctx context.Context, traineeID uuid.UUID, res domainagg.CompleteSubjectResult) {
	c := res.Cascade
	if len(c.FinishedSubjectIDs) == 0 && !c.TraineeCourseCompleted && !c.CourseFinished {
		return
	}
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.deps.Courses.GetByID(dbc, res.CourseID)
	if err != nil || course == nil {
		s.log.Warn("cascade announce: course lookup failed", "course_id", res.CourseID, "error", err)
		return
	}
	var traineeIDs []uuid.UUID
	if len(c.FinishedSubjectIDs) > 0 || c.CourseFinished {
		traineeIDs, err = s.deps.Trainees.TraineeIDsByCourse(dbc, course.ID)
		if err != nil {
			s.log.Warn("cascade announce: trainee lookup failed", "course_id", course.ID, "error", err)
		}
	}
	for _, id := range c.FinishedSubjectIDs {
		subj, err := s.deps.Subjects.GetByID(dbc, id)
		if err != nil || subj == nil {
			s.log.Warn("cascade announce: subject lookup failed", "subject_id", id, "error", err)
			continue
		}
		s.deps.Announcer.SubjectFinished(ctx, subj, traineeIDs)
	}
	if c.TraineeCourseCompleted && !c.CourseFinished {
		s.deps.Announcer.Announce(ctx, Announcement{
			UserIDs: []uuid.UUID{traineeID},
			Type:    notify.TypeCourseFinished,
			Title:   "Course completed",
			Message: fmt.Sprintf("You have completed every subject of %q.", course.Title),
			LinkTo:  courseLink(course.ID),
		})
	}
	if c.CourseFinished {
		s.deps.Announcer.CourseFinished(ctx, course, traineeIDs)
	}
}
