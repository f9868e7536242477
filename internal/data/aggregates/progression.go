package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

type ProgressionAggregateDeps struct {
	Base BaseDeps

	Courses         repos.CourseRepo
	Subjects        repos.SubjectRepo
	Tasks           repos.TaskRepo
	CourseTrainees  repos.CourseTraineeRepo
	TraineeSubjects repos.TraineeSubjectRepo
	TraineeTasks    repos.TraineeTaskRepo
}

type progressionAggregate struct {
	deps ProgressionAggregateDeps
}

func NewProgressionAggregate(deps ProgressionAggregateDeps) domainagg.ProgressionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &progressionAggregate{deps: deps}
}

func (a *progressionAggregate) Contract() domainagg.Contract {
	return domainagg.ProgressionAggregateContract
}

// subjectScope is a subject read under its course lock together with the caller's enrollment.
type subjectScope struct {
	course     *training.Course
	subject    *training.Subject
	enrollment *training.CourseTrainee
}

// lockSubjectScope takes the course lock before trusting the subject's status. The subject
// row is re-read after the lock so a concurrent finish is observed.
func (a *progressionAggregate) lockSubjectScope(dbc dbctx.Context, traineeID, subjectID uuid.UUID) (subjectScope, error) {
	var sc subjectScope
	subject, err := a.deps.Subjects.GetByID(dbc, subjectID)
	if err != nil {
		return sc, err
	}
	if subject == nil {
		return sc, NotFoundError("subject not found")
	}
	course, err := a.deps.Courses.LockByID(dbc, subject.CourseID)
	if err != nil {
		return sc, err
	}
	if course == nil {
		return sc, NotFoundError("course not found")
	}
	subject, err = a.deps.Subjects.GetByID(dbc, subjectID)
	if err != nil {
		return sc, err
	}
	if subject == nil {
		return sc, NotFoundError("subject not found")
	}
	ct, err := a.deps.CourseTrainees.GetByCourseAndTrainee(dbc, course.ID, traineeID)
	if err != nil {
		return sc, err
	}
	if ct == nil {
		return sc, NotFoundError("trainee is not enrolled in this course")
	}
	if subject.Status != training.StatusInProgress {
		return sc, PreconditionError(fmt.Sprintf("subject is %s; expected IN_PROGRESS", subject.Status))
	}
	sc.course, sc.subject, sc.enrollment = course, subject, ct
	return sc, nil
}

func (a *progressionAggregate) lockTaskScope(dbc dbctx.Context, traineeID, taskID uuid.UUID) (*training.Task, subjectScope, error) {
	task, err := a.deps.Tasks.GetByID(dbc, taskID)
	if err != nil {
		return nil, subjectScope{}, err
	}
	if task == nil {
		return nil, subjectScope{}, NotFoundError("task not found")
	}
	sc, err := a.lockSubjectScope(dbc, traineeID, task.SubjectID)
	return task, sc, err
}

// nudgeSubject moves the trainee's subject record to IN_PROGRESS, creating it when the trainee
// interacts with a task before any record exists.
func (a *progressionAggregate) nudgeSubject(dbc dbctx.Context, sc subjectScope, ts *training.TraineeSubject, now time.Time) (bool, error) {
	if ts == nil {
		started := now
		_, err := a.deps.TraineeSubjects.Create(dbc, []*training.TraineeSubject{{
			CourseTraineeID: sc.enrollment.ID,
			SubjectID:       sc.subject.ID,
			TraineeID:       sc.enrollment.TraineeID,
			Status:          training.StatusInProgress,
			StartedAt:       &started,
		}})
		return err == nil, err
	}
	if ts.Status != training.StatusNotStarted {
		return false, nil
	}
	return a.deps.Base.CASGuard.UpdateByStatus(dbc, training.TraineeSubject{}.TableName(), ts.ID,
		[]string{string(training.StatusNotStarted)},
		map[string]any{
			"status":     training.StatusInProgress,
			"started_at": now,
			"updated_at": now,
		})
}

func (a *progressionAggregate) SetTaskCompletion(ctx context.Context, in domainagg.SetTaskCompletionInput) (domainagg.SetTaskCompletionResult, error) {
	const op = "Training.Progression.SetTaskCompletion"
	out := domainagg.SetTaskCompletionResult{TaskID: in.TaskID}
	if in.TraineeID == uuid.Nil || in.TaskID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing trainee_id or task_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		task, sc, err := a.lockTaskScope(dbc, in.TraineeID, in.TaskID)
		if err != nil {
			return err
		}
		out.SubjectID, out.CourseID = sc.subject.ID, sc.course.ID

		ts, err := a.deps.TraineeSubjects.GetByCourseTraineeAndSubject(dbc, sc.enrollment.ID, sc.subject.ID)
		if err != nil {
			return err
		}
		if ts != nil && ts.Status == training.StatusFinished {
			return PreconditionError("subject already finished for this trainee")
		}

		tt, err := a.deps.TraineeTasks.GetByTraineeAndTask(dbc, in.TraineeID, task.ID)
		if err != nil {
			return err
		}
		switch {
		case in.Completed && tt == nil:
			completedAt := now
			tt = &training.TraineeTask{
				TraineeID:   in.TraineeID,
				TaskID:      task.ID,
				Status:      training.TaskCompleted,
				CompletedAt: &completedAt,
			}
			if _, err := a.deps.TraineeTasks.Create(dbc, []*training.TraineeTask{tt}); err != nil {
				return err
			}
		case in.Completed:
			if tt.Status != training.TaskCompleted || tt.CompletedAt == nil {
				completedAt := now
				if err := a.deps.TraineeTasks.UpdateFields(dbc, tt.ID, map[string]interface{}{
					"status":       training.TaskCompleted,
					"completed_at": completedAt,
					"updated_at":   now,
				}); err != nil {
					return err
				}
				tt.Status, tt.CompletedAt = training.TaskCompleted, &completedAt
			}
		case tt == nil:
			return NotFoundError("task has not been started by this trainee")
		default:
			if err := a.deps.TraineeTasks.UpdateFields(dbc, tt.ID, map[string]interface{}{
				"status":       training.TaskInProgress,
				"completed_at": nil,
				"updated_at":   now,
			}); err != nil {
				return err
			}
			tt.Status, tt.CompletedAt = training.TaskInProgress, nil
		}
		out.TraineeTaskID, out.Status, out.CompletedAt = tt.ID, tt.Status, tt.CompletedAt

		nudged, err := a.nudgeSubject(dbc, sc, ts, now)
		if err != nil {
			return err
		}
		out.SubjectNudged = nudged
		return nil
	})
	return out, err
}

func (a *progressionAggregate) CompleteSubject(ctx context.Context, in domainagg.CompleteSubjectInput) (domainagg.CompleteSubjectResult, error) {
	const op = "Training.Progression.CompleteSubject"
	out := domainagg.CompleteSubjectResult{SubjectID: in.SubjectID}
	if in.TraineeID == uuid.Nil || in.SubjectID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing trainee_id or subject_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sc, err := a.lockSubjectScope(dbc, in.TraineeID, in.SubjectID)
		if err != nil {
			return err
		}
		out.CourseID = sc.course.ID

		ts, err := a.deps.TraineeSubjects.GetByCourseTraineeAndSubject(dbc, sc.enrollment.ID, sc.subject.ID)
		if err != nil {
			return err
		}
		if ts != nil && ts.Status == training.StatusFinished {
			return ConflictError("subject already completed by this trainee")
		}

		taskIDs, err := a.deps.Tasks.ListIDsBySubjects(dbc, []uuid.UUID{sc.subject.ID})
		if err != nil {
			return err
		}
		n, err := completeTaskGrid(dbc, a.deps.TraineeTasks, []uuid.UUID{in.TraineeID}, taskIDs, now)
		if err != nil {
			return err
		}
		out.TasksCompleted = n

		if ts == nil {
			started, finished := now, now
			if _, err := a.deps.TraineeSubjects.Create(dbc, []*training.TraineeSubject{{
				CourseTraineeID: sc.enrollment.ID,
				SubjectID:       sc.subject.ID,
				TraineeID:       in.TraineeID,
				Status:          training.StatusFinished,
				StartedAt:       &started,
				FinishedAt:      &finished,
			}}); err != nil {
				return err
			}
		} else {
			updates := map[string]any{
				"status":      training.StatusFinished,
				"finished_at": now,
				"updated_at":  now,
			}
			if ts.StartedAt == nil {
				updates["started_at"] = now
			}
			ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, training.TraineeSubject{}.TableName(), ts.ID,
				[]string{string(training.StatusNotStarted), string(training.StatusInProgress)}, updates)
			if err != nil {
				return err
			}
			if !ok {
				return ConflictError("trainee subject changed concurrently")
			}
		}

		c := cascadeRepos{Courses: a.deps.Courses, Subjects: a.deps.Subjects, CourseTrainees: a.deps.CourseTrainees}
		if err := c.closeSubjects(dbc, []uuid.UUID{sc.subject.ID}, now, &out.Cascade); err != nil {
			return err
		}

		remaining, err := a.deps.TraineeSubjects.CountUnfinishedByCourseTrainee(dbc, sc.enrollment.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		done, err := a.deps.CourseTrainees.MarkCompletedIfDone(dbc, sc.enrollment.ID, now)
		if err != nil {
			return err
		}
		out.Cascade.TraineeCourseCompleted = done
		if done {
			out.Cascade.CompletedTraineeIDs = []uuid.UUID{in.TraineeID}
		}
		finished, err := a.deps.Courses.FinishIfAllDone(dbc, sc.course.ID, now)
		if err != nil {
			return err
		}
		out.Cascade.CourseFinished = finished
		return nil
	})
	if err == nil {
		a.deps.Base.Hooks.ObserveCascade(op, out.Cascade)
	}
	return out, err
}

func (a *progressionAggregate) EnsureTraineeTask(ctx context.Context, in domainagg.EnsureTraineeTaskInput) (*training.TraineeTask, error) {
	const op = "Training.Progression.EnsureTraineeTask"
	if in.TraineeID == uuid.Nil || in.TaskID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing trainee_id or task_id", nil)
	}
	now := at(in.At)

	var out *training.TraineeTask
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		task, sc, err := a.lockTaskScope(dbc, in.TraineeID, in.TaskID)
		if err != nil {
			return err
		}
		tt, err := a.deps.TraineeTasks.GetByTraineeAndTask(dbc, in.TraineeID, task.ID)
		if err != nil {
			return err
		}
		if tt != nil {
			out = tt
			return nil
		}
		ts, err := a.deps.TraineeSubjects.GetByCourseTraineeAndSubject(dbc, sc.enrollment.ID, sc.subject.ID)
		if err != nil {
			return err
		}
		if ts != nil && ts.Status == training.StatusFinished {
			return PreconditionError("subject already finished for this trainee")
		}
		tt = &training.TraineeTask{
			TraineeID: in.TraineeID,
			TaskID:    task.ID,
			Status:    training.TaskInProgress,
		}
		if _, err := a.deps.TraineeTasks.Create(dbc, []*training.TraineeTask{tt}); err != nil {
			return err
		}
		if _, err := a.nudgeSubject(dbc, sc, ts, now); err != nil {
			return err
		}
		out = tt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
