package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

type LifecycleAggregateDeps struct {
	Base BaseDeps

	Courses          repos.CourseRepo
	CourseTrainers   repos.CourseTrainerRepo
	Subjects         repos.SubjectRepo
	Tasks            repos.TaskRepo
	CourseTrainees   repos.CourseTraineeRepo
	TraineeSubjects  repos.TraineeSubjectRepo
	TraineeTasks     repos.TraineeTaskRepo
	TraineeTaskFiles repos.TraineeTaskFileRepo
}

type lifecycleAggregate struct {
	deps LifecycleAggregateDeps
}

func NewLifecycleAggregate(deps LifecycleAggregateDeps) domainagg.LifecycleAggregate {
	deps.Base = deps.Base.withDefaults()
	return &lifecycleAggregate{deps: deps}
}

func (a *lifecycleAggregate) Contract() domainagg.Contract {
	return domainagg.LifecycleAggregateContract
}

func (a *lifecycleAggregate) lockCourse(dbc dbctx.Context, id uuid.UUID) (*training.Course, error) {
	course, err := a.deps.Courses.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, NotFoundError("course not found")
	}
	return course, nil
}

// lockSubject returns the subject re-read under its course lock.
func (a *lifecycleAggregate) lockSubject(dbc dbctx.Context, id uuid.UUID) (*training.Subject, *training.Course, error) {
	subject, err := a.deps.Subjects.GetByID(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	if subject == nil {
		return nil, nil, NotFoundError("subject not found")
	}
	course, err := a.lockCourse(dbc, subject.CourseID)
	if err != nil {
		return nil, nil, err
	}
	subject, err = a.deps.Subjects.GetByID(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	if subject == nil {
		return nil, nil, NotFoundError("subject not found")
	}
	return subject, course, nil
}

func (a *lifecycleAggregate) StartCourse(ctx context.Context, in domainagg.CourseTransitionInput) (domainagg.StartCourseResult, error) {
	const op = "Training.Lifecycle.StartCourse"
	out := domainagg.StartCourseResult{CourseID: in.CourseID}
	if in.CourseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.lockCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if err := requireStatus(courseRow, course.Status, training.StatusNotStarted); err != nil {
			return err
		}
		if err := a.deps.Base.CASGuard.Transition(dbc, courseRow, course.ID, training.StatusInProgress, now, training.StatusNotStarted); err != nil {
			return err
		}

		first, err := a.deps.Subjects.FirstByOrder(dbc, course.ID)
		if err != nil {
			return err
		}
		if first != nil && first.Status == training.StatusNotStarted {
			started, err := a.deps.Base.CASGuard.TryTransition(dbc, subjectRow, first.ID, training.StatusInProgress, now, training.StatusNotStarted)
			if err != nil {
				return err
			}
			if started {
				id := first.ID
				out.StartedSubjectID = &id
			}
		}

		out.TraineeIDs, err = a.deps.CourseTrainees.TraineeIDsByCourse(dbc, course.ID)
		return err
	})
	return out, err
}

// FinishCourse is the administrative override: every descendant is driven to its terminal state
// before the course itself closes.
func (a *lifecycleAggregate) FinishCourse(ctx context.Context, in domainagg.CourseTransitionInput) (domainagg.FinishCourseResult, error) {
	const op = "Training.Lifecycle.FinishCourse"
	out := domainagg.FinishCourseResult{CourseID: in.CourseID}
	if in.CourseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.lockCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if err := requireStatus(courseRow, course.Status, training.StatusInProgress); err != nil {
			return err
		}

		subjectIDs, err := a.deps.Subjects.ListIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		if out.SubjectsFinished, err = a.deps.Subjects.ForceFinishByCourse(dbc, course.ID, now); err != nil {
			return err
		}
		if out.TraineeSubjectsFinished, err = a.deps.TraineeSubjects.FinishBySubjects(dbc, subjectIDs, now); err != nil {
			return err
		}
		traineeIDs, err := a.deps.CourseTrainees.TraineeIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		taskIDs, err := a.deps.Tasks.ListIDsBySubjects(dbc, subjectIDs)
		if err != nil {
			return err
		}
		if out.TraineeTasksCompleted, err = completeTaskGrid(dbc, a.deps.TraineeTasks, traineeIDs, taskIDs, now); err != nil {
			return err
		}
		if _, err := a.deps.CourseTrainees.MarkCompletedWhereDone(dbc, course.ID, now); err != nil {
			return err
		}

		if err := a.deps.Base.CASGuard.Transition(dbc, courseRow, course.ID, training.StatusFinished, now, training.StatusInProgress); err != nil {
			return err
		}
		out.TraineeIDs = traineeIDs
		return nil
	})
	return out, err
}

func (a *lifecycleAggregate) DeleteCourse(ctx context.Context, in domainagg.CourseTransitionInput) error {
	const op = "Training.Lifecycle.DeleteCourse"
	if in.CourseID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.lockCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if err := requireStatus(courseRow, course.Status, training.StatusNotStarted); err != nil {
			return err
		}
		subjectIDs, err := a.deps.Subjects.ListIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		if err := a.deleteSubjectTree(dbc, subjectIDs); err != nil {
			return err
		}
		if err := a.deps.Subjects.DeleteByCourse(dbc, course.ID); err != nil {
			return err
		}
		if err := a.deps.CourseTrainees.DeleteByCourse(dbc, course.ID); err != nil {
			return err
		}
		if err := a.deps.CourseTrainers.DeleteByCourse(dbc, course.ID); err != nil {
			return err
		}
		return a.deps.Courses.Delete(dbc, course.ID)
	})
}

// deleteSubjectTree removes progress rows and tasks under the given subjects, leaving the
// subject rows themselves to the caller.
func (a *lifecycleAggregate) deleteSubjectTree(dbc dbctx.Context, subjectIDs []uuid.UUID) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	taskIDs, err := a.deps.Tasks.ListIDsBySubjects(dbc, subjectIDs)
	if err != nil {
		return err
	}
	if err := a.deleteTraineeTasks(dbc, taskIDs); err != nil {
		return err
	}
	if err := a.deps.TraineeSubjects.DeleteBySubjects(dbc, subjectIDs); err != nil {
		return err
	}
	return a.deps.Tasks.DeleteBySubjects(dbc, subjectIDs)
}

func (a *lifecycleAggregate) deleteTraineeTasks(dbc dbctx.Context, taskIDs []uuid.UUID) error {
	rows, err := a.deps.TraineeTasks.ListByTasks(dbc, taskIDs)
	if err != nil || len(rows) == 0 {
		return err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if _, err := a.deps.TraineeTaskFiles.DeleteByTraineeTasks(dbc, ids); err != nil {
		return err
	}
	return a.deps.TraineeTasks.DeleteByIDs(dbc, ids)
}

func (a *lifecycleAggregate) CreateSubject(ctx context.Context, in domainagg.CreateSubjectInput) (*training.Subject, error) {
	const op = "Training.Lifecycle.CreateSubject"
	if in.CourseID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domainagg.NewValidationError(op, "invalid subject", []domainagg.FieldError{
			{Field: "title", Message: "title is required"},
		})
	}
	var out *training.Subject
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.lockCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course.Status == training.StatusFinished {
			return PreconditionError("course is FINISHED; subjects can no longer be added")
		}
		order := in.Order
		if order <= 0 {
			max, err := a.deps.Subjects.MaxOrder(dbc, course.ID)
			if err != nil {
				return err
			}
			order = max + 1
		}
		subject := &training.Subject{
			CourseID:    course.ID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Status:      training.StatusNotStarted,
			Order:       order,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
		}
		if err := a.deps.Subjects.Create(dbc, subject); err != nil {
			return err
		}

		enrollments, err := a.deps.CourseTrainees.ListByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		if len(enrollments) > 0 {
			rows := make([]*training.TraineeSubject, 0, len(enrollments))
			for _, ct := range enrollments {
				rows = append(rows, &training.TraineeSubject{
					CourseTraineeID: ct.ID,
					SubjectID:       subject.ID,
					TraineeID:       ct.TraineeID,
					Status:          training.StatusNotStarted,
				})
			}
			if _, err := a.deps.TraineeSubjects.Create(dbc, rows); err != nil {
				return err
			}
			// A new subject reopens every enrollment that had already completed the course.
			if err := a.deps.CourseTrainees.ClearCompletedByCourse(dbc, course.ID); err != nil {
				return err
			}
		}
		out = subject
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *lifecycleAggregate) StartSubject(ctx context.Context, in domainagg.SubjectTransitionInput) (domainagg.StartSubjectResult, error) {
	const op = "Training.Lifecycle.StartSubject"
	out := domainagg.StartSubjectResult{SubjectID: in.SubjectID}
	if in.SubjectID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing subject_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		subject, course, err := a.lockSubject(dbc, in.SubjectID)
		if err != nil {
			return err
		}
		out.CourseID = course.ID
		if err := requireStatus(courseRow, course.Status, training.StatusInProgress); err != nil {
			return err
		}
		if err := requireStatus(subjectRow, subject.Status, training.StatusNotStarted); err != nil {
			return err
		}
		if err := a.deps.Base.CASGuard.Transition(dbc, subjectRow, subject.ID, training.StatusInProgress, now, training.StatusNotStarted); err != nil {
			return err
		}
		out.TraineeIDs, err = a.deps.CourseTrainees.TraineeIDsByCourse(dbc, course.ID)
		return err
	})
	return out, err
}

// FinishSubject closes a subject for everyone, then lets the course auto-close if this was the
// last open subject.
func (a *lifecycleAggregate) FinishSubject(ctx context.Context, in domainagg.SubjectTransitionInput) (domainagg.FinishSubjectResult, error) {
	const op = "Training.Lifecycle.FinishSubject"
	out := domainagg.FinishSubjectResult{SubjectID: in.SubjectID}
	if in.SubjectID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing subject_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		subject, course, err := a.lockSubject(dbc, in.SubjectID)
		if err != nil {
			return err
		}
		out.CourseID = course.ID
		if err := requireStatus(subjectRow, subject.Status, training.StatusInProgress); err != nil {
			return err
		}

		ids := []uuid.UUID{subject.ID}
		if out.TraineeSubjectsFinished, err = a.deps.TraineeSubjects.FinishBySubjects(dbc, ids, now); err != nil {
			return err
		}
		traineeIDs, err := a.deps.CourseTrainees.TraineeIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		taskIDs, err := a.deps.Tasks.ListIDsBySubjects(dbc, ids)
		if err != nil {
			return err
		}
		if out.TraineeTasksCompleted, err = completeTaskGrid(dbc, a.deps.TraineeTasks, traineeIDs, taskIDs, now); err != nil {
			return err
		}

		if err := a.deps.Base.CASGuard.Transition(dbc, subjectRow, subject.ID, training.StatusFinished, now, training.StatusInProgress); err != nil {
			return err
		}
		out.Cascade.FinishedSubjectIDs = ids
		out.TraineeIDs = traineeIDs

		c := cascadeRepos{Courses: a.deps.Courses, Subjects: a.deps.Subjects, CourseTrainees: a.deps.CourseTrainees}
		return c.closeCourse(dbc, course.ID, now, &out.Cascade)
	})
	if err == nil {
		a.deps.Base.Hooks.ObserveCascade(op, out.Cascade)
	}
	return out, err
}

func (a *lifecycleAggregate) DeleteSubject(ctx context.Context, in domainagg.SubjectTransitionInput) (domainagg.DeleteSubjectResult, error) {
	const op = "Training.Lifecycle.DeleteSubject"
	out := domainagg.DeleteSubjectResult{SubjectID: in.SubjectID}
	if in.SubjectID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing subject_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		subject, course, err := a.lockSubject(dbc, in.SubjectID)
		if err != nil {
			return err
		}
		out.CourseID = course.ID
		if err := requireStatus(subjectRow, subject.Status, training.StatusNotStarted); err != nil {
			return err
		}
		if err := a.deleteSubjectTree(dbc, []uuid.UUID{subject.ID}); err != nil {
			return err
		}
		if err := a.deps.Subjects.Delete(dbc, subject.ID); err != nil {
			return err
		}
		if course.Status != training.StatusInProgress {
			return nil
		}
		// The deleted subject may have been the only one still open.
		c := cascadeRepos{Courses: a.deps.Courses, Subjects: a.deps.Subjects, CourseTrainees: a.deps.CourseTrainees}
		return c.closeCourse(dbc, course.ID, now, &out.Cascade)
	})
	if err == nil {
		a.deps.Base.Hooks.ObserveCascade(op, out.Cascade)
	}
	return out, err
}

func (a *lifecycleAggregate) CreateTask(ctx context.Context, in domainagg.CreateTaskInput) (*training.Task, error) {
	const op = "Training.Lifecycle.CreateTask"
	if in.SubjectID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing subject_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domainagg.NewValidationError(op, "invalid task", []domainagg.FieldError{
			{Field: "title", Message: "title is required"},
		})
	}
	var out *training.Task
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		subject, _, err := a.lockSubject(dbc, in.SubjectID)
		if err != nil {
			return err
		}
		if subject.Status == training.StatusFinished {
			return PreconditionError("subject is FINISHED; tasks can no longer be added")
		}
		order := in.Order
		if order <= 0 {
			max, err := a.deps.Tasks.MaxOrder(dbc, subject.ID)
			if err != nil {
				return err
			}
			order = max + 1
		}
		task := &training.Task{
			SubjectID:   subject.ID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			DueDate:     in.DueDate,
			Order:       order,
		}
		if err := a.deps.Tasks.Create(dbc, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTask is allowed only while the owning subject has not started; a task has no status of
// its own.
func (a *lifecycleAggregate) DeleteTask(ctx context.Context, in domainagg.DeleteTaskInput) error {
	const op = "Training.Lifecycle.DeleteTask"
	if in.TaskID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing task_id", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		task, err := a.deps.Tasks.GetByID(dbc, in.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return NotFoundError("task not found")
		}
		subject, _, err := a.lockSubject(dbc, task.SubjectID)
		if err != nil {
			return err
		}
		if err := requireStatus(subjectRow, subject.Status, training.StatusNotStarted); err != nil {
			return err
		}
		if err := a.deleteTraineeTasks(dbc, []uuid.UUID{task.ID}); err != nil {
			return err
		}
		return a.deps.Tasks.Delete(dbc, task.ID)
	})
}
