package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

type EnrollmentAggregateDeps struct {
	Base BaseDeps

	Users            repos.UserRepo
	Courses          repos.CourseRepo
	Subjects         repos.SubjectRepo
	Tasks            repos.TaskRepo
	CourseTrainees   repos.CourseTraineeRepo
	TraineeSubjects  repos.TraineeSubjectRepo
	TraineeTasks     repos.TraineeTaskRepo
	TraineeTaskFiles repos.TraineeTaskFileRepo
}

type enrollmentAggregate struct {
	deps EnrollmentAggregateDeps
}

func NewEnrollmentAggregate(deps EnrollmentAggregateDeps) domainagg.EnrollmentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &enrollmentAggregate{deps: deps}
}

func (a *enrollmentAggregate) Contract() domainagg.Contract {
	return domainagg.EnrollmentAggregateContract
}

func (a *enrollmentAggregate) cascade() cascadeRepos {
	return cascadeRepos{Courses: a.deps.Courses, Subjects: a.deps.Subjects, CourseTrainees: a.deps.CourseTrainees}
}

func (a *enrollmentAggregate) EnrollTrainees(ctx context.Context, in domainagg.EnrollTraineesInput) (domainagg.EnrollTraineesResult, error) {
	const op = "Training.Enrollment.EnrollTrainees"
	out := domainagg.EnrollTraineesResult{CourseID: in.CourseID}
	if in.CourseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	ids := dedupeIDs(in.TraineeIDs)
	if len(ids) == 0 {
		return out, domainagg.NewValidationError(op, "no trainees supplied", []domainagg.FieldError{
			{Field: "traineeIds", Message: "must contain at least one trainee"},
		})
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.LockByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return NotFoundError("course not found")
		}
		if course.Status == training.StatusFinished {
			return PreconditionError("course is FINISHED; enrollment is closed")
		}

		// The whole batch is validated before anything is written.
		users, err := a.deps.Users.GetByIDs(dbc, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*user.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		var fields []domainagg.FieldError
		for i, id := range in.TraineeIDs {
			field := fmt.Sprintf("traineeIds[%d]", i)
			u := byID[id]
			switch {
			case id == uuid.Nil:
				fields = append(fields, domainagg.FieldError{Field: field, Message: "invalid id"})
			case u == nil:
				fields = append(fields, domainagg.FieldError{Field: field, Message: "user not found"})
			case u.Role != user.RoleTrainee:
				fields = append(fields, domainagg.FieldError{Field: field, Message: "user is not a trainee"})
			case !u.IsActive:
				fields = append(fields, domainagg.FieldError{Field: field, Message: "user is inactive"})
			}
		}
		if len(fields) > 0 {
			return domainagg.NewValidationError(op, "invalid trainees", fields)
		}

		existing, err := a.deps.CourseTrainees.GetByCourseAndTrainees(dbc, course.ID, ids)
		if err != nil {
			return err
		}
		enrolled := make(map[uuid.UUID]struct{}, len(existing))
		for _, ct := range existing {
			enrolled[ct.TraineeID] = struct{}{}
		}

		var rows []*training.CourseTrainee
		for _, id := range ids {
			if _, ok := enrolled[id]; ok {
				out.AlreadyEnrolled = append(out.AlreadyEnrolled, id)
				continue
			}
			rows = append(rows, &training.CourseTrainee{
				CourseID:   course.ID,
				TraineeID:  id,
				Status:     training.EnrollmentActive,
				EnrolledAt: now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := a.deps.CourseTrainees.Create(dbc, rows); err != nil {
			return err
		}

		subjects, err := a.deps.Subjects.ListByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		var progress []*training.TraineeSubject
		for _, ct := range rows {
			out.Enrolled = append(out.Enrolled, ct.TraineeID)
			for _, s := range subjects {
				progress = append(progress, mirrorSubject(ct, s, in.Activate, now))
			}
		}
		if _, err := a.deps.TraineeSubjects.Create(dbc, progress); err != nil {
			return err
		}
		out.SubjectRecords = len(progress)
		return nil
	})
	return out, err
}

// mirrorSubject builds the trainee's record for s. Activate lifts NOT_STARTED to IN_PROGRESS
// but never reopens a FINISHED subject.
func mirrorSubject(ct *training.CourseTrainee, s *training.Subject, activate bool, now time.Time) *training.TraineeSubject {
	status := s.Status
	if activate && status != training.StatusFinished {
		status = training.StatusInProgress
	}
	ts := &training.TraineeSubject{
		CourseTraineeID: ct.ID,
		SubjectID:       s.ID,
		TraineeID:       ct.TraineeID,
		Status:          status,
	}
	if status != training.StatusNotStarted {
		started := now
		ts.StartedAt = &started
	}
	if status == training.StatusFinished {
		finished := now
		ts.FinishedAt = &finished
	}
	return ts
}

func (a *enrollmentAggregate) RemoveTrainee(ctx context.Context, in domainagg.RemoveTraineeInput) (domainagg.RemoveTraineeResult, error) {
	const op = "Training.Enrollment.RemoveTrainee"
	out := domainagg.RemoveTraineeResult{CourseID: in.CourseID, TraineeID: in.TraineeID}
	if in.CourseID == uuid.Nil || in.TraineeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id or trainee_id", nil)
	}
	now := at(in.At)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.LockByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return NotFoundError("course not found")
		}
		if course.Status == training.StatusFinished {
			return PreconditionError("course is FINISHED; enrollment is closed")
		}
		ct, err := a.deps.CourseTrainees.GetByCourseAndTrainee(dbc, course.ID, in.TraineeID)
		if err != nil {
			return err
		}
		if ct == nil {
			return NotFoundError("trainee is not enrolled in this course")
		}

		subjectIDs, err := a.deps.Subjects.ListIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		taskIDs, err := a.deps.Tasks.ListIDsBySubjects(dbc, subjectIDs)
		if err != nil {
			return err
		}
		taskRows, err := a.deps.TraineeTasks.ListByTraineesAndTasks(dbc, []uuid.UUID{in.TraineeID}, taskIDs)
		if err != nil {
			return err
		}
		traineeTaskIDs := make([]uuid.UUID, 0, len(taskRows))
		for _, tt := range taskRows {
			traineeTaskIDs = append(traineeTaskIDs, tt.ID)
		}
		keys, err := a.deps.TraineeTaskFiles.DeleteByTraineeTasks(dbc, traineeTaskIDs)
		if err != nil {
			return err
		}
		out.RemovedBucketKeys = keys
		if err := a.deps.TraineeTasks.DeleteByIDs(dbc, traineeTaskIDs); err != nil {
			return err
		}
		if err := a.deps.TraineeSubjects.DeleteByCourseTrainee(dbc, ct.ID); err != nil {
			return err
		}
		if err := a.deps.CourseTrainees.Delete(dbc, ct.ID); err != nil {
			return err
		}

		// The removed trainee may have been the last one holding subjects or the course open.
		inProgress, err := a.deps.Subjects.ListInProgressIDsByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		c := a.cascade()
		if err := c.closeSubjects(dbc, inProgress, now, &out.Cascade); err != nil {
			return err
		}
		return c.closeCourse(dbc, course.ID, now, &out.Cascade)
	})
	if err == nil {
		a.deps.Base.Hooks.ObserveCascade(op, out.Cascade)
	}
	return out, err
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
