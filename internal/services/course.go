package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/gcp"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

type CreateCourseInput struct {
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateCourseInput applies only the non-nil fields.
type UpdateCourseInput struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type CourseService interface {
	Create(ctx context.Context, in CreateCourseInput) (*training.Course, error)
	List(ctx context.Context, status training.Status, page Page) (PageResult[*training.Course], error)
	Get(ctx context.Context, id uuid.UUID) (*training.Course, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateCourseInput) (*training.Course, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AssignTrainers(ctx context.Context, id uuid.UUID, trainerIDs []uuid.UUID) ([]uuid.UUID, error)
	RemoveTrainer(ctx context.Context, id, trainerID uuid.UUID) error

	Start(ctx context.Context, id uuid.UUID) (domainagg.StartCourseResult, error)
	Finish(ctx context.Context, id uuid.UUID) (domainagg.FinishCourseResult, error)

	Enroll(ctx context.Context, id uuid.UUID, traineeIDs []uuid.UUID, activate bool) (domainagg.EnrollTraineesResult, error)
	RemoveTrainee(ctx context.Context, id, traineeID uuid.UUID) (domainagg.RemoveTraineeResult, error)
}

type CourseServiceDeps struct {
	Log        *logger.Logger
	Courses    repos.CourseRepo
	Trainers   repos.CourseTrainerRepo
	Users      repos.UserRepo
	Trainees   repos.CourseTraineeRepo
	Authorizer Authorizer
	Lifecycle  domainagg.LifecycleAggregate
	Enrollment domainagg.EnrollmentAggregate
	Bucket     gcp.BucketService
	Announcer  *Announcer
}

type courseService struct {
	deps CourseServiceDeps
	log  *logger.Logger
}

func NewCourseService(deps CourseServiceDeps) CourseService {
	return &courseService{deps: deps, log: deps.Log.With("service", "CourseService")}
}

func (s *courseService) Create(ctx context.Context, in CreateCourseInput) (*training.Course, error) {
	const op = "Course.Create"
	a, err := requireRole(ctx, op, user.RoleTrainer)
	if err != nil {
		return nil, err
	}
	if err := checkDates(op, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	c := &training.Course{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      training.StatusNotStarted,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatorID:   a.UserID,
	}
	if c.Title == "" {
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "title", Message: "this field is required"}})
	}
	if err := s.deps.Courses.Create(dbctx.Context{Ctx: ctx}, c); err != nil {
		return nil, internal(op, err)
	}
	s.log.Info("course created", "course_id", c.ID, "creator_id", a.UserID)
	return c, nil
}

// List is scoped by role: trainees see their enrollments, trainers the courses they
// manage, supervisors and admins everything.
func (s *courseService) List(ctx context.Context, status training.Status, page Page) (PageResult[*training.Course], error) {
	const op = "Course.List"
	a, err := requireActor(ctx)
	if err != nil {
		return PageResult[*training.Course]{}, err
	}
	filter := repos.CourseFilter{Status: status}
	switch {
	case a.role.AtLeast(user.RoleSupervisor):
	case a.role == user.RoleTrainer:
		id := a.UserID
		filter.TrainerID = &id
	default:
		id := a.UserID
		filter.TraineeID = &id
	}
	page = page.Normalize()
	rows, total, err := s.deps.Courses.List(dbctx.Context{Ctx: ctx}, filter, page.Limit, page.Offset())
	if err != nil {
		return PageResult[*training.Course]{}, internal(op, err)
	}
	return newPageResult(rows, total, page), nil
}

func (s *courseService) Get(ctx context.Context, id uuid.UUID) (*training.Course, error) {
	const op = "Course.Get"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Authorizer.CanViewCourse(ctx, a.Actor, id); err != nil {
		return nil, err
	}
	c, err := s.deps.Courses.GetWithStructure(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if c == nil {
		return nil, notFound(op, "course")
	}
	return c, nil
}

func (s *courseService) Update(ctx context.Context, id uuid.UUID, in UpdateCourseInput) (*training.Course, error) {
	const op = "Course.Update"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "title", Message: "this field cannot be blank"}})
		}
		updates["title"] = title
		c.Title = title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
		c.Description = *in.Description
	}
	start, end := c.StartDate, c.EndDate
	if in.StartDate != nil {
		start = in.StartDate
		updates["start_date"] = in.StartDate
	}
	if in.EndDate != nil {
		end = in.EndDate
		updates["end_date"] = in.EndDate
	}
	if err := checkDates(op, start, end); err != nil {
		return nil, err
	}
	c.StartDate, c.EndDate = start, end
	if len(updates) == 0 {
		return c, nil
	}
	if err := s.deps.Courses.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, internal(op, err)
	}
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(id), realtime.SSEEventCourseUpdated, c)
	return c, nil
}

func (s *courseService) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id); err != nil {
		return err
	}
	if err := s.deps.Lifecycle.DeleteCourse(ctx, domainagg.CourseTransitionInput{CourseID: id, At: nowUTC()}); err != nil {
		return err
	}
	s.log.Info("course deleted", "course_id", id, "by", a.UserID)
	return nil
}

// AssignTrainers adds trainers to the course. Every id must be an active user ranked
// TRAINER or above; existing assignments are kept.
func (s *courseService) AssignTrainers(ctx context.Context, id uuid.UUID, trainerIDs []uuid.UUID) ([]uuid.UUID, error) {
	const op = "Course.AssignTrainers"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id); err != nil {
		return nil, err
	}
	ids := dedupeIDs(trainerIDs)
	if len(ids) == 0 {
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "trainerIds", Message: "must contain at least one trainer"}})
	}
	dbc := dbctx.Context{Ctx: ctx}
	users, err := s.deps.Users.GetByIDs(dbc, ids)
	if err != nil {
		return nil, internal(op, err)
	}
	byID := make(map[uuid.UUID]*user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	var fields []domainagg.FieldError
	rows := make([]*training.CourseTrainer, 0, len(ids))
	for i, tid := range ids {
		u := byID[tid]
		field := fmt.Sprintf("trainerIds[%d]", i)
		switch {
		case u == nil:
			fields = append(fields, domainagg.FieldError{Field: field, Message: "user not found"})
		case !u.Role.AtLeast(user.RoleTrainer):
			fields = append(fields, domainagg.FieldError{Field: field, Message: "user is not a trainer"})
		case !u.IsActive:
			fields = append(fields, domainagg.FieldError{Field: field, Message: "user is inactive"})
		default:
			rows = append(rows, &training.CourseTrainer{CourseID: id, TrainerID: tid})
		}
	}
	if len(fields) > 0 {
		return nil, domainagg.NewValidationError(op, "invalid trainers", fields)
	}
	if err := s.deps.Trainers.Create(dbc, rows); err != nil {
		return nil, internal(op, err)
	}
	assigned, err := s.deps.Trainers.ListTrainerIDs(dbc, id)
	if err != nil {
		return nil, internal(op, err)
	}
	return assigned, nil
}

func (s *courseService) RemoveTrainer(ctx context.Context, id, trainerID uuid.UUID) error {
	const op = "Course.RemoveTrainer"
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id); err != nil {
		return err
	}
	n, err := s.deps.Trainers.Delete(dbctx.Context{Ctx: ctx}, id, trainerID)
	if err != nil {
		return internal(op, err)
	}
	if n == 0 {
		return notFound(op, "trainer assignment")
	}
	return nil
}

func (s *courseService) Start(ctx context.Context, id uuid.UUID) (domainagg.StartCourseResult, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return domainagg.StartCourseResult{}, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id)
	if err != nil {
		return domainagg.StartCourseResult{}, err
	}
	res, err := s.deps.Lifecycle.StartCourse(ctx, domainagg.CourseTransitionInput{CourseID: id, At: nowUTC()})
	if err != nil {
		return res, err
	}
	s.log.Info("course started", "course_id", id, "by", a.UserID)
	s.deps.Announcer.Announce(ctx, Announcement{
		UserIDs: res.TraineeIDs,
		Type:    notify.TypeCourseStarted,
		Title:   "Course started",
		Message: fmt.Sprintf("The course %q has started.", c.Title),
		LinkTo:  courseLink(id),
	})
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(id), realtime.SSEEventCourseUpdated, map[string]any{
		"courseId": id, "status": training.StatusInProgress,
	})
	return res, nil
}

func (s *courseService) Finish(ctx context.Context, id uuid.UUID) (domainagg.FinishCourseResult, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return domainagg.FinishCourseResult{}, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id)
	if err != nil {
		return domainagg.FinishCourseResult{}, err
	}
	res, err := s.deps.Lifecycle.FinishCourse(ctx, domainagg.CourseTransitionInput{CourseID: id, At: nowUTC()})
	if err != nil {
		return res, err
	}
	s.log.Info("course finished", "course_id", id, "by", a.UserID, "subjects_finished", res.SubjectsFinished)
	s.deps.Announcer.CourseFinished(ctx, c, res.TraineeIDs)
	return res, nil
}

func (s *courseService) Enroll(ctx context.Context, id uuid.UUID, traineeIDs []uuid.UUID, activate bool) (domainagg.EnrollTraineesResult, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return domainagg.EnrollTraineesResult{}, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id)
	if err != nil {
		return domainagg.EnrollTraineesResult{}, err
	}
	res, err := s.deps.Enrollment.EnrollTrainees(ctx, domainagg.EnrollTraineesInput{
		CourseID:   id,
		TraineeIDs: traineeIDs,
		Activate:   activate,
		At:         nowUTC(),
	})
	if err != nil {
		return res, err
	}
	s.log.Info("trainees enrolled", "course_id", id, "enrolled", len(res.Enrolled), "already", len(res.AlreadyEnrolled))
	s.deps.Announcer.Announce(ctx, Announcement{
		UserIDs:   res.Enrolled,
		Type:      notify.TypeEnrolled,
		Title:     "New course enrollment",
		Message:   fmt.Sprintf("You have been enrolled in %q.", c.Title),
		LinkTo:    courseLink(id),
		EmailKind: EmailKindEnrollment,
	})
	return res, nil
}

// RemoveTrainee drops the enrollment, then deletes the trainee's evidence objects.
// Bucket cleanup runs after commit and only logs failures.
func (s *courseService) RemoveTrainee(ctx context.Context, id, traineeID uuid.UUID) (domainagg.RemoveTraineeResult, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return domainagg.RemoveTraineeResult{}, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, id)
	if err != nil {
		return domainagg.RemoveTraineeResult{}, err
	}
	res, err := s.deps.Enrollment.RemoveTrainee(ctx, domainagg.RemoveTraineeInput{
		CourseID:  id,
		TraineeID: traineeID,
		At:        nowUTC(),
	})
	if err != nil {
		return res, err
	}
	s.log.Info("trainee removed", "course_id", id, "trainee_id", traineeID, "files", len(res.RemovedBucketKeys))
	if s.deps.Bucket != nil && len(res.RemovedBucketKeys) > 0 {
		if err := s.deps.Bucket.DeleteKeys(context.WithoutCancel(ctx), res.RemovedBucketKeys); err != nil {
			s.log.Warn("evidence cleanup failed", "course_id", id, "trainee_id", traineeID, "error", err)
		}
	}
	if res.Cascade.CourseFinished {
		s.deps.Announcer.CourseFinished(ctx, c, s.courseTraineeIDs(ctx, id))
	}
	return res, nil
}

func (s *courseService) courseTraineeIDs(ctx context.Context, id uuid.UUID) []uuid.UUID {
	ids, err := s.deps.Trainees.TraineeIDsByCourse(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		s.log.Warn("load course trainees failed", "course_id", id, "error", err)
	}
	return ids
}

func checkDates(op string, start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "endDate", Message: "must not be before startDate"}})
	}
	return nil
}
