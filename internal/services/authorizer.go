package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

// Authorizer answers course-scoped permission questions for the services.
// Supervisors and admins manage every course; trainers manage courses they created
// or are assigned to; trainees manage nothing.
type Authorizer interface {
	// CanManageCourse returns the course when the actor may manage it.
	CanManageCourse(ctx context.Context, actor *ctxutil.Actor, courseID uuid.UUID) (*training.Course, error)
	// CanViewCourse additionally admits trainees enrolled in the course.
	CanViewCourse(ctx context.Context, actor *ctxutil.Actor, courseID uuid.UUID) (*training.Course, error)
	IsEnrolled(ctx context.Context, traineeID, courseID uuid.UUID) (bool, error)
}

type courseAuthorizer struct {
	courses        repos.CourseRepo
	trainers       repos.CourseTrainerRepo
	courseTrainees repos.CourseTraineeRepo
}

func NewAuthorizer(courses repos.CourseRepo, trainers repos.CourseTrainerRepo, courseTrainees repos.CourseTraineeRepo) Authorizer {
	return &courseAuthorizer{courses: courses, trainers: trainers, courseTrainees: courseTrainees}
}

func (a *courseAuthorizer) CanManageCourse(ctx context.Context, actor *ctxutil.Actor, courseID uuid.UUID) (*training.Course, error) {
	const op = "Authorizer.CanManageCourse"
	course, err := a.load(ctx, op, actor, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := a.manages(ctx, actor, course)
	if err != nil {
		return nil, internal(op, err)
	}
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not allowed to manage this course", nil)
	}
	return course, nil
}

func (a *courseAuthorizer) CanViewCourse(ctx context.Context, actor *ctxutil.Actor, courseID uuid.UUID) (*training.Course, error) {
	const op = "Authorizer.CanViewCourse"
	course, err := a.load(ctx, op, actor, courseID)
	if err != nil {
		return nil, err
	}
	if user.ParseRole(actor.Role) == user.RoleTrainee {
		enrolled, err := a.IsEnrolled(ctx, actor.UserID, courseID)
		if err != nil {
			return nil, internal(op, err)
		}
		if !enrolled {
			return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not enrolled in this course", nil)
		}
		return course, nil
	}
	ok, err := a.manages(ctx, actor, course)
	if err != nil {
		return nil, internal(op, err)
	}
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not allowed to view this course", nil)
	}
	return course, nil
}

func (a *courseAuthorizer) IsEnrolled(ctx context.Context, traineeID, courseID uuid.UUID) (bool, error) {
	ct, err := a.courseTrainees.GetByCourseAndTrainee(dbctx.Context{Ctx: ctx}, courseID, traineeID)
	if err != nil {
		return false, err
	}
	return ct != nil, nil
}

func (a *courseAuthorizer) load(ctx context.Context, op string, actor *ctxutil.Actor, courseID uuid.UUID) (*training.Course, error) {
	if actor == nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "no actor", nil)
	}
	course, err := a.courses.GetByID(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil {
		return nil, internal(op, err)
	}
	if course == nil {
		return nil, notFound(op, "course")
	}
	return course, nil
}

func (a *courseAuthorizer) manages(ctx context.Context, actor *ctxutil.Actor, course *training.Course) (bool, error) {
	role := user.ParseRole(actor.Role)
	switch {
	case role.AtLeast(user.RoleSupervisor):
		return true, nil
	case role == user.RoleTrainer:
		if course.CreatorID == actor.UserID {
			return true, nil
		}
		return a.trainers.Exists(dbctx.Context{Ctx: ctx}, course.ID, actor.UserID)
	default:
		return false, nil
	}
}
