package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const (
	MinGrade = 0
	MaxGrade = 100
)

type GradingService interface {
	SetSubjectGrade(ctx context.Context, courseID, traineeID, subjectID uuid.UUID, grade int, feedback string) (*training.TraineeSubject, error)
	SetCourseResult(ctx context.Context, courseID, traineeID uuid.UUID, status training.EnrollmentStatus) (*training.CourseTrainee, error)
}

type GradingServiceDeps struct {
	Log             *logger.Logger
	Subjects        repos.SubjectRepo
	CourseTrainees  repos.CourseTraineeRepo
	TraineeSubjects repos.TraineeSubjectRepo
	Authorizer      Authorizer
	Announcer       *Announcer
}

type gradingService struct {
	deps GradingServiceDeps
	log  *logger.Logger
}

func NewGradingService(deps GradingServiceDeps) GradingService {
	return &gradingService{deps: deps, log: deps.Log.With("service", "GradingService")}
}

func (s *gradingService) enrollment(ctx context.Context, op string, courseID, traineeID uuid.UUID) (*training.Course, *training.CourseTrainee, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, courseID)
	if err != nil {
		return nil, nil, err
	}
	ct, err := s.deps.CourseTrainees.GetByCourseAndTrainee(dbctx.Context{Ctx: ctx}, courseID, traineeID)
	if err != nil {
		return nil, nil, internal(op, err)
	}
	if ct == nil {
		return nil, nil, notFound(op, "enrollment")
	}
	return c, ct, nil
}

func (s *gradingService) SetSubjectGrade(ctx context.Context, courseID, traineeID, subjectID uuid.UUID, grade int, feedback string) (*training.TraineeSubject, error) {
	const op = "Grading.SetSubjectGrade"
	if grade < MinGrade || grade > MaxGrade {
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{
			{Field: "grade", Message: fmt.Sprintf("must be between %d and %d", MinGrade, MaxGrade)},
		})
	}
	_, ct, err := s.enrollment(ctx, op, courseID, traineeID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	subj, err := s.deps.Subjects.GetByID(dbc, subjectID)
	if err != nil {
		return nil, internal(op, err)
	}
	if subj == nil || subj.CourseID != courseID {
		return nil, notFound(op, "subject")
	}
	ts, err := s.deps.TraineeSubjects.GetByCourseTraineeAndSubject(dbc, ct.ID, subjectID)
	if err != nil {
		return nil, internal(op, err)
	}
	if ts == nil {
		return nil, notFound(op, "trainee subject")
	}
	if err := s.deps.TraineeSubjects.UpdateFields(dbc, ts.ID, map[string]interface{}{
		"grade":    grade,
		"feedback": feedback,
	}); err != nil {
		return nil, internal(op, err)
	}
	g := grade
	ts.Grade = &g
	ts.Feedback = feedback

	s.deps.Announcer.Announce(ctx, Announcement{
		UserIDs:  []uuid.UUID{traineeID},
		Type:     notify.TypeGradePosted,
		Title:    "Grade posted",
		Message:  fmt.Sprintf("You received %d/%d for %q.", grade, MaxGrade, subj.Title),
		LinkTo:   subjectLink(courseID, subjectID),
		Metadata: map[string]any{"grade": grade, "subjectId": subjectID},
	})
	return ts, nil
}

// SetCourseResult records the trainee's final outcome. ACTIVE is not a result.
func (s *gradingService) SetCourseResult(ctx context.Context, courseID, traineeID uuid.UUID, status training.EnrollmentStatus) (*training.CourseTrainee, error) {
	const op = "Grading.SetCourseResult"
	if !status.Valid() || status == training.EnrollmentActive {
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{
			{Field: "status", Message: "must be one of PASS FAIL RESIGN"},
		})
	}
	_, ct, err := s.enrollment(ctx, op, courseID, traineeID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.CourseTrainees.UpdateStatus(dbctx.Context{Ctx: ctx}, ct.ID, status); err != nil {
		return nil, internal(op, err)
	}
	ct.Status = status
	s.log.Info("course result set", "course_id", courseID, "trainee_id", traineeID, "status", status)
	return ct, nil
}
