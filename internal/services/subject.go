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
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

type CreateSubjectInput struct {
	Title       string
	Description string
	Order       int
	StartDate   *time.Time
	EndDate     *time.Time
}

type UpdateSubjectInput struct {
	Title       *string
	Description *string
	Order       *int
	StartDate   *time.Time
	EndDate     *time.Time
}

type SubjectService interface {
	Create(ctx context.Context, courseID uuid.UUID, in CreateSubjectInput) (*training.Subject, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateSubjectInput) (*training.Subject, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Start(ctx context.Context, id uuid.UUID) (domainagg.StartSubjectResult, error)
	Finish(ctx context.Context, id uuid.UUID) (domainagg.FinishSubjectResult, error)
}

type SubjectServiceDeps struct {
	Log        *logger.Logger
	Subjects   repos.SubjectRepo
	Trainees   repos.CourseTraineeRepo
	Authorizer Authorizer
	Lifecycle  domainagg.LifecycleAggregate
	Announcer  *Announcer
}

type subjectService struct {
	deps SubjectServiceDeps
	log  *logger.Logger
}

func NewSubjectService(deps SubjectServiceDeps) SubjectService {
	return &subjectService{deps: deps, log: deps.Log.With("service", "SubjectService")}
}

// manage loads the subject and checks the actor may manage its course.
func (s *subjectService) manage(ctx context.Context, op string, id uuid.UUID) (*training.Subject, *training.Course, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, nil, err
	}
	subj, err := s.deps.Subjects.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, nil, internal(op, err)
	}
	if subj == nil {
		return nil, nil, notFound(op, "subject")
	}
	c, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, subj.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return subj, c, nil
}

func (s *subjectService) Create(ctx context.Context, courseID uuid.UUID, in CreateSubjectInput) (*training.Subject, error) {
	const op = "Subject.Create"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, courseID); err != nil {
		return nil, err
	}
	if err := checkDates(op, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	subj, err := s.deps.Lifecycle.CreateSubject(ctx, domainagg.CreateSubjectInput{
		CourseID:    courseID,
		Title:       in.Title,
		Description: in.Description,
		Order:       in.Order,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	})
	if err != nil {
		return nil, err
	}
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(courseID), realtime.SSEEventSubjectUpdated, subj)
	return subj, nil
}

func (s *subjectService) Update(ctx context.Context, id uuid.UUID, in UpdateSubjectInput) (*training.Subject, error) {
	const op = "Subject.Update"
	subj, _, err := s.manage(ctx, op, id)
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
		subj.Title = title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
		subj.Description = *in.Description
	}
	if in.Order != nil {
		if *in.Order < 1 {
			return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "order", Message: "must be at least 1"}})
		}
		updates["sort_order"] = *in.Order
		subj.Order = *in.Order
	}
	start, end := subj.StartDate, subj.EndDate
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
	subj.StartDate, subj.EndDate = start, end
	if len(updates) == 0 {
		return subj, nil
	}
	if err := s.deps.Subjects.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, internal(op, err)
	}
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(subj.CourseID), realtime.SSEEventSubjectUpdated, subj)
	return subj, nil
}

func (s *subjectService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "Subject.Delete"
	subj, course, err := s.manage(ctx, op, id)
	if err != nil {
		return err
	}
	res, err := s.deps.Lifecycle.DeleteSubject(ctx, domainagg.SubjectTransitionInput{SubjectID: id, At: nowUTC()})
	if err != nil {
		return err
	}
	s.log.Info("subject deleted", "subject_id", id, "course_id", subj.CourseID, "course_finished", res.Cascade.CourseFinished)
	if res.Cascade.CourseFinished {
		ids, err := s.deps.Trainees.TraineeIDsByCourse(dbctx.Context{Ctx: ctx}, course.ID)
		if err != nil {
			s.log.Warn("load course trainees failed", "course_id", course.ID, "error", err)
		}
		s.deps.Announcer.CourseFinished(ctx, course, ids)
	}
	return nil
}

func (s *subjectService) Start(ctx context.Context, id uuid.UUID) (domainagg.StartSubjectResult, error) {
	const op = "Subject.Start"
	subj, _, err := s.manage(ctx, op, id)
	if err != nil {
		return domainagg.StartSubjectResult{}, err
	}
	res, err := s.deps.Lifecycle.StartSubject(ctx, domainagg.SubjectTransitionInput{SubjectID: id, At: nowUTC()})
	if err != nil {
		return res, err
	}
	s.deps.Announcer.Announce(ctx, Announcement{
		UserIDs: res.TraineeIDs,
		Type:    notify.TypeSubjectStarted,
		Title:   "Subject started",
		Message: fmt.Sprintf("The subject %q has started.", subj.Title),
		LinkTo:  subjectLink(subj.CourseID, subj.ID),
	})
	s.deps.Announcer.Publish(ctx, realtime.CourseChannel(subj.CourseID), realtime.SSEEventSubjectUpdated, map[string]any{
		"courseId": subj.CourseID, "subjectId": subj.ID, "status": training.StatusInProgress,
	})
	return res, nil
}

// Finish closes the subject for everyone. The course closes too when this was its last
// open subject.
func (s *subjectService) Finish(ctx context.Context, id uuid.UUID) (domainagg.FinishSubjectResult, error) {
	const op = "Subject.Finish"
	subj, course, err := s.manage(ctx, op, id)
	if err != nil {
		return domainagg.FinishSubjectResult{}, err
	}
	res, err := s.deps.Lifecycle.FinishSubject(ctx, domainagg.SubjectTransitionInput{SubjectID: id, At: nowUTC()})
	if err != nil {
		return res, err
	}
	s.log.Info("subject finished", "subject_id", id, "course_id", subj.CourseID,
		"trainee_subjects", res.TraineeSubjectsFinished, "course_finished", res.Cascade.CourseFinished)
	s.deps.Announcer.SubjectFinished(ctx, subj, res.TraineeIDs)
	if res.Cascade.CourseFinished {
		ids, err := s.deps.Trainees.TraineeIDsByCourse(dbctx.Context{Ctx: ctx}, course.ID)
		if err != nil {
			s.log.Warn("load course trainees failed", "course_id", course.ID, "error", err)
		}
		s.deps.Announcer.CourseFinished(ctx, course, ids)
	}
	return res, nil
}
