package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Order       int
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Order       *int
}

type TaskService interface {
	Create(ctx context.Context, subjectID uuid.UUID, in CreateTaskInput) (*training.Task, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateTaskInput) (*training.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TaskServiceDeps struct {
	Log        *logger.Logger
	Subjects   repos.SubjectRepo
	Tasks      repos.TaskRepo
	Authorizer Authorizer
	Lifecycle  domainagg.LifecycleAggregate
}

type taskService struct {
	deps TaskServiceDeps
	log  *logger.Logger
}

func NewTaskService(deps TaskServiceDeps) TaskService {
	return &taskService{deps: deps, log: deps.Log.With("service", "TaskService")}
}

func (s *taskService) authorizeSubject(ctx context.Context, op string, subjectID uuid.UUID) (*training.Subject, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	subj, err := s.deps.Subjects.GetByID(dbctx.Context{Ctx: ctx}, subjectID)
	if err != nil {
		return nil, internal(op, err)
	}
	if subj == nil {
		return nil, notFound(op, "subject")
	}
	if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, subj.CourseID); err != nil {
		return nil, err
	}
	return subj, nil
}

func (s *taskService) authorizeTask(ctx context.Context, op string, id uuid.UUID) (*training.Task, error) {
	t, err := s.deps.Tasks.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if t == nil {
		return nil, notFound(op, "task")
	}
	if _, err := s.authorizeSubject(ctx, op, t.SubjectID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *taskService) Create(ctx context.Context, subjectID uuid.UUID, in CreateTaskInput) (*training.Task, error) {
	const op = "Task.Create"
	if _, err := s.authorizeSubject(ctx, op, subjectID); err != nil {
		return nil, err
	}
	return s.deps.Lifecycle.CreateTask(ctx, domainagg.CreateTaskInput{
		SubjectID:   subjectID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Order:       in.Order,
	})
}

func (s *taskService) Update(ctx context.Context, id uuid.UUID, in UpdateTaskInput) (*training.Task, error) {
	const op = "Task.Update"
	t, err := s.authorizeTask(ctx, op, id)
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
		t.Title = title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
		t.Description = *in.Description
	}
	if in.DueDate != nil {
		updates["due_date"] = in.DueDate
		t.DueDate = in.DueDate
	}
	if in.Order != nil {
		if *in.Order < 1 {
			return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "order", Message: "must be at least 1"}})
		}
		updates["sort_order"] = *in.Order
		t.Order = *in.Order
	}
	if len(updates) == 0 {
		return t, nil
	}
	if err := s.deps.Tasks.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, internal(op, err)
	}
	return t, nil
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "Task.Delete"
	t, err := s.authorizeTask(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.deps.Lifecycle.DeleteTask(ctx, domainagg.DeleteTaskInput{TaskID: id}); err != nil {
		return err
	}
	s.log.Info("task deleted", "task_id", id, "subject_id", t.SubjectID)
	return nil
}
