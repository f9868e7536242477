package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/gcp"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const MaxEvidenceBytes = 25 << 20

type EvidenceUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type EvidenceService interface {
	Upload(ctx context.Context, taskID uuid.UUID, in EvidenceUpload) (*training.TraineeTaskFile, error)
	// List returns the caller's files for the task. Managers may pass a trainee id to
	// read someone else's; trainees always get their own.
	List(ctx context.Context, taskID, traineeID uuid.UUID) ([]*training.TraineeTaskFile, error)
}

type EvidenceServiceDeps struct {
	Log          *logger.Logger
	Subjects     repos.SubjectRepo
	Tasks        repos.TaskRepo
	TraineeTasks repos.TraineeTaskRepo
	Files        repos.TraineeTaskFileRepo
	Progression  domainagg.ProgressionAggregate
	Authorizer   Authorizer
	Bucket       gcp.BucketService
	Metrics      *observability.Metrics
}

type evidenceService struct {
	deps EvidenceServiceDeps
	log  *logger.Logger
}

func NewEvidenceService(deps EvidenceServiceDeps) EvidenceService {
	return &evidenceService{deps: deps, log: deps.Log.With("service", "EvidenceService")}
}

func (s *evidenceService) Upload(ctx context.Context, taskID uuid.UUID, in EvidenceUpload) (*training.TraineeTaskFile, error) {
	const op = "Evidence.Upload"
	a, err := requireTrainee(ctx, op)
	if err != nil {
		return nil, err
	}
	name := cleanFileName(in.FileName)
	switch {
	case name == "":
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "file", Message: "file name is required"}})
	case in.Size > MaxEvidenceBytes:
		s.deps.Metrics.ObserveEvidenceUpload("rejected", in.Size)
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "file", Message: "file is too large"}})
	}
	if s.deps.Bucket == nil {
		return nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, "evidence storage is not configured", nil)
	}

	tt, err := s.deps.Progression.EnsureTraineeTask(ctx, domainagg.EnsureTraineeTaskInput{
		TraineeID: a.UserID,
		TaskID:    taskID,
		At:        nowUTC(),
	})
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("trainee_tasks/%s/%s-%s", tt.ID, uuid.NewString(), name)
	size, err := s.deps.Bucket.UploadFile(ctx, key, in.ContentType, in.Body)
	if err != nil {
		s.deps.Metrics.ObserveEvidenceUpload("failed", in.Size)
		return nil, internal(op, err)
	}
	f := &training.TraineeTaskFile{
		TraineeTaskID: tt.ID,
		FileName:      name,
		BucketKey:     key,
		ContentType:   in.ContentType,
		SizeBytes:     size,
		URL:           s.deps.Bucket.GetPublicURL(key),
	}
	if err := s.deps.Files.Create(dbctx.Context{Ctx: ctx}, f); err != nil {
		if derr := s.deps.Bucket.DeleteFile(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn("orphaned evidence object", "key", key, "error", derr)
		}
		s.deps.Metrics.ObserveEvidenceUpload("failed", size)
		return nil, internal(op, err)
	}
	s.deps.Metrics.ObserveEvidenceUpload("stored", size)
	s.log.Info("evidence uploaded", "trainee_task_id", tt.ID, "size", size)
	return f, nil
}

func (s *evidenceService) List(ctx context.Context, taskID, traineeID uuid.UUID) ([]*training.TraineeTaskFile, error) {
	const op = "Evidence.List"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	task, err := s.deps.Tasks.GetByID(dbc, taskID)
	if err != nil {
		return nil, internal(op, err)
	}
	if task == nil {
		return nil, notFound(op, "task")
	}
	if a.role == user.RoleTrainee || traineeID == uuid.Nil {
		traineeID = a.UserID
	}
	if traineeID != a.UserID {
		subj, err := s.deps.Subjects.GetByID(dbc, task.SubjectID)
		if err != nil {
			return nil, internal(op, err)
		}
		if subj == nil {
			return nil, notFound(op, "subject")
		}
		if _, err := s.deps.Authorizer.CanManageCourse(ctx, a.Actor, subj.CourseID); err != nil {
			return nil, err
		}
	}
	tt, err := s.deps.TraineeTasks.GetByTraineeAndTask(dbc, traineeID, taskID)
	if err != nil {
		return nil, internal(op, err)
	}
	if tt == nil {
		return []*training.TraineeTaskFile{}, nil
	}
	files, err := s.deps.Files.ListByTraineeTask(dbc, tt.ID)
	if err != nil {
		return nil, internal(op, err)
	}
	return files, nil
}

// cleanFileName keeps the base name and drops characters that are awkward in object keys.
func cleanFileName(raw string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}
