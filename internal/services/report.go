package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/aggregates"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const reportDateLayout = "2006-01-02"

type CreateReportInput struct {
	CourseID uuid.UUID
	// Date is YYYY-MM-DD; empty means today (UTC).
	Date    string
	Content string
}

type ReportService interface {
	Create(ctx context.Context, in CreateReportInput) (*training.DailyReport, error)
	List(ctx context.Context, courseID *uuid.UUID, page Page) (PageResult[*training.DailyReport], error)
}

type reportService struct {
	log        *logger.Logger
	reports    repos.DailyReportRepo
	authorizer Authorizer
}

func NewReportService(log *logger.Logger, reports repos.DailyReportRepo, authorizer Authorizer) ReportService {
	return &reportService{log: log.With("service", "ReportService"), reports: reports, authorizer: authorizer}
}

func (s *reportService) Create(ctx context.Context, in CreateReportInput) (*training.DailyReport, error) {
	const op = "Report.Create"
	a, err := requireTrainee(ctx, op)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = nowUTC().Format(reportDateLayout)
	}
	var fields []domainagg.FieldError
	if content == "" {
		fields = append(fields, domainagg.FieldError{Field: "content", Message: "this field is required"})
	}
	if _, err := time.Parse(reportDateLayout, date); err != nil {
		fields = append(fields, domainagg.FieldError{Field: "date", Message: "must be YYYY-MM-DD"})
	}
	if len(fields) > 0 {
		return nil, domainagg.NewValidationError(op, "invalid request", fields)
	}
	enrolled, err := s.authorizer.IsEnrolled(ctx, a.UserID, in.CourseID)
	if err != nil {
		return nil, internal(op, err)
	}
	if !enrolled {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not enrolled in this course", nil)
	}
	r := &training.DailyReport{
		TraineeID:  a.UserID,
		CourseID:   in.CourseID,
		ReportDate: date,
		Content:    content,
	}
	if err := s.reports.Create(dbctx.Context{Ctx: ctx}, r); err != nil {
		if domainagg.IsCode(aggregates.MapError(op, err), domainagg.CodeConflict) {
			return nil, domainagg.NewError(domainagg.CodeConflict, op, "a report for this course and day already exists", err)
		}
		return nil, internal(op, err)
	}
	return r, nil
}

func (s *reportService) List(ctx context.Context, courseID *uuid.UUID, page Page) (PageResult[*training.DailyReport], error) {
	const op = "Report.List"
	a, err := requireActor(ctx)
	if err != nil {
		return PageResult[*training.DailyReport]{}, err
	}
	filter := repos.DailyReportFilter{CourseID: courseID}
	id := a.UserID
	switch {
	case a.role == user.RoleTrainee:
		filter.TraineeID = &id
	case a.role == user.RoleTrainer:
		filter.ManagedBy = &id
	}
	page = page.Normalize()
	rows, total, err := s.reports.List(dbctx.Context{Ctx: ctx}, filter, page.Limit, page.Offset())
	if err != nil {
		return PageResult[*training.DailyReport]{}, internal(op, err)
	}
	return newPageResult(rows, total, page), nil
}
