package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/trainhub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/trainhub-backend/internal/http/middleware"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Auth         *httpH.AuthHandler
	User         *httpH.UserHandler
	Realtime     *httpH.RealtimeHandler
	Course       *httpH.CourseHandler
	Subject      *httpH.SubjectHandler
	Task         *httpH.TaskHandler
	Trainee      *httpH.TraineeHandler
	Evidence     *httpH.EvidenceHandler
	Report       *httpH.ReportHandler
	Notification *httpH.NotificationHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, s Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	v := validation.New()
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Auth:         httpH.NewAuthHandler(s.Auth, v),
		User:         httpH.NewUserHandler(s.User, v),
		Realtime:     httpH.NewRealtimeHandler(log, hub, s.Authorizer, v),
		Course:       httpH.NewCourseHandler(log, s.Course, s.Progress, s.Grading, v),
		Subject:      httpH.NewSubjectHandler(s.Subject, v),
		Task:         httpH.NewTaskHandler(s.Task, s.Progression, v),
		Trainee:      httpH.NewTraineeHandler(s.Progression, s.Progress),
		Evidence:     httpH.NewEvidenceHandler(s.Evidence),
		Report:       httpH.NewReportHandler(s.Report, v),
		Notification: httpH.NewNotificationHandler(s.Notifications),
	}
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, s.Auth),
	}
}
