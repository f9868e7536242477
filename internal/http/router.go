package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/trainhub-backend/internal/domain/user"
	httpH "github.com/yungbote/trainhub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/trainhub-backend/internal/http/middleware"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/ratelimit"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	ServiceName string

	// Nil disables rate limiting.
	AuthLimiter *ratelimit.Limiter
	APILimiter  *ratelimit.Limiter

	AuthHandler         *httpH.AuthHandler
	AuthMiddleware      *httpMW.AuthMiddleware
	UserHandler         *httpH.UserHandler
	RealtimeHandler     *httpH.RealtimeHandler
	CourseHandler       *httpH.CourseHandler
	SubjectHandler      *httpH.SubjectHandler
	TaskHandler         *httpH.TaskHandler
	TraineeHandler      *httpH.TraineeHandler
	EvidenceHandler     *httpH.EvidenceHandler
	ReportHandler       *httpH.ReportHandler
	NotificationHandler *httpH.NotificationHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.Use(httpMW.Recovery(log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			public := api.Group("/auth", httpMW.RateLimit(cfg.AuthLimiter, cfg.Metrics, "auth"))
			public.POST("/login", cfg.AuthHandler.Login)
			public.POST("/refresh", cfg.AuthHandler.Refresh)
		}
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	protected.Use(httpMW.RateLimit(cfg.APILimiter, cfg.Metrics, "api"))

	// Auth (protected)
	if cfg.AuthHandler != nil {
		protected.POST("/auth/logout", cfg.AuthHandler.Logout)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		protected.POST("/sse/subscribe", cfg.RealtimeHandler.Subscribe)
		protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.Unsubscribe)
	}

	// Users
	if cfg.UserHandler != nil {
		protected.GET("/me", cfg.UserHandler.GetMe)
		users := protected.Group("/users", httpMW.RequireRole(user.RoleSupervisor))
		users.POST("", cfg.UserHandler.Create)
		users.GET("", cfg.UserHandler.List)
		users.PATCH("/:id/deactivate", cfg.UserHandler.Deactivate)
	}

	staff := httpMW.RequireRole(user.RoleTrainer)
	trainee := httpMW.RequireExactRole(user.RoleTrainee)

	// Courses
	if cfg.CourseHandler != nil {
		protected.GET("/courses", cfg.CourseHandler.List)
		protected.GET("/courses/:id", cfg.CourseHandler.Get)
		protected.GET("/courses/:id/progress", cfg.CourseHandler.Progress)

		protected.POST("/courses", staff, cfg.CourseHandler.Create)
		protected.PATCH("/courses/:id", staff, cfg.CourseHandler.Update)
		protected.DELETE("/courses/:id", staff, cfg.CourseHandler.Delete)
		protected.POST("/courses/:id/trainers", staff, cfg.CourseHandler.AssignTrainers)
		protected.DELETE("/courses/:id/trainers/:trainerId", staff, cfg.CourseHandler.RemoveTrainer)
		protected.POST("/courses/:id/start", staff, cfg.CourseHandler.Start)
		protected.POST("/courses/:id/finish", staff, cfg.CourseHandler.Finish)
		protected.POST("/courses/:id/trainees", staff, cfg.CourseHandler.Enroll)
		protected.DELETE("/courses/:id/trainees/:traineeId", staff, cfg.CourseHandler.RemoveTrainee)
		protected.PUT("/courses/:id/trainees/:traineeId/subjects/:subjectId/grade", staff, cfg.CourseHandler.SetGrade)
		protected.PUT("/courses/:id/trainees/:traineeId/result", staff, cfg.CourseHandler.SetResult)
	}

	// Subjects
	if cfg.SubjectHandler != nil {
		protected.POST("/courses/:id/subjects", staff, cfg.SubjectHandler.Create)
		protected.PATCH("/subjects/:id", staff, cfg.SubjectHandler.Update)
		protected.DELETE("/subjects/:id", staff, cfg.SubjectHandler.Delete)
		protected.POST("/subjects/:id/start", staff, cfg.SubjectHandler.Start)
		protected.POST("/subjects/:id/finish", staff, cfg.SubjectHandler.Finish)
	}

	// Tasks
	if cfg.TaskHandler != nil {
		protected.POST("/subjects/:id/tasks", staff, cfg.TaskHandler.Create)
		protected.PATCH("/tasks/:id", staff, cfg.TaskHandler.Update)
		protected.DELETE("/tasks/:id", staff, cfg.TaskHandler.Delete)
		protected.POST("/tasks/:id/complete", trainee, cfg.TaskHandler.Complete)
		protected.POST("/tasks/:id/uncomplete", trainee, cfg.TaskHandler.Uncomplete)
	}

	// Trainee self-service
	if cfg.TraineeHandler != nil {
		protected.GET("/trainee/courses", trainee, cfg.TraineeHandler.Courses)
		protected.POST("/trainee/subjects/:id/complete", trainee, cfg.TraineeHandler.CompleteSubject)
	}

	// Evidence files
	if cfg.EvidenceHandler != nil {
		protected.POST("/tasks/:id/files", trainee, cfg.EvidenceHandler.Upload)
		protected.GET("/tasks/:id/files", cfg.EvidenceHandler.List)
	}

	// Daily reports
	if cfg.ReportHandler != nil {
		protected.POST("/reports", trainee, cfg.ReportHandler.Create)
		protected.GET("/reports", cfg.ReportHandler.List)
	}

	// Notifications
	if cfg.NotificationHandler != nil {
		protected.GET("/notifications", cfg.NotificationHandler.List)
		protected.GET("/notifications/unread-count", cfg.NotificationHandler.UnreadCount)
		protected.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
	}

	return r
}
