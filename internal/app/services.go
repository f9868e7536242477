package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/ratelimit"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type Aggregates struct {
	Enrollment  domainagg.EnrollmentAggregate
	Lifecycle   domainagg.LifecycleAggregate
	Progression domainagg.ProgressionAggregate
}

type Services struct {
	Auth services.AuthService
	User services.UserService

	Authorizer    services.Authorizer
	Notifications services.NotificationService
	EmailQueue    services.EmailQueue
	Announcer     *services.Announcer

	Course      services.CourseService
	Subject     services.SubjectService
	Task        services.TaskService
	Progression services.ProgressionService
	Progress    services.ProgressService
	Grading     services.GradingService
	Evidence    services.EvidenceService
	Report      services.ReportService
	Reminder    services.ReminderService

	AuthLimiter *ratelimit.Limiter
	APILimiter  *ratelimit.Limiter
}

func wireAggregates(db *gorm.DB, log *logger.Logger, lockTimeout time.Duration, r Repos, metrics *observability.Metrics) Aggregates {
	log.Info("Wiring aggregates...")
	base := aggregates.BaseDeps{
		DB:     db,
		Log:    log,
		Runner: aggregates.NewGormTxRunner(db, lockTimeout),
		Hooks:  aggregates.NewObservabilityHooks(metrics),
	}
	return Aggregates{
		Enrollment: aggregates.NewEnrollmentAggregate(aggregates.EnrollmentAggregateDeps{
			Base:             base,
			Users:            r.User,
			Courses:          r.Course,
			Subjects:         r.Subject,
			Tasks:            r.Task,
			CourseTrainees:   r.CourseTrainee,
			TraineeSubjects:  r.TraineeSubject,
			TraineeTasks:     r.TraineeTask,
			TraineeTaskFiles: r.TraineeTaskFile,
		}),
		Lifecycle: aggregates.NewLifecycleAggregate(aggregates.LifecycleAggregateDeps{
			Base:             base,
			Courses:          r.Course,
			CourseTrainers:   r.CourseTrainer,
			Subjects:         r.Subject,
			Tasks:            r.Task,
			CourseTrainees:   r.CourseTrainee,
			TraineeSubjects:  r.TraineeSubject,
			TraineeTasks:     r.TraineeTask,
			TraineeTaskFiles: r.TraineeTaskFile,
		}),
		Progression: aggregates.NewProgressionAggregate(aggregates.ProgressionAggregateDeps{
			Base:            base,
			Courses:         r.Course,
			Subjects:        r.Subject,
			Tasks:           r.Task,
			CourseTrainees:  r.CourseTrainee,
			TraineeSubjects: r.TraineeSubject,
			TraineeTasks:    r.TraineeTask,
		}),
	}
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	aggs := wireAggregates(db, log, cfg.DBLockTimeout, r, metrics)

	authz := services.NewAuthorizer(r.Course, r.CourseTrainer, r.CourseTrainee)
	notifications := services.NewNotificationService(log, r.Notification, clients.SSEBus, metrics)
	emails := services.NewEmailQueue(log, r.EmailJob, cfg.EmailMaxAttempts)
	announcer := services.NewAnnouncer(log, r.User, notifications, emails, clients.SSEBus, cfg.FrontendURL)

	var limiterStore ratelimit.Store
	if clients.Redis != nil {
		limiterStore = ratelimit.NewRedisStore(clients.Redis)
	}

	return Services{
		Auth: services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		User: services.NewUserService(db, log, r.User, r.UserToken),

		Authorizer:    authz,
		Notifications: notifications,
		EmailQueue:    emails,
		Announcer:     announcer,

		Course: services.NewCourseService(services.CourseServiceDeps{
			Log:        log,
			Courses:    r.Course,
			Trainers:   r.CourseTrainer,
			Users:      r.User,
			Trainees:   r.CourseTrainee,
			Authorizer: authz,
			Lifecycle:  aggs.Lifecycle,
			Enrollment: aggs.Enrollment,
			Bucket:     clients.Evidence,
			Announcer:  announcer,
		}),
		Subject: services.NewSubjectService(services.SubjectServiceDeps{
			Log:        log,
			Subjects:   r.Subject,
			Trainees:   r.CourseTrainee,
			Authorizer: authz,
			Lifecycle:  aggs.Lifecycle,
			Announcer:  announcer,
		}),
		Task: services.NewTaskService(services.TaskServiceDeps{
			Log:        log,
			Subjects:   r.Subject,
			Tasks:      r.Task,
			Authorizer: authz,
			Lifecycle:  aggs.Lifecycle,
		}),
		Progression: services.NewProgressionService(services.ProgressionServiceDeps{
			Log:         log,
			Courses:     r.Course,
			Subjects:    r.Subject,
			Trainees:    r.CourseTrainee,
			Progression: aggs.Progression,
			Announcer:   announcer,
		}),
		Progress: services.NewProgressService(services.ProgressServiceDeps{
			Log:             log,
			Users:           r.User,
			Courses:         r.Course,
			Subjects:        r.Subject,
			Tasks:           r.Task,
			CourseTrainees:  r.CourseTrainee,
			TraineeSubjects: r.TraineeSubject,
			TraineeTasks:    r.TraineeTask,
			Authorizer:      authz,
		}),
		Grading: services.NewGradingService(services.GradingServiceDeps{
			Log:             log,
			Subjects:        r.Subject,
			CourseTrainees:  r.CourseTrainee,
			TraineeSubjects: r.TraineeSubject,
			Authorizer:      authz,
			Announcer:       announcer,
		}),
		Evidence: services.NewEvidenceService(services.EvidenceServiceDeps{
			Log:          log,
			Subjects:     r.Subject,
			Tasks:        r.Task,
			TraineeTasks: r.TraineeTask,
			Files:        r.TraineeTaskFile,
			Progression:  aggs.Progression,
			Authorizer:   authz,
			Bucket:       clients.Evidence,
			Metrics:      metrics,
		}),
		Report:   services.NewReportService(log, r.DailyReport, authz),
		Reminder: services.NewReminderService(log, r.Task, r.CourseTrainee, r.TraineeTask, announcer),

		AuthLimiter: ratelimit.NewLimiter(log, limiterStore, cfg.AuthRateLimit, time.Minute),
		APILimiter:  ratelimit.NewLimiter(log, limiterStore, cfg.RateLimitPerMinute, time.Minute),
	}
}
