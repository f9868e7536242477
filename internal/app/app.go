package app

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/db"
	apphttp "github.com/yungbote/trainhub-backend/internal/http"
	"github.com/yungbote/trainhub-backend/internal/jobs/scheduler"
	"github.com/yungbote/trainhub-backend/internal/jobs/worker"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

const serviceName = "trainhub-api"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Repos    Repos
	Services Services
	Clients  Clients
	SSEHub   *realtime.SSEHub
	Server   *apphttp.Server

	EmailWorker *worker.EmailWorker
	Scheduler   *scheduler.Scheduler

	dbService *db.Service
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	dbs, err := db.Open(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	a, err := assemble(log, cfg, dbs.DB(), clients, observability.Init(log))
	if err != nil {
		clients.Close()
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}
	a.dbService = dbs
	return a, nil
}

// assemble wires everything above the database and external clients.
func assemble(log *logger.Logger, cfg Config, theDB *gorm.DB, clients Clients, metrics *observability.Metrics) (*App, error) {
	hub := realtime.NewSSEHub(log, metrics)
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, metrics)
	handlerset := wireHandlers(theDB, log, serviceset, hub)
	middleware := wireMiddleware(log, serviceset)

	sched, err := scheduler.New(log, serviceset.Reminder, metrics, cfg.ReminderCron)
	if err != nil {
		return nil, err
	}
	emailWorker := worker.NewEmailWorker(log, reposet.EmailJob, clients.Mailer, metrics, worker.Config{
		Concurrency: cfg.EmailWorkerConcurrency,
	})

	routerCfg := apphttp.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		CORSOrigins:         cfg.CORSAllowedOrigins,
		AuthLimiter:         serviceset.AuthLimiter,
		APILimiter:          serviceset.APILimiter,
		AuthHandler:         handlerset.Auth,
		AuthMiddleware:      middleware.Auth,
		UserHandler:         handlerset.User,
		RealtimeHandler:     handlerset.Realtime,
		CourseHandler:       handlerset.Course,
		SubjectHandler:      handlerset.Subject,
		TaskHandler:         handlerset.Task,
		TraineeHandler:      handlerset.Trainee,
		EvidenceHandler:     handlerset.Evidence,
		ReportHandler:       handlerset.Report,
		NotificationHandler: handlerset.Notification,
		HealthHandler:       handlerset.Health,
	}
	if cfg.OtelEnabled {
		routerCfg.ServiceName = serviceName
	}

	return &App{
		Log:         log,
		DB:          theDB,
		Cfg:         cfg,
		Metrics:     metrics,
		Repos:       reposet,
		Services:    serviceset,
		Clients:     clients,
		SSEHub:      hub,
		Server:      apphttp.NewServer(log, net.JoinHostPort("", cfg.Port), routerCfg),
		EmailWorker: emailWorker,
		Scheduler:   sched,
	}, nil
}

// Run starts the HTTP server and every background loop. It returns when ctx is
// cancelled or any of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	shutdownOtel := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		Enabled:     a.Cfg.OtelEnabled,
		ServiceName: serviceName,
		Environment: a.Cfg.AppEnv,
		Endpoint:    a.Cfg.OtelEndpoint,
		SampleRatio: 1,
	})
	defer func() { _ = shutdownOtel(context.Background()) }()

	g, gctx := errgroup.WithContext(ctx)

	if err := a.Clients.SSEBus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
		return fmt.Errorf("start realtime forwarder: %w", err)
	}

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.Redis)
	a.Metrics.StartEmailQueueCollector(gctx, a.Log, a.DB)

	g.Go(func() error { return a.Server.Run(gctx) })
	g.Go(func() error { return a.EmailWorker.Run(gctx) })
	g.Go(func() error { return a.Scheduler.Run(gctx) })

	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
