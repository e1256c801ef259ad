package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/analyticket/helpdesk/internal/api/http"
	"github.com/analyticket/helpdesk/internal/api/http/handlers"
	"github.com/analyticket/helpdesk/internal/audit"
	"github.com/analyticket/helpdesk/internal/auth"
	"github.com/analyticket/helpdesk/internal/config"
	"github.com/analyticket/helpdesk/internal/events"
	"github.com/analyticket/helpdesk/internal/observability"
	"github.com/analyticket/helpdesk/internal/persistence"
	"github.com/analyticket/helpdesk/internal/policy"
	"github.com/analyticket/helpdesk/internal/repository"
	"github.com/analyticket/helpdesk/internal/service"
	"github.com/analyticket/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	sqlSink := audit.NewSQLSink(pg.SQLDB())
	emitter := audit.NewEmitter(audit.MultiSink{
		sqlSink,
		audit.NewRedisSink(redis.Client, cfg.Audit.RedisChannel),
		audit.NewLogSink(logger),
	}, audit.EmitterConfig{
		BufferSize:    cfg.Audit.BufferSize,
		Workers:       cfg.Audit.Workers,
		RecordTimeout: cfg.Audit.RecordTimeout(),
	}, logger, metrics)

	userRepo := repository.NewUserRepository(pool)
	prefsRepo := repository.NewNotificationPreferenceRepository(pool)
	dispatcher := events.NewInMemoryDispatcher()

	notifier := worker.NewNotificationWorker(service.LogNotifier{Logger: logger, Cfg: cfg.Notification}, 256, logger)
	notifier.Start()
	notificationService := service.NewNotificationService(dispatcher, prefsRepo, notifier, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authService := service.NewAuthService(*cfg, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repository.NewTicketRepository(pool),
		MessageRepo: repository.NewTicketMessageRepository(pool),
		HistoryRepo: repository.NewTicketHistoryRepository(pool),
		UserRepo:    userRepo,
		StatsCache:  repository.NewRedisStatsCache(redis.Client),
		StatsTTL:    cfg.Stats.CacheTTL(),
		Validator:   policy.NewValidator(emitter),
		Clock:       policy.SystemClock{},
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.RateLimit)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:          handlers.NewUsersHandler(authService, notificationService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Audit:          handlers.NewAuditHandler(sqlSink),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := emitter.Close(shutdownCtx); err != nil {
		logger.Warn("audit emitter close", zap.Error(err))
	}
	if err := notifier.Stop(shutdownCtx); err != nil {
		logger.Warn("notification worker stop", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
