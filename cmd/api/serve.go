package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-router/internal/api/http"
	"github.com/spec-kit/incident-router/internal/api/http/handlers"
	"github.com/spec-kit/incident-router/internal/auth"
	"github.com/spec-kit/incident-router/internal/config"
	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/persistence"
	"github.com/spec-kit/incident-router/internal/repository"
	"github.com/spec-kit/incident-router/internal/service"
	"github.com/spec-kit/incident-router/internal/sla"
	"github.com/spec-kit/incident-router/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && !skipMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	actorRepo := repository.NewActorRepository(pool)
	areaRepo := repository.NewAreaRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	stateRepo := repository.NewStateRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	releaseRepo := repository.NewReleaseRepository(pool)
	areaChangeRepo := repository.NewAreaChangeRepository(pool)
	permissionRepo := repository.NewPermissionRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	var webhooks service.WebhookQueue
	webhookDone := make(chan struct{})
	if cfg.Notification.WebhookURL == "" {
		close(webhookDone)
	} else {
		webhookWorker := worker.NewWebhookWorker(worker.WebhookWorkerDependencies{
			URL:         cfg.Notification.WebhookURL,
			Secret:      cfg.Notification.WebhookSecret,
			Timeout:     cfg.Notification.WebhookTimeout(),
			MaxAttempts: cfg.Notification.WebhookMaxAttempts,
			QueueSize:   cfg.Notification.WebhookQueueSize,
			Workers:     cfg.Notification.WebhookWorkers,
			Metrics:     metrics,
			Logger:      logger,
		})
		webhooks = webhookWorker
		go func() {
			defer close(webhookDone)
			_ = webhookWorker.Run(ctx)
		}()
	}
	service.NewNotificationService(dispatcher, logger, webhooks).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CategoryRepo: categoryRepo,
		StateRepo:    stateRepo,
		CommentRepo:  commentRepo,
		HistoryRepo:  historyRepo,
		Calculator:   sla.NewFromConfig(cfg.SLA),
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		ReleaseRepo: releaseRepo,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	areaChangeService := service.NewAreaChangeService(service.AreaChangeDependencies{
		AreaChangeRepo:  areaChangeRepo,
		TicketRepo:      ticketRepo,
		ActorRepo:       actorRepo,
		AreaRepo:        areaRepo,
		Dispatcher:      dispatcher,
		Logger:          logger,
		ApplyOnApproval: cfg.Workflow.ApplyAreaChangeOnApproval,
	})

	gate := auth.NewCapabilityGate(auth.GateDependencies{
		Permissions: permissionRepo,
		Redis:       redis.Handle(),
		TTL:         cfg.Auth.CapabilityCacheTTL(),
		Logger:      logger,
		Metrics:     metrics,
	})
	go func() {
		if err := gate.Listen(ctx); err != nil {
			logger.Warn("capability invalidation listener stopped", zap.Error(err))
		}
	}()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Assignments:    handlers.NewAssignmentHandler(assignmentService),
		AreaChanges:    handlers.NewAreaChangeHandler(areaChangeService),
		Admin:          handlers.NewAdminHandler(gate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, actorRepo),
		Gate:           gate,
		Metrics:        metrics,
	})

	monitorDone := make(chan struct{})
	switch {
	case disableMonitor:
		close(monitorDone)
	case pool == nil:
		logger.Warn("no postgres pool; sla monitor disabled")
		close(monitorDone)
	default:
		monitor := worker.NewSLAMonitor(worker.SLAMonitorDependencies{
			TicketRepo: ticketRepo,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger,
			Schedule:   cfg.SLA.MonitorSchedule,
			Location:   cfg.SLA.Location(),
		})
		go func() {
			defer close(monitorDone)
			if err := monitor.Run(ctx); err != nil {
				logger.Error("sla monitor stopped", zap.Error(err))
			}
		}()
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		stop()
		<-monitorDone
		<-webhookDone
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	<-monitorDone
	<-webhookDone
	return nil
}
