package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketflow/internal/api/http"
	"github.com/spec-kit/ticketflow/internal/api/http/handlers"
	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/config"
	"github.com/spec-kit/ticketflow/internal/events"
	"github.com/spec-kit/ticketflow/internal/lifecycle"
	"github.com/spec-kit/ticketflow/internal/notify"
	"github.com/spec-kit/ticketflow/internal/observability"
	"github.com/spec-kit/ticketflow/internal/persistence"
	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/repository/memory"
	"github.com/spec-kit/ticketflow/internal/seed"
	"github.com/spec-kit/ticketflow/internal/service"
	"github.com/spec-kit/ticketflow/internal/storage"
	"github.com/spec-kit/ticketflow/internal/worker"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	pingers := map[string]handlers.Pinger{}

	var store repository.Store
	var pg *persistence.Postgres
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
		pingers["postgres"] = pg
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	}
	defer pg.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	if redis != nil {
		pingers["redis"] = redis
	}

	files, err := storage.NewDisk(storage.DiskOptions{
		Root:     cfg.Storage.UploadDir,
		Compress: cfg.Storage.Compress,
		MaxBytes: cfg.Storage.MaxUploadBytes,
	})
	if err != nil {
		logger.Fatal("failed to init upload storage", zap.Error(err))
	}

	now := func() time.Time { return time.Now().UTC() }
	machine := lifecycle.New(now)

	dispatcher := worker.NewAsyncDispatcher(events.NewInMemoryDispatcher(logger), logger, worker.Options{
		Workers:        cfg.Notification.Workers,
		QueueSize:      cfg.Notification.QueueSize,
		HandlerTimeout: 30 * time.Second,
		OnDrop: func(events.Event) {
			metrics.RecordNotification("queue", false)
		},
	})

	notifications := service.NewNotificationService(buildNotificationDeps(cfg, store, dispatcher, redis, metrics, logger))
	notifications.RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(store, tokens, cfg.Auth.BcryptCost, now)
	userService := service.NewUserService(store, cfg.Auth.BcryptCost, now)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Machine:    machine,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	attachmentService := service.NewAttachmentService(store, files, machine, logger)

	if cfg.Store.Driver == config.StoreDriverMemory {
		created, err := userService.Bootstrap(ctx, seed.Defaults())
		if err != nil {
			logger.Fatal("failed to seed default users", zap.Error(err))
		}
		logger.Info("seeded default users", zap.Int("count", created))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	app := httptransport.NewApp(httptransport.AppOptions{
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
		Timeout:   cfg.App.RequestTimeout(),
		Logger:    logger,
		Metrics:   metrics,
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, pingers),
		Users:          handlers.NewUsersHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService, userService),
		Files:          handlers.NewFilesHandler(attachmentService, userService),
		Admin:          handlers.NewAdminHandler(userService),
		AuthMiddleware: authMiddleware.Handle,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", string(cfg.Store.Driver)))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("notification drain", zap.Error(err))
	}
}

func buildNotificationDeps(
	cfg *config.Config,
	store repository.Store,
	dispatcher events.Dispatcher,
	redis *persistence.Redis,
	metrics *observability.Metrics,
	logger *zap.Logger,
) service.NotificationDependencies {
	deps := service.NotificationDependencies{
		Dispatcher: dispatcher,
		Users:      store.Users(),
		Metrics:    metrics,
		Logger:     logger,
	}

	nc := cfg.Notification
	if nc.SMTPHost != "" {
		deps.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     nc.SMTPHost,
			Port:     nc.SMTPPort,
			Username: nc.SMTPUsername,
			Password: nc.SMTPPassword,
			From:     nc.EmailFrom,
		})
	} else {
		deps.Mailer = notify.NewLogMailer(logger)
	}
	if redis != nil {
		deps.Stream = notify.NewRedisStream(redis.Client, nc.Stream, logger)
	}
	if nc.WebhookURL != "" {
		deps.Webhook = notify.NewWebhookClient(nc.WebhookURL, nc.WebhookRetries, 10*time.Second)
	}
	return deps
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
