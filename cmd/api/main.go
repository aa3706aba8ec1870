package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/worker"
	"github.com/spec-kit/complaint-service/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var bus live.ChangeBus = live.NewLocalBus()
	readiness := map[string]handlers.Pinger{"store": repo}
	if redis != nil {
		bus = live.NewRedisBus(redis.Client, cfg.Live.Channel)
		readiness["redis"] = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	worker.StartBroadcastWorker(dispatcher, live.NewBroadcaster(bus, logger))

	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		Repo:       repo,
		Engine:     workflow.NewEngine(nil),
		Feed:       live.NewFeed(repo, bus, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Complaints:     handlers.NewComplaintsHandler(complaintService, logger),
		Stages:         handlers.NewStagesHandler(),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ComplaintRepository, func()) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to open postgres store", zap.Error(err))
		}
		return repository.NewPostgresRepository(pg.Pool), pg.Close
	case config.StoreDynamo:
		repo, err := repository.NewDynamoRepository(ctx, cfg.Dynamo)
		if err != nil {
			logger.Fatal("failed to init dynamodb", zap.Error(err))
		}
		logger.Info("using dynamodb store", zap.String("table", cfg.Dynamo.Table))
		return repo, func() {}
	default:
		logger.Warn("using in-memory store; complaints are lost on restart")
		return repository.NewMemoryRepository(), func() {}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
