package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/adapters/events"
	"github.com/DanielPopoola/charge-connector/internal/adapters/gateway"
	"github.com/DanielPopoola/charge-connector/internal/adapters/guard"
	"github.com/DanielPopoola/charge-connector/internal/adapters/handler"
	"github.com/DanielPopoola/charge-connector/internal/adapters/postgres"
	"github.com/DanielPopoola/charge-connector/internal/config"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/core/service"
	"github.com/DanielPopoola/charge-connector/internal/telemetry"
	"github.com/DanielPopoola/charge-connector/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

// services are the core operations driven by this binary's workers and
// notification endpoint.
type services struct {
	Expiry        *service.ExpiryService
	CaptureBatch  *service.CaptureProcessService
	Notifications *service.NotificationService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := cfg.Logger.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("connector stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting charge connector",
		zap.String("env", cfg.Primary.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("log_level", cfg.Logger.Level))

	ctx := context.Background()

	tracing, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	chargeRepo := postgres.NewChargeRepository(db)
	refundRepo := postgres.NewRefundRepository(db)

	publisher, closePublisher := newPublisher(cfg.Kafka, logger)
	inFlight, closeGuard := newGuard(ctx, cfg, logger)

	transport := gateway.NewRetryTransport(
		gateway.NewHTTPTransport(cfg.Gateways, tracing.Tracer(), logger),
		cfg.Retry,
		logger,
	)
	providers := service.NewProviderRegistry(gateway.NewProviders(transport, logger)...)

	executor := service.NewExecutor(cfg.Executor.PoolSize, cfg.Executor.Timeout, inFlight, logger)
	svc := newServices(cfg, chargeRepo, refundRepo, publisher, providers, executor, logger)

	captureScheduler := worker.NewCaptureScheduler(svc.CaptureBatch, cfg.Capture.Interval, logger)
	expirySweeper := worker.NewExpirySweeper(chargeRepo, svc.Expiry, cfg.Expiry, logger)

	mux := http.NewServeMux()
	handler.NewNotificationHandler(svc.Notifications, cfg.Server.MaxNotificationBytes, logger).RegisterRoutes(mux)

	routes := handler.Chain(mux,
		handler.Recovery(logger),
		handler.Logging(logger),
		handler.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	captureScheduler.Start(workerCtx)
	expirySweeper.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		logger.Error("server error", zap.Error(runErr))
	}

	captureScheduler.Stop()
	expirySweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway tasks still running at shutdown", zap.Error(err))
	}
	if err := closeGuard(); err != nil {
		logger.Error("failed to close redis client", zap.Error(err))
	}
	if err := closePublisher(); err != nil {
		logger.Error("failed to close event publisher", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", zap.Error(err))
	}

	logger.Info("connector exited")
	return runErr
}

func newServices(
	cfg *config.Config,
	chargeRepo ports.ChargeRepository,
	refundRepo ports.RefundRepository,
	publisher ports.EventPublisher,
	providers *service.ProviderRegistry,
	executor *service.Executor,
	logger *zap.Logger,
) *services {
	charges := service.NewChargeService(chargeRepo, publisher, logger)
	captures := service.NewCaptureService(charges, providers, executor, cfg.Capture.MaxRetries, logger)
	cancels := service.NewCancelService(charges, providers, logger)

	limit := rate.Inf
	if cfg.Capture.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Capture.RatePerSecond)
	}

	return &services{
		Expiry:        service.NewExpiryService(cancels, logger),
		CaptureBatch:  service.NewCaptureProcessService(chargeRepo, captures, rate.NewLimiter(limit, 1), cfg.Capture.BatchSize, logger),
		Notifications: service.NewNotificationService(charges, chargeRepo, refundRepo, providers, logger),
	}
}

// newPublisher returns a Kafka publisher, or a no-op one when no brokers are
// configured.
func newPublisher(cfg config.KafkaConfig, logger *zap.Logger) (ports.EventPublisher, func() error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("kafka not configured, status changes will not be published")
		return service.NopPublisher{}, func() error { return nil }
	}
	publisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg, logger), logger)
	return publisher, publisher.Close
}

// newGuard returns a Redis guard shared across instances, falling back to an
// in-process guard without Redis.
func newGuard(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.InFlightGuard, func() error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, using in-process in-flight guard")
		return service.NewMemoryGuard(), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, guard calls will fail until it recovers", zap.Error(err))
	}
	return guard.NewRedisGuard(client, cfg.Executor.GuardTTL, logger), client.Close
}
