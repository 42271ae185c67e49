package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orderhub/orderhub/internal/adapter"
	"github.com/orderhub/orderhub/internal/api"
	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/events"
	"github.com/orderhub/orderhub/internal/lock"
	"github.com/orderhub/orderhub/internal/logger"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/internal/repository/memory"
	"github.com/orderhub/orderhub/internal/repository/postgres"
	"github.com/orderhub/orderhub/internal/service"
	"github.com/orderhub/orderhub/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "sync every platform once and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *once); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting OrderHub",
		zap.String("env", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("demo_mode", cfg.DemoMode),
	)

	repos, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := newLocker(cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher := newPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to close event publisher", zap.Error(err))
		}
	}()

	meters, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meters.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to flush metrics", zap.Error(err))
		}
	}()
	syncMetrics, err := telemetry.NewSyncMetrics(meters.Meter("orderhub/sync"))
	if err != nil {
		return err
	}

	registry := adapter.NewRegistryFromConfig(cfg, log)
	syncService := service.NewSyncService(
		repos,
		registry,
		adapter.NewEnvCredentials(cfg),
		locker,
		publisher,
		syncMetrics,
		service.SyncOptionsFromConfig(cfg.Sync),
		log,
	)
	orderService := service.NewOrderService(repos, log)
	inventoryService := service.NewInventoryService(repos, log)

	for _, platform := range domain.AllPlatforms() {
		if _, err := syncService.EnsureConnection(ctx, platform, adapter.CredentialRefFor(cfg, platform)); err != nil {
			return fmt.Errorf("failed to link %s: %w", platform, err)
		}
	}

	scheduler := service.NewScheduler(syncService, cfg.Sync.Interval, log)
	if once {
		defer syncService.Shutdown(context.Background())
		return syncOnce(ctx, scheduler, log)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(cfg, orderService, syncService, inventoryService, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		syncErr := syncService.Shutdown(shutdownCtx)
		return errors.Join(httpErr, syncErr)
	})

	return g.Wait()
}

func syncOnce(ctx context.Context, scheduler *service.Scheduler, log *zap.Logger) error {
	reports, err := scheduler.RunOnce(ctx)
	for _, r := range reports {
		log.Info("Sync finished",
			zap.String("platform", string(r.Platform)),
			zap.String("status", string(r.Status)),
			zap.Int("pages", r.Pages),
			zap.Int("inserted", r.Inserted),
			zap.Int("updated", r.Updated),
			zap.Int("rejected", r.Rejected),
			zap.Int("skipped", r.Skipped),
		)
	}
	return err
}

func openStore(cfg *config.Config, log *zap.Logger) (*repository.Repositories, func(), error) {
	if cfg.StoreDriver != "postgres" {
		log.Info("Using in-memory order store")
		return memory.NewRepositories(), func() {}, nil
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}
	if err := postgres.Migrate(db, log); err != nil {
		closeDB()
		return nil, nil, err
	}
	log.Info("Database connected successfully")
	return postgres.NewRepositories(db, log), closeDB, nil
}

func newLocker(cfg *config.Config, log *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Redis.URL == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}
	locker, err := lock.NewRedisLocker(cfg.Redis.URL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Using Redis sync lock")
	return locker, func() { _ = locker.Close() }, nil
}

func newPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	publishers := events.MultiPublisher{events.NewLogPublisher(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info("Publishing order events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
		publishers = append(publishers, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log))
	}
	return publishers
}

