package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/nodecomp/internal/application/drivers"
	"github.com/aescanero/nodecomp/internal/application/orchestrator"
	"github.com/aescanero/nodecomp/internal/application/sharing"
	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/aescanero/nodecomp/internal/config"
	memoryevents "github.com/aescanero/nodecomp/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/nodecomp/pkg/adapters/events/redis"
	"github.com/aescanero/nodecomp/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/aescanero/nodecomp/pkg/adapters/storage/memory"
	"github.com/aescanero/nodecomp/pkg/adapters/storage/postgres"
	redisstorage "github.com/aescanero/nodecomp/pkg/adapters/storage/redis"
	"github.com/aescanero/nodecomp/pkg/api/grpc"
	"github.com/aescanero/nodecomp/pkg/api/http"
	"github.com/aescanero/nodecomp/pkg/api/websocket"
	"github.com/aescanero/nodecomp/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func serve(ctx context.Context, cfg *config.Config) error {
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting nodecomp",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("events_backend", cfg.EventsBackend))

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Redis close error", zap.Error(err))
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	store, err := newEntityStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("entity store close error", zap.Error(err))
		}
	}()

	eventBus, err := newEventBus(cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("event bus close error", zap.Error(err))
		}
	}()

	catalog, err := loadCatalog(cfg.DriverCatalog)
	if err != nil {
		return err
	}
	registry, plumber, err := drivers.Build(catalog, logger)
	if err != nil {
		return fmt.Errorf("failed to build driver registry: %w", err)
	}

	metricsCollector := prometheus.NewCollector(promclient.DefaultRegisterer)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	if err := workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	orchestratorMgr := orchestrator.NewManager(
		store,
		registry,
		plumber,
		sharing.NewGuard(),
		eventBus,
		metricsCollector,
		workerPool,
		orchestrator.NewValidator(),
		logger,
	)
	if err := orchestratorMgr.Initialize(ctx); err != nil {
		return err
	}

	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Registry:     registry,
		Health:       workerPool.Health(),
		Logger:       logger,
	})

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	wsHandler := websocket.NewHandler(eventBus, logger)
	if err := wsHandler.Start(streamCtx); err != nil {
		return fmt.Errorf("failed to subscribe to chain events: %w", err)
	}
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("nodecomp started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.Int("drivers", len(registry.Drivers())))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	stopStream()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	logger.Info("nodecomp shut down complete")
	return runErr
}

func newEntityStore(ctx context.Context, cfg *config.Config, redisClient *goredis.Client, logger *zap.Logger) (ports.EntityStore, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return redisstorage.NewEntityStore(redisClient, logger), nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			PingTimeout:     cfg.Database.PingTimeout,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store := postgres.NewEntityStore(db, logger)
		if cfg.Database.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return store, nil
	default:
		return memorystorage.NewEntityStore(), nil
	}
}

func newEventBus(cfg *config.Config, redisClient *goredis.Client, logger *zap.Logger) (ports.EventBus, error) {
	if cfg.EventsBackend == config.BackendRedis {
		bus, err := redisevents.NewStreamsEventBus(redisClient, cfg.Redis.ConsumerGroup, cfg.Redis.ConsumerName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		return bus, nil
	}
	return memoryevents.NewInMemoryEventBus(logger), nil
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
