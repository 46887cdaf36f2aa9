package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/config"
	amqpdelivery "github.com/Harsh-BH/qsweep/internal/delivery/amqp"
	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/ionq"
	"github.com/Harsh-BH/qsweep/internal/pool"
	"github.com/Harsh-BH/qsweep/internal/repository/postgres"
	redisrepo "github.com/Harsh-BH/qsweep/internal/repository/redis"
	"github.com/Harsh-BH/qsweep/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting qsweep worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	sweepRepo := postgres.NewPostgresSweepRepository(dbPool)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient)

	// Remote job API
	client, err := ionq.NewClient(ionq.Config{
		APIKey:   cfg.IonQ.APIKey,
		BaseURL:  cfg.IonQ.APIURL,
		MaxRetry: cfg.IonQ.MaxRetry,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Failed to create remote API client", zap.Error(err))
	}
	service := ionq.NewService(client,
		ionq.WithDefaultTarget(cfg.IonQ.DefaultTarget),
		ionq.WithPollInterval(cfg.IonQ.PollInterval),
		ionq.WithJobTimeout(cfg.IonQ.JobTimeout),
		ionq.WithResultCache(redisrepo.NewResultCache(redisClient)),
		ionq.WithLogger(logger),
	)

	runUC := usecase.NewRunSweepUsecase(sweepRepo, idempotencyStore, service, logger)

	sweepsChan := make(chan *domain.SweepMessage, cfg.Worker.PoolSize*2)

	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, sweepsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, sweepsChan, runUC, logger)
	workerPool.Start(ctx)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight sweeps
	workerPool.Stop()

	logger.Info("Worker stopped")
}
