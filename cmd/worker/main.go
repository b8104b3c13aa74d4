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

	"github.com/arbiter-oj/arbiter/internal/config"
	"github.com/arbiter-oj/arbiter/internal/executor"
	"github.com/arbiter-oj/arbiter/internal/queue"
	"github.com/arbiter-oj/arbiter/internal/repository/postgres"
	redisrepo "github.com/arbiter-oj/arbiter/internal/repository/redis"
	"github.com/arbiter-oj/arbiter/internal/usecase"
	"github.com/arbiter-oj/arbiter/internal/worker"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Arbiter Judge Worker")

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

	// Initialize repositories
	subRepo := postgres.NewSubmissionRepository(dbPool)
	tcRepo := postgres.NewTestcaseRepository(dbPool)
	statsRepo := postgres.NewStatsRepository(dbPool)
	markerStore := redisrepo.NewSolvedMarkerStore(redisClient)
	cacheInv := redisrepo.NewCacheInvalidator(redisClient)

	// Initialize sandbox client
	sandbox := executor.NewClient(cfg.Sandbox.URL, &http.Client{Timeout: cfg.Sandbox.RequestTimeout}, logger)

	limits := usecase.Limits{
		CPUTimeSeconds:  cfg.Sandbox.CPUTimeLimitSec,
		MemoryKB:        cfg.Sandbox.MemoryLimitKB,
		MaxPollAttempts: cfg.Sandbox.MaxPollAttempts,
		PollDelay:       cfg.Sandbox.PollDelay,
	}

	// Initialize use cases
	runUC := usecase.NewRunCodeUsecase(sandbox, limits, logger)
	judgeUC := usecase.NewJudgeSubmissionUsecase(subRepo, tcRepo, statsRepo, markerStore, cacheInv, sandbox, limits, logger)

	// Create buffered job channels, one per queue
	runJobs := make(chan *queue.Delivery, cfg.Worker.RunPoolSize*2)
	submitJobs := make(chan *queue.Delivery, cfg.Worker.SubmitPoolSize*2)

	// Initialize AMQP consumers
	runConsumer, err := queue.NewConsumer(cfg.RabbitMQ.URL, queue.RunQueue, cfg.Worker.RunPoolSize, runJobs, logger)
	if err != nil {
		logger.Fatal("Failed to initialize run consumer", zap.Error(err))
	}
	defer runConsumer.Close()

	submitConsumer, err := queue.NewConsumer(cfg.RabbitMQ.URL, queue.SubmitQueue, cfg.Worker.SubmitPoolSize, submitJobs, logger)
	if err != nil {
		logger.Fatal("Failed to initialize submit consumer", zap.Error(err))
	}
	defer submitConsumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pools
	runPool := worker.NewRunPool(cfg.Worker.RunPoolSize, runJobs, runUC, logger)
	runPool.Start(ctx)

	submitPool := worker.NewSubmitPool(cfg.Worker.SubmitPoolSize, submitJobs, judgeUC, logger)
	submitPool.Start(ctx)

	// Start AMQP consumers in goroutines
	go func() {
		if err := runConsumer.Start(ctx); err != nil {
			logger.Error("Run consumer error", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		if err := submitConsumer.Start(ctx); err != nil {
			logger.Error("Submit consumer error", zap.Error(err))
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
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight jobs
	runPool.Stop()
	submitPool.Stop()

	logger.Info("Worker stopped")
}
