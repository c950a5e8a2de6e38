package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swandust/clinic-concierge/cmd/mainconfig"
	"github.com/swandust/clinic-concierge/internal/app/bootstrap"
	appconfig "github.com/swandust/clinic-concierge/internal/config"
	"github.com/swandust/clinic-concierge/internal/dispatch"
	"github.com/swandust/clinic-concierge/internal/observability/metrics"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-concierge flow worker", "env", cfg.Env)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	sessions := bootstrap.BuildSessionStore(redisClient, cfg, logger)
	flowMetrics := metrics.NewFlowMetrics(prometheus.DefaultRegisterer)

	engine, err := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		Pool:     pool,
		Sessions: sessions,
		Metrics:  flowMetrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build flow engine", "error", err)
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsConfig)
	queue := dispatch.NewSQSQueue(sqsClient, cfg.InboundQueueURL)

	worker := dispatch.NewWorker(
		engine,
		queue,
		logger,
		dispatch.WithWorkerCount(cfg.WorkerCount),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	worker.Start(runCtx)

	// Metrics endpoint; the worker serves no other HTTP traffic.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down flow worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("flow worker stopped")
	case <-doneCtx.Done():
		logger.Error("flow worker shutdown timed out", "error", doneCtx.Err())
	}
}
