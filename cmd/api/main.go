package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swandust/clinic-concierge/cmd/mainconfig"
	"github.com/swandust/clinic-concierge/internal/app/bootstrap"
	appconfig "github.com/swandust/clinic-concierge/internal/config"
	"github.com/swandust/clinic-concierge/internal/dispatch"
	"github.com/swandust/clinic-concierge/internal/httpapi"
	"github.com/swandust/clinic-concierge/internal/observability/metrics"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

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
	flowMetrics := metrics.NewFlowMetrics(nil)

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

	// Inbound messages are queued and consumed per-user in order. With the
	// in-memory queue the consumer runs in this process; with SQS a separate
	// flow-worker deployment drains the queue.
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	var worker *dispatch.Worker
	var publisher *dispatch.Publisher
	if cfg.UseMemoryQueue {
		queue := dispatch.NewMemoryQueue(256)
		publisher = dispatch.NewPublisher(queue)
		worker = dispatch.NewWorker(engine, queue, logger, dispatch.WithWorkerCount(1))
		worker.Start(workerCtx)
		logger.Info("using in-memory queue with in-process worker")
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = dispatch.NewPublisher(dispatch.NewSQSQueue(sqsClient, cfg.InboundQueueURL))
	}

	webhookHandler := httpapi.NewWebhookHandler(publisher, logger)

	// Setup router
	r := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:         logger,
		Webhook:        webhookHandler,
		MetricsHandler: promhttp.Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if worker != nil {
		workerCancel()
		worker.Wait()
		logger.Info("in-process worker stopped")
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
