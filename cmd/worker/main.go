package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/bootstrap"
	"github.com/makr-code/VCC-Veritas-sub003/internal/config"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/observability/logging"
	"github.com/makr-code/VCC-Veritas-sub003/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("search-worker", cfg.LogLevel)
	workerMetrics := metrics.NewWorkerMetrics("search-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSJobSubject)
	err = app.Queue.SubscribeJobs(ctx, func(handlerCtx context.Context, job domain.SearchJob) error {
		start := time.Now()
		workerMetrics.StartJob()

		jobCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		results := app.BatchUC.BatchSearch(jobCtx, job.Queries)
		publishErr := app.Queue.PublishResult(jobCtx, job.ID, results)
		workerMetrics.FinishJob("search-worker", len(job.Queries), time.Since(start), publishErr)
		return publishErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
