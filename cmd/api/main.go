package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/makr-code/VCC-Veritas-sub003/internal/adapters/http"
	"github.com/makr-code/VCC-Veritas-sub003/internal/bootstrap"
	"github.com/makr-code/VCC-Veritas-sub003/internal/config"
	"github.com/makr-code/VCC-Veritas-sub003/internal/observability/logging"
	"github.com/makr-code/VCC-Veritas-sub003/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("search-api", cfg.LogLevel)
	httpMetrics := metrics.NewHTTPServerMetrics("search-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, httpMetrics.Pipeline("search-api"))
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.SearchUC, app.BatchUC, app.SearchUC, app.SearchUC, httpadapter.Options{
		Queue:            app.Queue,
		MetricsHandler:   httpMetrics.Handler(),
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxConcurrent:    cfg.APIMaxConcurrent,
		BackpressureWait: cfg.APIBackpressureWait,
	})
	handler := httpMetrics.Middleware("search-api", router.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
