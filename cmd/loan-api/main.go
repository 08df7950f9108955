// cmd/loan-api/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loan-api/internal/api"
	"loan-api/internal/common/camunda"
	"loan-api/internal/common/config"
	"loan-api/internal/common/logger"
	"loan-api/internal/common/observability"
	"loan-api/internal/store"
	"loan-api/internal/underwriting"

	sa "loan-api/internal/workers/loan/submit-application"
	uas "loan-api/internal/workers/loan/update-application-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan api...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storageBackend", cfg.Storage.Backend),
	)

	var obsOpts []observability.Option
	if cfg.Observability.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Observability.JaegerEndpoint))
	}
	obs := observability.New(cfg.Observability.ServiceName, obsOpts...)
	defer obs.Shutdown()

	ctx := context.Background()

	repo, closeRepo, err := buildRepository(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("storage backend unavailable", zap.Error(err))
	}
	defer closeRepo()

	listeners, err := buildListeners(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Fatal("listener setup failed", zap.Error(err))
	}

	opts := []store.Option{store.WithLogger(log), store.WithObservability(obs)}
	for _, l := range listeners {
		opts = append(opts, store.WithListener(l))
	}
	appStore := store.New(repo, opts...)

	if err := seedStore(ctx, cfg.Seed, appStore); err != nil {
		zapLog.Fatal("seeding failed", zap.Error(err))
	}

	engine := underwriting.NewEngine(log)

	// --- Workflow workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		workers = startWorkers(cfg, zeebe, appStore, engine, log, zapLog)
	}

	// --- HTTP server ---
	handler := api.NewHandler(appStore, engine, log)
	srv := api.NewServer(api.NewRouter(handler, log, cfg.Server), cfg.Server)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("Loan api stopped")
}

// startWorkers opens one job worker per enabled loan task type.
func startWorkers(cfg *config.Config, zeebe *camunda.Client, s *store.Store, engine *underwriting.Engine, log logger.Logger, zapLog *zap.Logger) []*camunda.CamundaWorker {
	var workers []*camunda.CamundaWorker

	if config.IsWorkerEnabled(cfg, sa.TaskType) {
		handler := sa.NewHandler(sa.LoadConfig(cfg), s, engine, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), sa.TaskType, workerOptions(cfg, sa.TaskType), handler, zapLog))
	}

	if config.IsWorkerEnabled(cfg, uas.TaskType) {
		handler := uas.NewHandler(uas.LoadConfig(cfg), s, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), uas.TaskType, workerOptions(cfg, uas.TaskType), handler, zapLog))
	}

	zapLog.Info("workflow workers registered", zap.Int("count", len(workers)))
	return workers
}

func workerOptions(cfg *config.Config, taskType string) camunda.WorkerOptions {
	wc := config.GetWorkerConfig(cfg, taskType)
	maxActive := wc.MaxJobsActive
	if _, ok := cfg.Workers[taskType]; !ok && cfg.Camunda.MaxJobsActive > 0 {
		maxActive = cfg.Camunda.MaxJobsActive
	}
	return camunda.WorkerOptions{
		MaxJobsActive: maxActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
}
