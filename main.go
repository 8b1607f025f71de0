package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"suggest_server/adapter/in/worker"
	"suggest_server/config"
	"suggest_server/internal/bootstrap"
	"suggest_server/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "suggest",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if cfg.IsDevelopment() {
		logger.Init(logger.Config{
			Level:   logger.LevelDebug,
			Service: "suggest",
		})
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	// The scheduler serves two roles: the periodic sweep (worker modes)
	// and read-triggered catch-up refreshes (api modes). Both share one
	// per-user lock registry, so a sweep and a catch-up never run the
	// same user twice.
	var w *bootstrap.Worker
	if cfg.SchedulerEnabled {
		w = bootstrap.NewWorker(cfg, deps)
	}

	switch *mode {
	case "api":
		runAPI(cfg, deps, w)
	case "worker":
		if w == nil {
			logger.Fatal("Worker mode requires SCHEDULER_ENABLED=true")
		}
		runWorker(w)
	case "all":
		if w != nil {
			go w.Start()
			defer w.Stop()
		}
		runAPI(cfg, deps, w)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func schedulerOf(w *bootstrap.Worker) *worker.RefreshScheduler {
	if w == nil {
		return nil
	}
	return w.Scheduler()
}

func runAPI(cfg *config.Config, deps *bootstrap.Dependencies, w *bootstrap.Worker) {
	app := bootstrap.NewAPI(cfg, deps, schedulerOf(w))

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		case <-ctx.Done():
			logger.Warn("API shutdown timed out, forcing exit")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func runWorker(w *bootstrap.Worker) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			w.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("Worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("Starting worker...")
	w.Start()
}
