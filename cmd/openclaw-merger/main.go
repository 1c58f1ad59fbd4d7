// Package main is the openclaw merge worker. It claims queued merge
// jobs one at a time, runs the git merge for the task branch and walks
// the task to done or back to in_progress on conflict. Run exactly one
// instance per deployment; the claim query serialises jobs regardless,
// but a single worker keeps merge ordering obvious.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/config"
	"github.com/openclaw/openclaw/internal/common/logger"
	ctrlsqlite "github.com/openclaw/openclaw/internal/control/repository/sqlite"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/db"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
	"github.com/openclaw/openclaw/internal/mergeworker"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting openclaw merge worker...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Initialize event bus (merge.* feed events)
	var eventBus bus.EventBus
	if cfg.Bus.Provider == "nats" {
		log.Info("Connecting to NATS...", zap.String("url", cfg.Bus.NATSURL))
		natsBus, err := bus.NewNATSEventBus(cfg.Bus, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
	} else {
		log.Info("Using in-memory event bus")
		eventBus = bus.NewMemoryEventBus(log)
	}
	defer eventBus.Close()

	// 5. Open the store
	pool, err := db.Open(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN, cfg.Storage.BusyTimeout)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer pool.Close()

	repo, err := ctrlsqlite.New(pool)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}

	// 6. Service and git
	git := gitops.NewService(log, cfg.Merge.GitTimeout())
	svc := service.New(repo, eventBus, log)
	svc.SetGitPublisher(git)

	// 7. Start the worker
	worker := mergeworker.New(svc, git, eventBus, log, mergeworker.Config{
		PollInterval: cfg.Merge.PollInterval(),
	})
	if err := worker.Start(ctx); err != nil {
		log.Fatal("Failed to start merge worker", zap.Error(err))
	}

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down openclaw merge worker...")
	cancel()

	if err := worker.Stop(); err != nil {
		log.Error("Merge worker stop error", zap.Error(err))
	}

	log.Info("openclaw merge worker stopped")
}
