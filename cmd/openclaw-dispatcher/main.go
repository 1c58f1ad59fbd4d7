// Package main is the openclaw dispatcher. It subscribes to
// notification events, wakes the addressed agents under a global
// concurrency cap, polls for inboxes the bus missed and reconciles
// stuck state. A small HTTP listener exposes health and counters.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/common/config"
	"github.com/openclaw/openclaw/internal/common/httpmw"
	"github.com/openclaw/openclaw/internal/common/logger"
	ctrlsqlite "github.com/openclaw/openclaw/internal/control/repository/sqlite"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/db"
	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
	"github.com/openclaw/openclaw/internal/runner"
)

const serverName = "openclaw-dispatcher"

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

	log.Info("Starting openclaw dispatcher...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Initialize event bus. The dispatcher is the main consumer of
	// notification events, so NATS is strongly recommended in multi
	// process deployments; the in-memory bus only sees events published
	// in this process.
	var eventBus bus.EventBus
	if cfg.Bus.Provider == "nats" {
		log.Info("Connecting to NATS...", zap.String("url", cfg.Bus.NATSURL))
		natsBus, err := bus.NewNATSEventBus(cfg.Bus, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
		log.Info("Connected to NATS event bus")
	} else {
		log.Warn("Using in-memory event bus; cross-process notifications will not arrive")
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

	// 6. Service, git and runner
	git := gitops.NewService(log, cfg.Merge.GitTimeout())
	svc := service.New(repo, eventBus, log)
	svc.SetGitPublisher(git)

	registry := adapter.NewRegistry()
	registry.Register(adapter.NewClaudeAdapter(log))
	run := runner.New(svc, registry, git, eventBus, log, runner.Config{
		APIURL:         cfg.Agent.APIURL,
		BridgePath:     cfg.Agent.BridgePath,
		DefaultAdapter: cfg.Agent.DefaultAdapter,
		TimeoutSeconds: cfg.Agent.TimeoutSeconds,
	})

	// 7. Start the dispatcher
	disp := dispatch.New(svc, run, eventBus, log, dispatch.Config{
		MaxConcurrent:     cfg.Dispatcher.MaxConcurrent,
		PollInterval:      cfg.Dispatcher.PollInterval(),
		ReconcileInterval: cfg.Dispatcher.ReconcileInterval(),
		StuckAgentTimeout: cfg.Dispatcher.StuckAgentTimeout(),
	})
	if err := disp.Start(ctx); err != nil {
		log.Fatal("Failed to start dispatcher", zap.Error(err))
	}
	log.Info("Dispatcher started",
		zap.Int("max_concurrent", cfg.Dispatcher.MaxConcurrent),
		zap.Duration("poll_interval", cfg.Dispatcher.PollInterval()))

	// 8. Health and stats listener
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(log, serverName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serverName})
	})
	router.GET("/dispatch/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, disp.Stats())
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Dispatcher.StatsPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("Stats listener up", zap.Int("port", cfg.Dispatcher.StatsPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start stats listener", zap.Error(err))
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down openclaw dispatcher...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Stats listener shutdown error", zap.Error(err))
	}
	if err := disp.Stop(); err != nil {
		log.Error("Dispatcher stop error", zap.Error(err))
	}

	log.Info("openclaw dispatcher stopped")
}
