// Package main is the openclaw API server. It owns the relational
// store and exposes the full control-plane HTTP surface: org/team/agent
// registries, the task board, messaging, reviews, human requests,
// budgets and the GitHub webhook intake. Agent runs requested through
// POST /tasks/:id/run execute in this process.
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
	"github.com/openclaw/openclaw/internal/common/telemetry"
	"github.com/openclaw/openclaw/internal/control/handlers"
	ctrlsqlite "github.com/openclaw/openclaw/internal/control/repository/sqlite"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/db"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/webhook"
)

const serverName = "openclaw-api"

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

	log.Info("Starting openclaw API server...")

	// 3. Initialize event bus
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
		log.Info("Using in-memory event bus")
		eventBus = bus.NewMemoryEventBus(log)
	}
	defer eventBus.Close()

	// 4. Open the store
	pool, err := db.Open(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN, cfg.Storage.BusyTimeout)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer pool.Close()

	repo, err := ctrlsqlite.New(pool)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	log.Info("Database initialized",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.Path))

	// 5. Control-plane service and git
	git := gitops.NewService(log, cfg.Merge.GitTimeout())
	svc := service.New(repo, eventBus, log)
	svc.SetGitPublisher(git)

	// 6. Adapter registry and runner (serves POST /tasks/:id/run)
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewClaudeAdapter(log))
	run := runner.New(svc, registry, git, eventBus, log, runner.Config{
		APIURL:         cfg.Agent.APIURL,
		BridgePath:     cfg.Agent.BridgePath,
		DefaultAdapter: cfg.Agent.DefaultAdapter,
		TimeoutSeconds: cfg.Agent.TimeoutSeconds,
	})
	log.Info("Adapters registered", zap.Strings("adapters", registry.Names()))

	// 7. HTTP router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(log, serverName))
	router.Use(httpmw.OtelTracing(serverName))
	router.Use(httpmw.CORS(cfg.Server.CORSOrigins))

	api := handlers.New(handlers.Options{
		Service:  svc,
		Git:      git,
		Runner:   run,
		Adapters: registry.Names(),
		Bus:      eventBus,
		Logger:   log,
	})
	api.Register(router)

	hook := webhook.New(webhook.Options{
		Service: svc,
		Secret:  cfg.Webhook.Secret,
		TeamID:  cfg.Webhook.TeamID,
		Logger:  log,
	})
	hook.Register(router)

	// 8. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("API server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down openclaw API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown error", zap.Error(err))
	}

	log.Info("openclaw API server stopped")
}
