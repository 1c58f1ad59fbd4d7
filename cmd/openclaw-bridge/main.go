// Package main is the openclaw tool bridge. Adapters launch it as an
// MCP stdio server next to the coding agent; every tool call becomes an
// HTTP request against the control-plane API. Identity comes from
// OPENCLAW_* environment variables set by the runner.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/bridge"
	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/pkg/client"
)

func main() {
	// 1. Identity from the environment
	id, err := bridge.IdentityFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read bridge identity: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger on stderr. Stdout carries the MCP protocol; anything
	// else written there corrupts the stream.
	level := os.Getenv("OPENCLAW_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      level,
		Format:     "json",
		OutputPath: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting openclaw tool bridge",
		zap.String("api_url", id.APIURL),
		zap.String("agent_id", id.AgentID))

	// 3. API client and MCP server
	api := client.New(id.APIURL, log)
	srv := bridge.NewServer(api, id, log)

	// 4. Serve the stdio transport until the adapter closes our stdin
	if err := bridge.ServeStdio(srv); err != nil {
		log.Error("Bridge terminated", zap.Error(err))
		os.Exit(1)
	}
}
