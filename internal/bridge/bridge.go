// Package bridge serves the MCP tool surface coding agents use to talk
// back to the control plane. The adapter spawns it over stdio next to the
// agent CLI; every tool is a thin wrapper around the REST API, with the
// agent's identity injected through OPENCLAW_* environment variables.
package bridge

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/pkg/client"
)

// Identity is who the bridge acts as. Tool arguments can override the
// agent and team for cross-agent operations; the task is the one this
// run was dispatched for, when there is one.
type Identity struct {
	APIURL  string
	AgentID string
	TeamID  string
	TaskID  *int64
}

// IdentityFromEnv reads the variables the adapter injects into the agent
// subprocess.
func IdentityFromEnv() (Identity, error) {
	id := Identity{
		APIURL:  os.Getenv("OPENCLAW_API_URL"),
		AgentID: os.Getenv("OPENCLAW_AGENT_ID"),
		TeamID:  os.Getenv("OPENCLAW_TEAM_ID"),
	}
	if id.APIURL == "" {
		id.APIURL = "http://localhost:8080"
	}
	if raw := os.Getenv("OPENCLAW_TASK_ID"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("parse OPENCLAW_TASK_ID: %w", err)
		}
		id.TaskID = &n
	}
	return id, nil
}

// NewServer builds the MCP server with every tool registered.
func NewServer(api *client.Client, id Identity, log *logger.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"openclaw",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	registerTools(s, api, id, log.WithFields(zap.String("component", "bridge")))
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the agent CLI
// hangs up.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
