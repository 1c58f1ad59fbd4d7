package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/subprocess"
)

// validateTimeout bounds the `claude --version` probe.
const validateTimeout = 10 * time.Second

// ClaudeAdapter spawns the Claude Code CLI in non-interactive mode with
// the tool bridge configured as an MCP server over stdio.
type ClaudeAdapter struct {
	logger *logger.Logger
}

// NewClaudeAdapter creates the default coding-agent adapter.
func NewClaudeAdapter(log *logger.Logger) *ClaudeAdapter {
	return &ClaudeAdapter{logger: log}
}

// Name implements Adapter.
func (a *ClaudeAdapter) Name() string { return DefaultAdapterName }

// ValidateEnvironment checks that the claude CLI is installed and runs.
func (a *ClaudeAdapter) ValidateEnvironment(ctx context.Context) (bool, string) {
	res, err := subprocess.Run(ctx, "claude", []string{"--version"}, subprocess.Options{Timeout: validateTimeout})
	if err != nil {
		return false, "claude CLI not found on PATH, install with: npm install -g @anthropic-ai/claude-code"
	}
	if !res.Ok() {
		return false, fmt.Sprintf("claude --version exited with code %d: %s",
			res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return true, strings.TrimSpace(res.Stdout)
}

// BuildPrompt implements Adapter using the shared role templates.
func (a *ClaudeAdapter) BuildPrompt(_ context.Context, in PromptInput) string {
	return BuildRolePrompt(in)
}

// mcpConfigFile mirrors the JSON shape `claude --mcp-config` expects.
type mcpConfigFile struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// buildMCPConfig renders the temp MCP config pointing Claude Code at
// the tool bridge, with the run identity passed through the bridge env.
func buildMCPConfig(cfg AdapterConfig) ([]byte, error) {
	conf := mcpConfigFile{
		MCPServers: map[string]mcpServerEntry{
			"openclaw": {
				Command: cfg.MCPServerCommand[0],
				Args:    cfg.MCPServerCommand[1:],
				Env: map[string]string{
					"OPENCLAW_API_URL":  cfg.APIURL,
					"OPENCLAW_AGENT_ID": cfg.AgentID,
					"OPENCLAW_TEAM_ID":  cfg.TeamID,
					"OPENCLAW_TASK_ID":  strconv.FormatInt(cfg.TaskID, 10),
				},
			},
		},
	}
	return json.Marshal(conf)
}

// Run spawns Claude Code with the tool bridge configured. The CLI runs
// with --print (work, print, exit), restricted to the platform's MCP
// tools, with --max-turns as a loop safety limit.
func (a *ClaudeAdapter) Run(ctx context.Context, prompt string, cfg AdapterConfig) (*AdapterResult, error) {
	if len(cfg.MCPServerCommand) == 0 {
		return nil, fmt.Errorf("%w: tool bridge command not configured", models.ErrAdapterUnavailable)
	}

	raw, err := buildMCPConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp config: %w", err)
	}

	f, err := os.CreateTemp("", "openclaw-mcp-*.json")
	if err != nil {
		return nil, fmt.Errorf("create mcp config: %w", err)
	}
	configPath := f.Name()
	defer os.Remove(configPath)

	if _, err := f.Write(raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("write mcp config: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close mcp config: %w", err)
	}

	argv := []string{
		"claude",
		"--print",
		"--mcp-config", configPath,
		"--allowedTools", "mcp__openclaw__*",
		"--max-turns", "100",
		prompt,
	}

	a.logger.Info("running claude adapter",
		zap.String("agent_id", cfg.AgentID),
		zap.Int64("task_id", cfg.TaskID),
		zap.String("working_directory", cfg.WorkingDirectory),
		zap.Int("timeout_seconds", cfg.TimeoutSeconds))

	return runAdapterSubprocess(ctx, argv, cfg)
}
