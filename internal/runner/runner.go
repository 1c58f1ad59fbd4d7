// Package runner executes one agent turn end to end: it resolves the
// adapter, opens a session (budget-gated), prepares the prompt and the
// working directory, runs the coding agent and records the outcome.
// The runner is stateless, so the dispatcher and the REST surface can
// share one instance.
package runner

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/events"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
)

// BridgeBinaryName is the tool-bridge executable probed next to the
// running binary when no explicit path is configured.
const BridgeBinaryName = "openclaw-bridge"

// Run classifications.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunTimeout   = "timeout"
)

// Config carries the runner's process-level settings.
type Config struct {
	// APIURL is handed to the tool bridge so its HTTP client can reach
	// the control plane.
	APIURL string
	// BridgePath overrides bridge discovery when set.
	BridgePath string
	// DefaultAdapter is used when neither the request nor the agent
	// config names one.
	DefaultAdapter string
	// TimeoutSeconds bounds adapter runs unless the agent config
	// overrides it.
	TimeoutSeconds int
}

// RunRequest identifies the agent to run and optional overrides.
type RunRequest struct {
	AgentID         string `json:"agent_id"`
	TeamID          string `json:"team_id,omitempty"`
	TaskID          *int64 `json:"task_id,omitempty"`
	PromptOverride  string `json:"prompt,omitempty"`
	AdapterOverride string `json:"adapter,omitempty"`
}

// RunResult summarises one finished agent run.
type RunResult struct {
	SessionID       string  `json:"session_id"`
	Adapter         string  `json:"adapter"`
	Classification  string  `json:"classification"`
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// Runner drives adapters against the control plane.
type Runner struct {
	svc      *service.Service
	registry *adapter.Registry
	git      *gitops.Service
	bus      bus.EventBus
	logger   *logger.Logger
	cfg      Config
}

// New creates a runner. git may be nil, which disables per-task
// worktree working directories.
func New(svc *service.Service, registry *adapter.Registry, git *gitops.Service, eventBus bus.EventBus, log *logger.Logger, cfg Config) *Runner {
	if cfg.DefaultAdapter == "" {
		cfg.DefaultAdapter = adapter.DefaultAdapterName
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = adapter.DefaultTimeoutSeconds
	}
	return &Runner{
		svc:      svc,
		registry: registry,
		git:      git,
		bus:      eventBus,
		logger:   log,
		cfg:      cfg,
	}
}

// Run executes a full agent run cycle. The session opened for the run
// is always closed, and every outcome appends an agent.run.* event.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	agent, err := r.svc.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	var task *models.Task
	if req.TaskID != nil {
		task, err = r.svc.GetTask(ctx, *req.TaskID)
		if err != nil {
			return nil, err
		}
	}

	teamID := req.TeamID
	if teamID == "" {
		teamID = agent.TeamID
	}

	adapterName := req.AdapterOverride
	if adapterName == "" {
		adapterName = configString(agent.Config, "adapter")
	}
	if adapterName == "" {
		adapterName = r.cfg.DefaultAdapter
	}

	ad, err := r.registry.Get(adapterName)
	if err != nil {
		return nil, err
	}
	if ok, msg := ad.ValidateEnvironment(ctx); !ok {
		return nil, fmt.Errorf("%w: adapter %q: %s", models.ErrAdapterUnavailable, adapterName, msg)
	}

	// Budget gate lives inside StartSession; a violation surfaces as
	// ErrBudgetExceeded before anything else happens.
	session, err := r.svc.StartSession(ctx, agent.ID, req.TaskID, "")
	if err != nil {
		return nil, err
	}

	startData := map[string]interface{}{
		"agent_id":   agent.ID,
		"adapter":    adapterName,
		"session_id": session.ID,
	}
	if req.TaskID != nil {
		startData["task_id"] = *req.TaskID
	}
	r.appendRunEvent(ctx, agent.ID, events.AgentRunStarted, startData)

	result, runErr := r.execute(ctx, ad, agent, task, teamID, req)
	if runErr != nil {
		msg := runErr.Error()
		if _, endErr := r.svc.EndSession(ctx, session.ID, &msg); endErr != nil {
			r.logger.Error("failed to end session after run error",
				zap.String("session_id", session.ID), zap.Error(endErr))
		}
		failData := map[string]interface{}{
			"agent_id":   agent.ID,
			"session_id": session.ID,
			"error":      msg,
		}
		if req.TaskID != nil {
			failData["task_id"] = *req.TaskID
		}
		r.appendRunEvent(ctx, agent.ID, events.AgentRunFailed, failData)
		r.publishFeed(ctx, teamID, events.AgentRunFailed, failData)
		return nil, runErr
	}

	classification, eventType := classify(result)

	var endErr *string
	if classification != RunCompleted && result.Error != "" {
		endErr = &result.Error
	}
	if _, err := r.svc.EndSession(ctx, session.ID, endErr); err != nil {
		r.logger.Error("failed to end session",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	duration := math.Round(result.DurationSeconds*10) / 10
	data := map[string]interface{}{
		"agent_id":         agent.ID,
		"session_id":       session.ID,
		"exit_code":        result.ExitCode,
		"duration_seconds": duration,
	}
	if req.TaskID != nil {
		data["task_id"] = *req.TaskID
	}
	if result.Error != "" {
		data["error"] = result.Error
	}
	r.appendRunEvent(ctx, agent.ID, eventType, data)
	r.publishFeed(ctx, teamID, eventType, data)

	r.logger.Info("agent run finished",
		zap.String("agent_id", agent.ID),
		zap.String("classification", classification),
		zap.Int("exit_code", result.ExitCode),
		zap.Float64("duration_seconds", duration))

	return &RunResult{
		SessionID:       session.ID,
		Adapter:         adapterName,
		Classification:  classification,
		ExitCode:        result.ExitCode,
		DurationSeconds: duration,
		Error:           result.Error,
	}, nil
}

// execute builds the prompt and adapter config and runs the adapter. A
// panic inside the adapter is converted to an error so the caller's
// session cleanup still runs.
func (r *Runner) execute(ctx context.Context, ad adapter.Adapter, agent *models.Agent, task *models.Task, teamID string, req RunRequest) (result *adapter.AdapterResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("adapter run panicked: %v", rec)
		}
	}()

	prompt := req.PromptOverride
	if prompt == "" {
		prompt = ad.BuildPrompt(ctx, r.promptInput(ctx, agent, task, teamID, req))
	}

	timeout := configInt(agent.Config, "timeout_seconds")
	if timeout <= 0 {
		timeout = r.cfg.TimeoutSeconds
	}

	var taskID int64
	if req.TaskID != nil {
		taskID = *req.TaskID
	}

	cfg := adapter.AdapterConfig{
		MCPServerCommand: []string{r.locateBridge()},
		APIURL:           r.cfg.APIURL,
		WorkingDirectory: r.workingDirectory(ctx, task),
		AgentID:          agent.ID,
		TeamID:           teamID,
		TaskID:           taskID,
		TimeoutSeconds:   timeout,
	}

	return ad.Run(ctx, prompt, cfg)
}

// promptInput gathers the template inputs: team conventions and saved
// task context ride along when available.
func (r *Runner) promptInput(ctx context.Context, agent *models.Agent, task *models.Task, teamID string, req RunRequest) adapter.PromptInput {
	in := adapter.PromptInput{
		TaskTitle: "General work",
		AgentID:   agent.ID,
		TeamID:    teamID,
		Role:      agent.Role,
	}
	if task != nil {
		in.TaskTitle = task.Title
		in.TaskDescription = task.Description
		in.TaskID = task.ID
		in.Context = task.Context()
	} else if req.TaskID != nil {
		in.TaskID = *req.TaskID
	}

	team, err := r.svc.GetTeam(ctx, teamID)
	if err != nil {
		r.logger.Warn("failed to load team conventions",
			zap.String("team_id", teamID), zap.Error(err))
		return in
	}
	in.Conventions = team.Conventions()
	return in
}

// workingDirectory prefers the task's worktree on its first repository
// and falls back to the process working directory.
func (r *Runner) workingDirectory(ctx context.Context, task *models.Task) string {
	if task != nil && r.git != nil && task.Branch != "" && len(task.RepoIDs) > 0 {
		repo, err := r.svc.GetRepo(ctx, task.RepoIDs[0])
		if err != nil {
			r.logger.Warn("failed to load task repository",
				zap.Int64("task_id", task.ID), zap.Error(err))
		} else if wt, wtErr := r.git.EnsureWorktree(ctx, repo, task.Branch); wtErr != nil {
			r.logger.Warn("failed to prepare worktree, using cwd",
				zap.Int64("task_id", task.ID), zap.Error(wtErr))
		} else {
			return wt.Path
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// locateBridge resolves the tool-bridge binary: explicit config wins,
// then a sibling of the running executable, then PATH lookup.
func (r *Runner) locateBridge() string {
	if r.cfg.BridgePath != "" {
		return r.cfg.BridgePath
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), BridgeBinaryName)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling
		}
	}
	return BridgeBinaryName
}

func (r *Runner) appendRunEvent(ctx context.Context, agentID, eventType string, data map[string]interface{}) {
	err := r.svc.Repository().AppendEvent(ctx, &models.Event{
		StreamID: events.AgentStream(agentID),
		Type:     eventType,
		Data:     data,
	})
	if err != nil {
		r.logger.Warn("failed to append run event",
			zap.String("agent_id", agentID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (r *Runner) publishFeed(ctx context.Context, teamID, eventType string, data map[string]interface{}) {
	if r.bus == nil || teamID == "" {
		return
	}
	subject := events.BuildTeamFeedSubject(teamID)
	if err := r.bus.Publish(ctx, subject, bus.NewEvent(eventType, "runner", data)); err != nil {
		r.logger.Warn("failed to publish run event",
			zap.String("subject", subject), zap.Error(err))
	}
}

// classify maps an adapter result onto the run classification and its
// event type.
func classify(res *adapter.AdapterResult) (string, string) {
	switch {
	case strings.Contains(res.Error, "timed out"):
		return RunTimeout, events.AgentRunTimeout
	case res.Ok():
		return RunCompleted, events.AgentRunCompleted
	default:
		return RunFailed, events.AgentRunFailed
	}
}

func configString(config map[string]interface{}, key string) string {
	if config == nil {
		return ""
	}
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func configInt(config map[string]interface{}, key string) int {
	if config == nil {
		return 0
	}
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
