package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/runner"
)

var errRunnerNotHosted = fmt.Errorf("%w: agent runs are not hosted by this process", models.ErrValidation)

// runAgent starts one agent turn in the background and returns
// immediately. The runner flips agent status and closes the session on
// every exit path, so nothing here needs to wait for it.
func (h *Handlers) runAgent(c *gin.Context) {
	var body dto.RunAgentRequest
	if !bindOptional(c, &body) {
		return
	}
	if h.runner == nil {
		respondError(c, h.logger, errRunnerNotHosted)
		return
	}

	agent, err := h.svc.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	req := runner.RunRequest{
		AgentID:         agent.ID,
		TeamID:          agent.TeamID,
		TaskID:          body.TaskID,
		PromptOverride:  body.Prompt,
		AdapterOverride: body.Adapter,
	}
	// The run outlives the HTTP request: keep its values (trace
	// context) but not its cancellation. Derived before the goroutine
	// because gin recycles request objects.
	runCtx := context.WithoutCancel(c.Request.Context())
	go func() {
		result, err := h.runner.Run(runCtx, req)
		if err != nil {
			h.logger.Error("agent run failed",
				zap.String("agent_id", agent.ID), zap.Error(err))
			return
		}
		h.logger.Info("agent run finished",
			zap.String("agent_id", agent.ID),
			zap.String("session_id", result.SessionID),
			zap.String("classification", result.Classification))
	}()

	resp := gin.H{
		"agent_id": agent.ID,
		"team_id":  agent.TeamID,
		"started":  true,
	}
	if body.TaskID != nil {
		resp["task_id"] = *body.TaskID
	}
	if body.Adapter != "" {
		resp["adapter"] = body.Adapter
	}
	c.JSON(http.StatusAccepted, resp)
}
