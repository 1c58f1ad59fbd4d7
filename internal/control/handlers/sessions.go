package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
)

func (h *Handlers) startSession(c *gin.Context) {
	var body dto.StartSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.AgentID == "" {
		badRequest(c, "agent_id is required")
		return
	}
	session, err := h.svc.StartSession(c.Request.Context(), body.AgentID, body.TaskID, body.Model)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromSession(session))
}

func (h *Handlers) recordUsage(c *gin.Context) {
	var body dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	session, err := h.svc.RecordUsage(c.Request.Context(), c.Param("id"),
		body.TokensIn, body.TokensOut, body.CacheRead, body.CacheWrite)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromSession(session))
}

func (h *Handlers) endSession(c *gin.Context) {
	var body dto.EndSessionRequest
	if !bindOptional(c, &body) {
		return
	}
	session, err := h.svc.EndSession(c.Request.Context(), c.Param("id"), body.Error)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromSession(session))
}

func (h *Handlers) agentBudget(c *gin.Context) {
	var taskID *int64
	if v := c.Query("task_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "task_id must be numeric")
			return
		}
		taskID = &id
	}
	budget, err := h.svc.CheckBudget(c.Request.Context(), c.Param("id"), taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

func (h *Handlers) teamCosts(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	report, err := h.svc.TeamCosts(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
