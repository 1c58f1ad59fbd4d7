package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
)

func (h *Handlers) sendMessage(c *gin.Context) {
	var body dto.SendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	msg, err := h.svc.SendMessage(c.Request.Context(), &models.Message{
		TeamID:        c.Param("id"),
		SenderID:      body.SenderID,
		SenderType:    body.SenderType,
		RecipientID:   body.RecipientID,
		RecipientType: body.RecipientType,
		TaskID:        body.TaskID,
		Content:       body.Content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromMessage(msg))
}

func (h *Handlers) inbox(c *gin.Context) {
	unprocessedOnly := c.Query("unprocessed_only") != "false"
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := h.svc.Inbox(c.Request.Context(), c.Param("id"), unprocessedOnly, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	messageDTOs := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		messageDTOs = append(messageDTOs, dto.FromMessage(m))
	}
	c.JSON(http.StatusOK, dto.ListMessagesResponse{Messages: messageDTOs, Total: len(messageDTOs)})
}

func (h *Handlers) markMessageProcessed(c *gin.Context) {
	if err := h.svc.MarkMessageProcessed(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
