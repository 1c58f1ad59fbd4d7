package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/service"
)

func (h *Handlers) createHumanRequest(c *gin.Context) {
	var draft service.HumanRequestDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	req, err := h.svc.CreateHumanRequest(c.Request.Context(), draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromHumanRequest(req))
}

func (h *Handlers) getHumanRequest(c *gin.Context) {
	req, err := h.svc.GetHumanRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromHumanRequest(req))
}

func (h *Handlers) respondHumanRequest(c *gin.Context) {
	var body dto.RespondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.Response == "" {
		badRequest(c, "response is required")
		return
	}
	req, err := h.svc.RespondToRequest(c.Request.Context(), c.Param("id"), body.Response, body.RespondedBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromHumanRequest(req))
}

func (h *Handlers) listHumanRequests(c *gin.Context) {
	all := c.Query("all") == "true"
	requests, err := h.svc.ListHumanRequests(c.Request.Context(), c.Param("id"), all)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	requestDTOs := make([]dto.HumanRequestDTO, 0, len(requests))
	for _, r := range requests {
		requestDTOs = append(requestDTOs, dto.FromHumanRequest(r))
	}
	c.JSON(http.StatusOK, dto.ListHumanRequestsResponse{Requests: requestDTOs, Total: len(requestDTOs)})
}
