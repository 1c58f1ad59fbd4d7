package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
)

func (h *Handlers) requestReview(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.RequestReviewRequest
	if !bindOptional(c, &body) {
		return
	}
	review, err := h.svc.RequestReview(c.Request.Context(), id, body.ReviewerID, body.ReviewerType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromReview(review))
}

func (h *Handlers) listReviews(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	reviews, err := h.svc.ListReviews(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	reviewDTOs := make([]dto.ReviewDTO, 0, len(reviews))
	for _, r := range reviews {
		reviewDTOs = append(reviewDTOs, dto.FromReview(r))
	}
	c.JSON(http.StatusOK, dto.ListReviewsResponse{Reviews: reviewDTOs, Total: len(reviewDTOs)})
}

func (h *Handlers) addReviewComment(c *gin.Context) {
	var body dto.AddReviewCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	comment, err := h.svc.AddReviewComment(c.Request.Context(), c.Param("id"),
		body.AuthorID, body.AuthorType, body.Content, body.FilePath, body.LineNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromReviewComment(comment))
}

func (h *Handlers) submitVerdict(c *gin.Context) {
	var body dto.SubmitVerdictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	review, err := h.svc.SubmitVerdict(c.Request.Context(), c.Param("id"),
		body.Verdict, body.Summary, body.ReviewerID, body.ReviewerType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromReview(review))
}

func (h *Handlers) approveTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.ApproveTaskRequest
	if !bindOptional(c, &body) {
		return
	}
	task, err := h.svc.ChangeTaskStatus(c.Request.Context(), id, models.TaskStatusInApproval, body.ActorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) rejectTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.ApproveTaskRequest
	if !bindOptional(c, &body) {
		return
	}
	task, err := h.svc.ChangeTaskStatus(c.Request.Context(), id, models.TaskStatusInProgress, body.ActorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) mergeStatus(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	report, err := h.svc.MergeStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) queueMerge(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.QueueMergeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.RepoID == "" {
		badRequest(c, "repo_id is required")
		return
	}
	job, err := h.svc.QueueMerge(c.Request.Context(), id, body.RepoID, body.Strategy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromMergeJob(job))
}
