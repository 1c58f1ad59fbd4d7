package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
)

var errGitNotConfigured = fmt.Errorf("%w: git inspection is not configured", models.ErrValidation)

func (h *Handlers) pushBranch(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.PushBranchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	task, repo, err := h.svc.PushTaskBranch(c.Request.Context(), id, body.RepoID, body.Force)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.PushResponse{
		TaskID: task.ID,
		RepoID: repo.ID,
		Branch: task.Branch,
		Pushed: true,
	})
}

func (h *Handlers) createPR(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.CreatePRRequest
	if !bindOptional(c, &body) {
		return
	}
	pr, err := h.svc.OpenPullRequest(c.Request.Context(), id, body.RepoID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, pr)
}

// resolveTaskRepo loads the task and the repository named by the
// repo_id query parameter, defaulting to the task's first linked repo.
func (h *Handlers) resolveTaskRepo(c *gin.Context, id int64) (*models.Task, *models.Repository, error) {
	task, err := h.svc.GetTask(c.Request.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	repoID := c.Query("repo_id")
	if repoID == "" {
		if len(task.RepoIDs) == 0 {
			return nil, nil, fmt.Errorf("%w: task %d has no linked repositories", models.ErrValidation, id)
		}
		repoID = task.RepoIDs[0]
	}
	repo, err := h.svc.GetRepo(c.Request.Context(), repoID)
	if err != nil {
		return nil, nil, err
	}
	return task, repo, nil
}

func (h *Handlers) taskDiff(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if h.git == nil {
		respondError(c, h.logger, errGitNotConfigured)
		return
	}
	task, repo, err := h.resolveTaskRepo(c, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	diff, err := h.git.Diff(c.Request.Context(), repo, task.Branch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.DiffResponse{
		TaskID: task.ID,
		RepoID: repo.ID,
		Branch: task.Branch,
		Diff:   diff,
	})
}

func (h *Handlers) taskFiles(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if h.git == nil {
		respondError(c, h.logger, errGitNotConfigured)
		return
	}
	task, repo, err := h.resolveTaskRepo(c, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	files, err := h.git.ChangedFiles(c.Request.Context(), repo, task.Branch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	fileDTOs := make([]dto.ChangedFileDTO, 0, len(files))
	for _, f := range files {
		fileDTOs = append(fileDTOs, dto.ChangedFileDTO{
			Path:      f.Path,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
		})
	}
	c.JSON(http.StatusOK, dto.ChangedFilesResponse{
		TaskID: task.ID,
		RepoID: repo.ID,
		Branch: task.Branch,
		Files:  fileDTOs,
		Total:  len(fileDTOs),
	})
}

func (h *Handlers) repoFile(c *gin.Context) {
	if h.git == nil {
		respondError(c, h.logger, errGitNotConfigured)
		return
	}
	path := c.Query("path")
	if path == "" {
		badRequest(c, "path is required")
		return
	}
	repo, err := h.svc.GetRepo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ref := c.Query("ref")
	if ref == "" {
		ref = repo.DefaultBranch
	}
	content, err := h.git.FileContent(c.Request.Context(), repo, ref, path)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FileContentResponse{
		RepoID:  repo.ID,
		Path:    path,
		Ref:     ref,
		Content: content,
	})
}
