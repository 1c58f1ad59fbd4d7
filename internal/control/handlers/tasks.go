package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/control/service"
)

// taskID parses the :id path segment. Responds 404 on garbage so that
// numeric and missing ids fail the same way.
func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) createTask(c *gin.Context) {
	var body dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), &models.Task{
		TeamID:      c.Param("id"),
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		DRIID:       body.DRIID,
		AssigneeID:  body.AssigneeID,
		DependsOn:   body.DependsOn,
		RepoIDs:     body.RepoIDs,
		Tags:        body.Tags,
		Metadata:    body.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromTask(task))
}

func (h *Handlers) createTasksBatch(c *gin.Context) {
	var body dto.CreateTasksBatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if len(body.Tasks) == 0 {
		badRequest(c, "tasks is required")
		return
	}
	tasks, err := h.svc.CreateTasksBatch(c.Request.Context(), c.Param("id"), body.Tasks)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ListTasksResponse{Tasks: dto.FromTasks(tasks), Total: len(tasks)})
}

func (h *Handlers) listTasks(c *gin.Context) {
	filter := repository.TaskFilter{
		Status:     models.TaskStatus(c.Query("status")),
		AssigneeID: c.Query("assignee_id"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{Tasks: dto.FromTasks(tasks), Total: len(tasks)})
}

func (h *Handlers) getTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) updateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	task, err := h.svc.UpdateTask(c.Request.Context(), id, service.TaskPatch{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		DRIID:       body.DRIID,
		RepoIDs:     body.RepoIDs,
		Tags:        body.Tags,
		Metadata:    body.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) changeTaskStatus(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.ChangeTaskStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	task, err := h.svc.ChangeTaskStatus(c.Request.Context(), id, body.Status, body.ActorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) assignTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.AssignTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.AssigneeID == "" {
		badRequest(c, "assignee_id is required")
		return
	}
	task, err := h.svc.AssignTask(c.Request.Context(), id, body.AssigneeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handlers) listTaskEvents(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var afterID int64
	if v := c.Query("after_id"); v != "" {
		afterID, _ = strconv.ParseInt(v, 10, 64)
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	taskEvents, err := h.svc.TaskEvents(c.Request.Context(), id, afterID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	eventDTOs := make([]dto.EventDTO, 0, len(taskEvents))
	for _, ev := range taskEvents {
		eventDTOs = append(eventDTOs, dto.FromEvent(ev))
	}
	c.JSON(http.StatusOK, dto.ListEventsResponse{Events: eventDTOs, Total: len(eventDTOs)})
}

func (h *Handlers) saveTaskContext(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.SaveContextRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.Key == "" {
		badRequest(c, "key is required")
		return
	}
	if err := h.svc.SaveTaskContext(c.Request.Context(), id, body.Key, body.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *Handlers) getTaskContext(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	taskContext, err := h.svc.GetTaskContext(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if taskContext == nil {
		taskContext = map[string]string{}
	}
	c.JSON(http.StatusOK, dto.TaskContextResponse{TaskID: id, Context: taskContext})
}

func (h *Handlers) addTaskComment(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body dto.AddTaskCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.Body == "" {
		badRequest(c, "body is required")
		return
	}
	event, err := h.svc.AddTaskComment(c.Request.Context(), id, body.AuthorID, body.Body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromEvent(event))
}
