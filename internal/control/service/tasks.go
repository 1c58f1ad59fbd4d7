package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/events"
)

// TaskDraft is one task in a batch creation request. DependsOnIndices
// reference earlier positions in the same batch and resolve to task ids
// after insertion.
type TaskDraft struct {
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Priority         models.TaskPriority    `json:"priority"`
	AssigneeID       *string                `json:"assignee_id,omitempty"`
	DRIID            *string                `json:"dri_id,omitempty"`
	RepoIDs          []string               `json:"repo_ids,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	DependsOn        []int64                `json:"depends_on,omitempty"`
	DependsOnIndices []int                  `json:"depends_on_indices,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// TaskPatch carries the mutable task fields for partial updates. Nil
// pointers leave the field untouched; Metadata entries are merged in.
type TaskPatch struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *models.TaskPriority   `json:"priority,omitempty"`
	DRIID       *string                `json:"dri_id,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CreateTask inserts a task, derives its branch name, and appends
// task.created, all in one transaction.
func (s *Service) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", models.ErrValidation)
	}
	if task.Priority != "" && !models.ValidPriority(task.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", models.ErrValidation, task.Priority)
	}

	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		return createTaskInTx(ctx, store, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		zap.Int64("task_id", task.ID),
		zap.String("team_id", task.TeamID),
		zap.String("branch", task.Branch))
	s.publishFeed(ctx, task.TeamID, events.TaskCreated, map[string]interface{}{
		"task_id":  task.ID,
		"title":    task.Title,
		"status":   string(task.Status),
		"priority": string(task.Priority),
	})
	return task, nil
}

// createTaskInTx holds the shared insert path for single and batch
// creation: insert, derive branch, append task.created.
func createTaskInTx(ctx context.Context, store repository.Store, task *models.Task) error {
	if err := store.CreateTask(ctx, task); err != nil {
		return err
	}
	task.Branch = models.TaskBranch(task.ID, task.Title)
	if err := store.SetTaskBranch(ctx, task.ID, task.Branch); err != nil {
		return err
	}
	return store.AppendEvent(ctx, &models.Event{
		StreamID: events.TaskStream(task.ID),
		Type:     events.TaskCreated,
		Data: map[string]interface{}{
			"title":    task.Title,
			"priority": string(task.Priority),
			"branch":   task.Branch,
		},
	})
}

// CreateTasksBatch atomically creates an ordered set of tasks.
// DependsOnIndices must reference strictly earlier positions; any bad
// index fails the whole batch.
func (s *Service) CreateTasksBatch(ctx context.Context, teamID string, drafts []TaskDraft) ([]*models.Task, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", models.ErrValidation)
	}
	for i, draft := range drafts {
		if draft.Title == "" {
			return nil, fmt.Errorf("%w: task %d has no title", models.ErrValidation, i)
		}
		if draft.Priority != "" && !models.ValidPriority(draft.Priority) {
			return nil, fmt.Errorf("%w: task %d has unknown priority %q", models.ErrValidation, i, draft.Priority)
		}
		for _, idx := range draft.DependsOnIndices {
			if idx < 0 || idx >= i {
				return nil, fmt.Errorf("%w: task %d depends_on_indices %d must reference an earlier task",
					models.ErrValidation, i, idx)
			}
		}
	}

	tasks := make([]*models.Task, 0, len(drafts))
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		for _, draft := range drafts {
			task := &models.Task{
				TeamID:      teamID,
				Title:       draft.Title,
				Description: draft.Description,
				Priority:    draft.Priority,
				AssigneeID:  draft.AssigneeID,
				DRIID:       draft.DRIID,
				RepoIDs:     draft.RepoIDs,
				Tags:        draft.Tags,
				DependsOn:   append([]int64(nil), draft.DependsOn...),
				Metadata:    draft.Metadata,
			}
			for _, idx := range draft.DependsOnIndices {
				task.DependsOn = append(task.DependsOn, tasks[idx].ID)
			}
			if err := createTaskInTx(ctx, store, task); err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task batch created",
		zap.String("team_id", teamID),
		zap.Int("count", len(tasks)))
	for _, task := range tasks {
		s.publishFeed(ctx, teamID, events.TaskCreated, map[string]interface{}{
			"task_id":  task.ID,
			"title":    task.Title,
			"status":   string(task.Status),
			"priority": string(task.Priority),
		})
	}
	return tasks, nil
}

// GetTask retrieves a task by id.
func (s *Service) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// ListTasks returns a team's tasks with optional filters.
func (s *Service) ListTasks(ctx context.Context, teamID string, filter repository.TaskFilter) ([]*models.Task, error) {
	return s.repo.ListTasks(ctx, teamID, filter)
}

// UpdateTask applies a partial update and appends task.updated naming
// the touched fields.
func (s *Service) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*models.Task, error) {
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", models.ErrValidation, *patch.Priority)
	}

	var task *models.Task
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		task, err = store.GetTask(ctx, id)
		if err != nil {
			return err
		}

		var fields []string
		if patch.Title != nil && *patch.Title != task.Title {
			task.Title = *patch.Title
			fields = append(fields, "title")
		}
		if patch.Description != nil {
			task.Description = *patch.Description
			fields = append(fields, "description")
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
			fields = append(fields, "priority")
		}
		if patch.DRIID != nil {
			task.DRIID = patch.DRIID
			fields = append(fields, "dri_id")
		}
		if patch.RepoIDs != nil {
			task.RepoIDs = patch.RepoIDs
			fields = append(fields, "repo_ids")
		}
		if patch.Tags != nil {
			task.Tags = patch.Tags
			fields = append(fields, "tags")
		}
		if len(patch.Metadata) > 0 {
			if task.Metadata == nil {
				task.Metadata = make(map[string]interface{})
			}
			for k, v := range patch.Metadata {
				task.Metadata[k] = v
			}
			fields = append(fields, "metadata")
		}
		if len(fields) == 0 {
			return nil
		}

		if err := store.UpdateTask(ctx, task); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.TaskUpdated,
			Data:     map[string]interface{}{"fields": fields},
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ChangeTaskStatus moves a task through the state machine. Dependencies
// gate only the transition into in_progress; reaching done stamps
// completed_at. Appends task.status_changed in the same transaction and
// notifies the bus afterwards.
func (s *Service) ChangeTaskStatus(ctx context.Context, id int64, to models.TaskStatus, actorID string) (*models.Task, error) {
	if !models.ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, to)
	}

	var task *models.Task
	var from models.TaskStatus
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		task, err = store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		from = task.Status

		if !models.CanTransition(from, to) {
			return fmt.Errorf("%w: task %d cannot move from %s to %s",
				models.ErrInvalidTransition, id, from, to)
		}
		if to == models.TaskStatusInProgress {
			if err := checkDependencies(ctx, store, task); err != nil {
				return err
			}
		}

		task.Status = to
		if to == models.TaskStatusDone {
			now := time.Now().UTC()
			task.CompletedAt = &now
		}
		if err := store.UpdateTask(ctx, task); err != nil {
			return err
		}

		data := map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		}
		if actorID != "" {
			data["actor_id"] = actorID
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.TaskStatusChanged,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task status changed",
		zap.Int64("task_id", task.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	payload := map[string]interface{}{
		"task_id":    task.ID,
		"team_id":    task.TeamID,
		"old_status": string(from),
		"new_status": string(to),
	}
	s.publishNotify(ctx, events.SubjectTaskStatusChanged, events.TaskStatusChanged, payload)
	s.publishFeed(ctx, task.TeamID, events.TaskStatusChanged, payload)
	return task, nil
}

// checkDependencies fails when any dependency is missing or not done.
func checkDependencies(ctx context.Context, store repository.Store, task *models.Task) error {
	if len(task.DependsOn) == 0 {
		return nil
	}
	deps, err := store.GetTasksByIDs(ctx, task.DependsOn)
	if err != nil {
		return err
	}
	found := make(map[int64]*models.Task, len(deps))
	for _, dep := range deps {
		found[dep.ID] = dep
	}
	for _, depID := range task.DependsOn {
		dep, ok := found[depID]
		if !ok {
			return fmt.Errorf("%w: task %d depends on missing task %d",
				models.ErrDependencyBlocked, task.ID, depID)
		}
		if dep.Status != models.TaskStatusDone {
			return fmt.Errorf("%w: task %d is blocked by task %d (%s)",
				models.ErrDependencyBlocked, task.ID, depID, dep.Status)
		}
	}
	return nil
}

// AssignTask sets the assignee and appends task.assigned. The assignee
// must be an existing agent.
func (s *Service) AssignTask(ctx context.Context, id int64, assigneeID string) (*models.Task, error) {
	if assigneeID == "" {
		return nil, fmt.Errorf("%w: assignee_id is required", models.ErrValidation)
	}

	var task *models.Task
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		if _, err := store.GetAgent(ctx, assigneeID); err != nil {
			return err
		}
		var err error
		task, err = store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		task.AssigneeID = &assigneeID
		if err := store.UpdateTask(ctx, task); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.TaskAssigned,
			Data:     map[string]interface{}{"assignee_id": assigneeID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishFeed(ctx, task.TeamID, events.TaskAssigned, map[string]interface{}{
		"task_id":     task.ID,
		"assignee_id": assigneeID,
	})
	return task, nil
}

// SaveTaskContext stores one key/value carryover pair in the task's
// metadata context bag and appends task.context_saved.
func (s *Service) SaveTaskContext(ctx context.Context, id int64, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: context key is required", models.ErrValidation)
	}

	return s.repo.WithTx(ctx, func(store repository.Store) error {
		task, err := store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task.Metadata == nil {
			task.Metadata = make(map[string]interface{})
		}
		bag, ok := task.Metadata["context"].(map[string]interface{})
		if !ok {
			bag = make(map[string]interface{})
		}
		bag[key] = value
		task.Metadata["context"] = bag

		if err := store.UpdateTask(ctx, task); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.TaskContextSaved,
			Data:     map[string]interface{}{"key": key},
		})
	})
}

// GetTaskContext returns the saved context carryover map.
func (s *Service) GetTaskContext(ctx context.Context, id int64) (map[string]string, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return task.Context(), nil
}

// AddTaskComment appends a free-form note to the task's event log.
// Comments never move the task or trigger a dispatch.
func (s *Service) AddTaskComment(ctx context.Context, id int64, authorID, body string) (*models.Event, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", models.ErrValidation)
	}

	var event *models.Event
	var task *models.Task
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		task, err = store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		event = &models.Event{
			StreamID: events.TaskStream(id),
			Type:     events.TaskCommentAdded,
			Data: map[string]interface{}{
				"author_id": authorID,
				"body":      body,
			},
		}
		return store.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.publishFeed(ctx, task.TeamID, events.TaskCommentAdded, map[string]interface{}{
		"task_id":   id,
		"author_id": authorID,
	})
	return event, nil
}

// TaskEvents returns the task's event-log records in append order.
func (s *Service) TaskEvents(ctx context.Context, id int64, afterID int64, limit int) ([]*models.Event, error) {
	if _, err := s.repo.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, events.TaskStream(id), afterID, limit)
}
