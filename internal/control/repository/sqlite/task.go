package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/db/dialect"
)

const taskColumns = `id, team_id, title, description, status, priority, dri_id, assignee_id,
	depends_on, repo_ids, tags, branch, metadata, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dri, assignee sql.NullString
	var completedAt sql.NullTime
	var dependsOn, repoIDs, tags, metadata string

	err := row.Scan(&task.ID, &task.TeamID, &task.Title, &task.Description, &task.Status,
		&task.Priority, &dri, &assignee, &dependsOn, &repoIDs, &tags, &task.Branch,
		&metadata, &task.CreatedAt, &task.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if dri.Valid {
		task.DRIID = &dri.String
	}
	if assignee.Valid {
		task.AssigneeID = &assignee.String
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	decodeJSON(dependsOn, &task.DependsOn)
	decodeJSON(repoIDs, &task.RepoIDs)
	decodeJSON(tags, &task.Tags)
	decodeJSON(metadata, &task.Metadata)
	return task, nil
}

// CreateTask inserts a new task and fills in its autoincrement ID.
func (s *store) CreateTask(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	id, err := dialect.InsertReturningID(ctx, s.w, `
		INSERT INTO tasks (team_id, title, description, status, priority, dri_id, assignee_id,
			depends_on, repo_ids, tags, branch, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TeamID, task.Title, task.Description, task.Status, task.Priority,
		task.DRIID, task.AssigneeID,
		encodeJSON(task.DependsOn, "[]"), encodeJSON(task.RepoIDs, "[]"),
		encodeJSON(task.Tags, "[]"), task.Branch, encodeJSON(task.Metadata, "{}"),
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

// GetTask retrieves a task by ID.
func (s *store) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+taskColumns+` FROM tasks WHERE id = ?
	`), id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTasksByIDs retrieves the tasks whose ids are in the given set.
// Missing ids are simply absent from the result.
func (s *store) GetTasksByIDs(ctx context.Context, ids []int64) ([]*models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+taskColumns+` FROM tasks WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListTasks returns a team's tasks newest-first with optional filters.
func (s *store) ListTasks(ctx context.Context, teamID string, filter repository.TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE team_id = ?`
	args := []interface{}{teamID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.AssigneeID != "" {
		query += ` AND assignee_id = ?`
		args = append(args, filter.AssigneeID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask writes back every mutable task column.
func (s *store) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, dri_id = ?,
			assignee_id = ?, depends_on = ?, repo_ids = ?, tags = ?, branch = ?, metadata = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`), task.Title, task.Description, task.Status, task.Priority, task.DRIID,
		task.AssigneeID, encodeJSON(task.DependsOn, "[]"), encodeJSON(task.RepoIDs, "[]"),
		encodeJSON(task.Tags, "[]"), task.Branch, encodeJSON(task.Metadata, "{}"),
		task.UpdatedAt, task.CompletedAt, task.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: task %d", models.ErrNotFound, task.ID)
	}
	return nil
}

// SetTaskBranch records the derived branch name after creation.
func (s *store) SetTaskBranch(ctx context.Context, id int64, branch string) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE tasks SET branch = ? WHERE id = ?
	`), branch, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: task %d", models.ErrNotFound, id)
	}
	return nil
}

// FindActiveTaskForAgent returns the agent's most recently touched
// in_progress task.
func (s *store) FindActiveTaskForAgent(ctx context.Context, agentID string) (*models.Task, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+taskColumns+` FROM tasks
		WHERE assignee_id = ? AND status = 'in_progress'
		ORDER BY updated_at DESC LIMIT 1
	`), agentID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no in_progress task for agent %s", models.ErrNotFound, agentID)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}
