package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// TaskFilter narrows ListTasks. Zero values mean no filtering.
type TaskFilter struct {
	Status     string
	AssigneeID string
	Limit      int
	Offset     int
}

func (f TaskFilter) encode() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.AssigneeID != "" {
		q.Set("assignee_id", f.AssigneeID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) CreateTask(ctx context.Context, teamID string, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/tasks", url.PathEscape(teamID)), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTasksBatch creates several tasks atomically. Drafts may depend on
// each other by index; the server resolves those to task IDs.
func (c *Client) CreateTasksBatch(ctx context.Context, teamID string, drafts []TaskDraft) ([]Task, error) {
	body := struct {
		Tasks []TaskDraft `json:"tasks"`
	}{Tasks: drafts}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/tasks/batch", url.PathEscape(teamID)), body, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) ListTasks(ctx context.Context, teamID string, filter TaskFilter) ([]Task, error) {
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	path := fmt.Sprintf("/teams/%s/tasks%s", url.PathEscape(teamID), filter.encode())
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	var task Task
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d", id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) (*Task, error) {
	var task Task
	if err := c.patch(ctx, fmt.Sprintf("/tasks/%d", id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ChangeTaskStatus moves a task through its lifecycle. The server refuses
// invalid transitions and dependency-blocked starts with a 409.
func (c *Client) ChangeTaskStatus(ctx context.Context, id int64, status, actorID string) (*Task, error) {
	body := struct {
		Status  string `json:"status"`
		ActorID string `json:"actor_id,omitempty"`
	}{Status: status, ActorID: actorID}
	var task Task
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/status", id), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) AssignTask(ctx context.Context, id int64, assigneeID string) (*Task, error) {
	body := struct {
		AssigneeID string `json:"assignee_id"`
	}{AssigneeID: assigneeID}
	var task Task
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/assign", id), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskEvents pages through a task's event history. afterID of zero starts
// from the beginning.
func (c *Client) TaskEvents(ctx context.Context, id, afterID int64, limit int) ([]Event, error) {
	q := url.Values{}
	if afterID > 0 {
		q.Set("after_id", strconv.FormatInt(afterID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/tasks/%d/events", id)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// AddTaskComment appends a free-form note to the task's event log.
func (c *Client) AddTaskComment(ctx context.Context, id int64, authorID, body string) (*Event, error) {
	payload := struct {
		AuthorID string `json:"author_id,omitempty"`
		Body     string `json:"body"`
	}{AuthorID: authorID, Body: body}
	var event Event
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/comments", id), payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// SaveTaskContext stores one key in the task's durable scratchpad.
func (c *Client) SaveTaskContext(ctx context.Context, id int64, key, value string) error {
	body := struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Key: key, Value: value}
	return c.post(ctx, fmt.Sprintf("/tasks/%d/context", id), body, nil)
}

func (c *Client) TaskContext(ctx context.Context, id int64) (map[string]string, error) {
	var resp struct {
		Context map[string]string `json:"context"`
	}
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d/context", id), &resp); err != nil {
		return nil, err
	}
	return resp.Context, nil
}
