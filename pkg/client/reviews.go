package client

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) RequestReview(ctx context.Context, taskID int64, input RequestReviewInput) (*Review, error) {
	var review Review
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/reviews", taskID), input, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) ListReviews(ctx context.Context, taskID int64) ([]Review, error) {
	var resp struct {
		Reviews []Review `json:"reviews"`
	}
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d/reviews", taskID), &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

func (c *Client) AddReviewComment(ctx context.Context, reviewID string, input ReviewCommentInput) (*ReviewComment, error) {
	var comment ReviewComment
	if err := c.post(ctx, fmt.Sprintf("/reviews/%s/comments", url.PathEscape(reviewID)), input, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// SubmitVerdict resolves a review. Approval moves the task to the human
// approval gate; request_changes sends it back to the engineer.
func (c *Client) SubmitVerdict(ctx context.Context, reviewID string, input VerdictInput) (*Review, error) {
	var review Review
	if err := c.post(ctx, fmt.Sprintf("/reviews/%s/verdict", url.PathEscape(reviewID)), input, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// ApproveTask records the human go-ahead and moves the task to merging.
func (c *Client) ApproveTask(ctx context.Context, taskID int64, actorID string) (*Task, error) {
	body := struct {
		ActorID string `json:"actor_id,omitempty"`
	}{ActorID: actorID}
	var task Task
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/approve", taskID), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// RejectTask sends an approval-stage task back to in_progress.
func (c *Client) RejectTask(ctx context.Context, taskID int64, actorID string) (*Task, error) {
	body := struct {
		ActorID string `json:"actor_id,omitempty"`
	}{ActorID: actorID}
	var task Task
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/reject", taskID), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) MergeStatus(ctx context.Context, taskID int64) (*MergeStatus, error) {
	var status MergeStatus
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d/merge-status", taskID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// QueueMerge enqueues a merge job for the task's branch. Strategy may be
// empty to take the repository default.
func (c *Client) QueueMerge(ctx context.Context, taskID int64, repoID, strategy string) (*MergeJob, error) {
	body := struct {
		RepoID   string `json:"repo_id"`
		Strategy string `json:"strategy,omitempty"`
	}{RepoID: repoID, Strategy: strategy}
	var job MergeJob
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/merge", taskID), body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) PushBranch(ctx context.Context, taskID int64, repoID string, force bool) (*PushResult, error) {
	body := struct {
		RepoID string `json:"repo_id"`
		Force  bool   `json:"force,omitempty"`
	}{RepoID: repoID, Force: force}
	var result PushResult
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/push", taskID), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePullRequest opens a PR for the task's branch on the code host.
// Empty repoID defaults to the task's first linked repository.
func (c *Client) CreatePullRequest(ctx context.Context, taskID int64, repoID string) (*PullRequest, error) {
	body := struct {
		RepoID string `json:"repo_id,omitempty"`
	}{RepoID: repoID}
	var pr PullRequest
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/pr", taskID), body, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// TaskDiff returns the branch diff against the repo's default branch.
// Empty repoID defaults to the task's first linked repository.
func (c *Client) TaskDiff(ctx context.Context, taskID int64, repoID string) (*Diff, error) {
	path := fmt.Sprintf("/tasks/%d/diff", taskID)
	if repoID != "" {
		path += "?repo_id=" + url.QueryEscape(repoID)
	}
	var diff Diff
	if err := c.get(ctx, path, &diff); err != nil {
		return nil, err
	}
	return &diff, nil
}

func (c *Client) ChangedFiles(ctx context.Context, taskID int64, repoID string) (*ChangedFiles, error) {
	path := fmt.Sprintf("/tasks/%d/files", taskID)
	if repoID != "" {
		path += "?repo_id=" + url.QueryEscape(repoID)
	}
	var files ChangedFiles
	if err := c.get(ctx, path, &files); err != nil {
		return nil, err
	}
	return &files, nil
}

// RepoFile reads one file from a repository at ref, defaulting to the
// repo's default branch when ref is empty.
func (c *Client) RepoFile(ctx context.Context, repoID, path, ref string) (*FileContent, error) {
	q := url.Values{}
	q.Set("path", path)
	if ref != "" {
		q.Set("ref", ref)
	}
	var content FileContent
	reqPath := fmt.Sprintf("/repos/%s/file?%s", url.PathEscape(repoID), q.Encode())
	if err := c.get(ctx, reqPath, &content); err != nil {
		return nil, err
	}
	return &content, nil
}
