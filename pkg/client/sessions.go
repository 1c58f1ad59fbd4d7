package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// StartSession opens a work session for an agent. A 429 means the agent
// is out of budget; IsBudgetExceeded detects it.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (*Session, error) {
	var sess Session
	if err := c.post(ctx, "/sessions/start", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// RecordUsage adds token counts to a running session. Cost accrues
// server-side from the session's model pricing.
func (c *Client) RecordUsage(ctx context.Context, sessionID string, usage Usage) (*Session, error) {
	var sess Session
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/usage", url.PathEscape(sessionID)), usage, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// EndSession closes a session, recording the error when the run failed.
func (c *Client) EndSession(ctx context.Context, sessionID string, runErr *string) (*Session, error) {
	body := struct {
		Error *string `json:"error,omitempty"`
	}{Error: runErr}
	var sess Session
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/end", url.PathEscape(sessionID)), body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// AgentBudget reports an agent's spend against its limits, including the
// per-task limit when taskID is given.
func (c *Client) AgentBudget(ctx context.Context, agentID string, taskID *int64) (*BudgetStatus, error) {
	path := fmt.Sprintf("/agents/%s/budget", url.PathEscape(agentID))
	if taskID != nil {
		path += "?task_id=" + strconv.FormatInt(*taskID, 10)
	}
	var status BudgetStatus
	if err := c.get(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TeamCosts summarizes a team's spend over the trailing period.
func (c *Client) TeamCosts(ctx context.Context, teamID string, days int) (*CostReport, error) {
	path := fmt.Sprintf("/teams/%s/costs", url.PathEscape(teamID))
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var report CostReport
	if err := c.get(ctx, path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
