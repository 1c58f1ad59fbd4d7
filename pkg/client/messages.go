package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

func (c *Client) SendMessage(ctx context.Context, teamID string, req SendMessageRequest) (*Message, error) {
	var msg Message
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/messages", url.PathEscape(teamID)), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Inbox returns an agent's messages, unprocessed ones only unless all is
// set. Fetching marks the returned messages as seen server-side.
func (c *Client) Inbox(ctx context.Context, agentID string, all bool, limit int) ([]Message, error) {
	q := url.Values{}
	if all {
		q.Set("unprocessed_only", "false")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/agents/%s/inbox", url.PathEscape(agentID))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MarkMessageProcessed acknowledges a message so it stops reappearing in
// the inbox and stops counting as a pending dispatch.
func (c *Client) MarkMessageProcessed(ctx context.Context, messageID string) error {
	return c.post(ctx, fmt.Sprintf("/messages/%s/processed", url.PathEscape(messageID)), nil, nil)
}
