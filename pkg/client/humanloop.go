package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

func (c *Client) CreateHumanRequest(ctx context.Context, input CreateHumanRequestInput) (*HumanRequest, error) {
	var req HumanRequest
	if err := c.post(ctx, "/human-requests", input, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) GetHumanRequest(ctx context.Context, id string) (*HumanRequest, error) {
	var req HumanRequest
	if err := c.get(ctx, "/human-requests/"+url.PathEscape(id), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) RespondToHumanRequest(ctx context.Context, id, response, respondedBy string) (*HumanRequest, error) {
	body := struct {
		Response    string `json:"response"`
		RespondedBy string `json:"responded_by,omitempty"`
	}{Response: response, RespondedBy: respondedBy}
	var req HumanRequest
	if err := c.post(ctx, fmt.Sprintf("/human-requests/%s/respond", url.PathEscape(id)), body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListHumanRequests returns a team's pending requests, or all of them
// when all is set.
func (c *Client) ListHumanRequests(ctx context.Context, teamID string, all bool) ([]HumanRequest, error) {
	path := fmt.Sprintf("/teams/%s/human-requests", url.PathEscape(teamID))
	if all {
		path += "?all=true"
	}
	var resp struct {
		Requests []HumanRequest `json:"requests"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// AwaitHumanResponse polls a request until a human resolves it, the
// request expires server-side, or ctx ends. The interval bounds API load,
// not response latency; it defaults to five seconds.
func (c *Client) AwaitHumanResponse(ctx context.Context, id string, interval time.Duration) (*HumanRequest, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		req, err := c.GetHumanRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Status != RequestPending {
			return req, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
