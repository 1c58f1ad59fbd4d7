package client

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) CreateOrg(ctx context.Context, req CreateOrgRequest) (*Org, error) {
	var org Org
	if err := c.post(ctx, "/orgs", req, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) GetOrg(ctx context.Context, id string) (*Org, error) {
	var org Org
	if err := c.get(ctx, "/orgs/"+url.PathEscape(id), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) CreateTeam(ctx context.Context, orgID string, req CreateTeamRequest) (*Team, error) {
	var team Team
	if err := c.post(ctx, fmt.Sprintf("/orgs/%s/teams", url.PathEscape(orgID)), req, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) GetTeam(ctx context.Context, id string) (*Team, error) {
	var team Team
	if err := c.get(ctx, "/teams/"+url.PathEscape(id), &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) CreateAgent(ctx context.Context, teamID string, req CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/agents", url.PathEscape(teamID)), req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (c *Client) ListAgents(ctx context.Context, teamID string) ([]Agent, error) {
	var resp struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.get(ctx, fmt.Sprintf("/teams/%s/agents", url.PathEscape(teamID)), &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

func (c *Client) CreateRepo(ctx context.Context, teamID string, req CreateRepoRequest) (*Repository, error) {
	var repo Repository
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/repos", url.PathEscape(teamID)), req, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (c *Client) ListRepos(ctx context.Context, teamID string) ([]Repository, error) {
	var resp struct {
		Repos []Repository `json:"repos"`
	}
	if err := c.get(ctx, fmt.Sprintf("/teams/%s/repos", url.PathEscape(teamID)), &resp); err != nil {
		return nil, err
	}
	return resp.Repos, nil
}

// AddConvention upserts one team coding standard by key.
func (c *Client) AddConvention(ctx context.Context, teamID, key, content string) (*Team, error) {
	body := struct {
		Key     string `json:"key"`
		Content string `json:"content"`
	}{Key: key, Content: content}
	var team Team
	if err := c.post(ctx, fmt.Sprintf("/teams/%s/conventions", url.PathEscape(teamID)), body, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) ListConventions(ctx context.Context, teamID string) ([]Convention, error) {
	var resp struct {
		Conventions []Convention `json:"conventions"`
	}
	if err := c.get(ctx, fmt.Sprintf("/teams/%s/conventions", url.PathEscape(teamID)), &resp); err != nil {
		return nil, err
	}
	return resp.Conventions, nil
}

// RunAgent asks the server to run one agent turn in the background. The
// call returns as soon as the run is accepted.
func (c *Client) RunAgent(ctx context.Context, agentID string, input RunAgentInput) (*RunStarted, error) {
	var resp RunStarted
	if err := c.post(ctx, fmt.Sprintf("/agents/%s/run", url.PathEscape(agentID)), input, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
