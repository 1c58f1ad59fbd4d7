package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/control/models"
)

// CreateAgent inserts a new agent in idle status unless one is set.
func (s *store) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Status == "" {
		agent.Status = models.AgentStatusIdle
	}
	agent.CreatedAt = time.Now().UTC()
	agent.StatusChangedAt = agent.CreatedAt

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO agents (id, team_id, name, role, model, status, config, status_changed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), agent.ID, agent.TeamID, agent.Name, agent.Role, agent.Model, agent.Status,
		encodeJSON(agent.Config, "{}"), agent.StatusChangedAt, agent.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: agent name %q", models.ErrDuplicateKey, agent.Name)
	}
	return err
}

// GetAgent retrieves an agent by ID.
func (s *store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	agent := &models.Agent{}
	var config string
	err := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT id, team_id, name, role, model, status, config, status_changed_at, created_at
		FROM agents WHERE id = ?
	`), id).Scan(&agent.ID, &agent.TeamID, &agent.Name, &agent.Role, &agent.Model,
		&agent.Status, &config, &agent.StatusChangedAt, &agent.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: agent %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	decodeJSON(config, &agent.Config)
	return agent, nil
}

// ListAgents returns all agents on a team ordered by name.
func (s *store) ListAgents(ctx context.Context, teamID string) ([]*models.Agent, error) {
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT id, team_id, name, role, model, status, config, status_changed_at, created_at
		FROM agents WHERE team_id = ? ORDER BY name
	`), teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		agent := &models.Agent{}
		var config string
		if err := rows.Scan(&agent.ID, &agent.TeamID, &agent.Name, &agent.Role,
			&agent.Model, &agent.Status, &config, &agent.StatusChangedAt, &agent.CreatedAt); err != nil {
			return nil, err
		}
		decodeJSON(config, &agent.Config)
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgentStatus flips an agent's status and stamps the change time.
func (s *store) UpdateAgentStatus(ctx context.Context, agentID string, status models.AgentStatus) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE agents SET status = ?, status_changed_at = ? WHERE id = ?
	`), status, time.Now().UTC(), agentID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: agent %s", models.ErrNotFound, agentID)
	}
	return nil
}

// ResetStuckAgents flips agents back to idle when they flipped to
// working before the cutoff and have no session opened since then.
// Returns the number reset.
func (s *store) ResetStuckAgents(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE agents SET status = 'idle', status_changed_at = ?
		WHERE status = 'working'
		  AND status_changed_at < ?
		  AND id NOT IN (
			SELECT agent_id FROM sessions
			WHERE ended_at IS NULL AND started_at > ?
		  )
	`), time.Now().UTC(), cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
