package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
)

const sessionColumns = `id, agent_id, task_id, model, tokens_in, tokens_out,
	cache_read, cache_write, cost_usd, error, started_at, ended_at`

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var taskID sql.NullInt64
	var errMsg sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(&session.ID, &session.AgentID, &taskID, &session.Model,
		&session.TokensIn, &session.TokensOut, &session.CacheRead, &session.CacheWrite,
		&session.CostUSD, &errMsg, &session.StartedAt, &endedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		session.TaskID = &taskID.Int64
	}
	if errMsg.Valid {
		session.Error = &errMsg.String
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return session, nil
}

// CreateSession opens a usage-tracking record for one agent turn.
func (s *store) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO sessions (id, agent_id, task_id, model, tokens_in, tokens_out,
			cache_read, cache_write, cost_usd, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), session.ID, session.AgentID, session.TaskID, session.Model,
		session.TokensIn, session.TokensOut, session.CacheRead, session.CacheWrite,
		session.CostUSD, session.StartedAt)
	return err
}

// GetSession retrieves a session by ID.
func (s *store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?
	`), id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession writes back the usage counters and terminal fields.
func (s *store) UpdateSession(ctx context.Context, session *models.Session) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE sessions SET tokens_in = ?, tokens_out = ?, cache_read = ?, cache_write = ?,
			cost_usd = ?, error = ?, ended_at = ?
		WHERE id = ?
	`), session.TokensIn, session.TokensOut, session.CacheRead, session.CacheWrite,
		session.CostUSD, session.Error, session.EndedAt, session.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: session %s", models.ErrNotFound, session.ID)
	}
	return nil
}

// ListSessions returns sessions newest-first with optional filters.
func (s *store) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []interface{}

	if filter.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.TaskID != 0 {
		query += ` AND task_id = ?`
		args = append(args, filter.TaskID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// AgentSpendSince sums an agent's cost over sessions started after the
// given time. Budget checks call it with the UTC midnight boundary.
func (s *store) AgentSpendSince(ctx context.Context, agentID string, since time.Time) (float64, error) {
	var total float64
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT COALESCE(SUM(cost_usd), 0) FROM sessions
		WHERE agent_id = ? AND started_at >= ?
	`), agentID, since)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TaskSpend sums the cost of every session charged to a task.
func (s *store) TaskSpend(ctx context.Context, taskID int64) (float64, error) {
	var total float64
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT COALESCE(SUM(cost_usd), 0) FROM sessions WHERE task_id = ?
	`), taskID)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CostSummary aggregates a team's spend since the given time, broken
// down per agent and per model.
func (s *store) CostSummary(ctx context.Context, teamID string, since time.Time) (*repository.CostSummary, error) {
	summary := &repository.CostSummary{}

	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT COALESCE(SUM(s.cost_usd), 0), COALESCE(SUM(s.tokens_in), 0),
			COALESCE(SUM(s.tokens_out), 0), COUNT(s.id)
		FROM sessions s
		JOIN agents a ON a.id = s.agent_id
		WHERE a.team_id = ? AND s.started_at >= ?
	`), teamID, since)
	if err := row.Scan(&summary.TotalCostUSD, &summary.TotalTokensIn,
		&summary.TotalTokensOut, &summary.SessionCount); err != nil {
		return nil, err
	}

	agentRows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT a.id AS agent_id, a.name AS agent_name,
			COALESCE(SUM(s.cost_usd), 0) AS cost_usd, COUNT(s.id) AS sessions
		FROM sessions s
		JOIN agents a ON a.id = s.agent_id
		WHERE a.team_id = ? AND s.started_at >= ?
		GROUP BY a.id, a.name
		ORDER BY cost_usd DESC
	`), teamID, since)
	if err != nil {
		return nil, err
	}
	defer agentRows.Close()
	for agentRows.Next() {
		var ac repository.AgentCost
		if err := agentRows.StructScan(&ac); err != nil {
			return nil, err
		}
		summary.PerAgent = append(summary.PerAgent, ac)
	}
	if err := agentRows.Err(); err != nil {
		return nil, err
	}

	modelRows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT s.model AS model, COALESCE(SUM(s.cost_usd), 0) AS cost_usd, COUNT(s.id) AS sessions
		FROM sessions s
		JOIN agents a ON a.id = s.agent_id
		WHERE a.team_id = ? AND s.started_at >= ?
		GROUP BY s.model
		ORDER BY cost_usd DESC
	`), teamID, since)
	if err != nil {
		return nil, err
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var mc repository.ModelCost
		if err := modelRows.StructScan(&mc); err != nil {
			return nil, err
		}
		summary.PerModel = append(summary.PerModel, mc)
	}
	return summary, modelRows.Err()
}
