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

const requestColumns = `id, team_id, agent_id, task_id, kind, question, options, status,
	response, responded_by, timeout_at, created_at, resolved_at`

func scanHumanRequest(row rowScanner) (*models.HumanRequest, error) {
	req := &models.HumanRequest{}
	var taskID sql.NullInt64
	var options string
	var response, respondedBy sql.NullString
	var timeoutAt, resolvedAt sql.NullTime

	err := row.Scan(&req.ID, &req.TeamID, &req.AgentID, &taskID, &req.Kind, &req.Question,
		&options, &req.Status, &response, &respondedBy, &timeoutAt, &req.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		req.TaskID = &taskID.Int64
	}
	if response.Valid {
		req.Response = &response.String
	}
	if respondedBy.Valid {
		req.RespondedBy = &respondedBy.String
	}
	if timeoutAt.Valid {
		req.TimeoutAt = &timeoutAt.Time
	}
	if resolvedAt.Valid {
		req.ResolvedAt = &resolvedAt.Time
	}
	decodeJSON(options, &req.Options)
	return req, nil
}

// CreateHumanRequest persists a new pending request.
func (s *store) CreateHumanRequest(ctx context.Context, req *models.HumanRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.CreatedAt = time.Now().UTC()
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.Kind == "" {
		req.Kind = models.RequestKindQuestion
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO human_requests (id, team_id, agent_id, task_id, kind, question, options,
			status, timeout_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), req.ID, req.TeamID, req.AgentID, req.TaskID, req.Kind, req.Question,
		encodeJSON(req.Options, "[]"), req.Status, req.TimeoutAt, req.CreatedAt)
	return err
}

// GetHumanRequest retrieves a request by ID.
func (s *store) GetHumanRequest(ctx context.Context, id string) (*models.HumanRequest, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+requestColumns+` FROM human_requests WHERE id = ?
	`), id)
	req, err := scanHumanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: human request %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateHumanRequest writes back the resolution fields.
func (s *store) UpdateHumanRequest(ctx context.Context, req *models.HumanRequest) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE human_requests SET status = ?, response = ?, responded_by = ?, resolved_at = ?
		WHERE id = ?
	`), req.Status, req.Response, req.RespondedBy, req.ResolvedAt, req.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: human request %s", models.ErrNotFound, req.ID)
	}
	return nil
}

// ListHumanRequests returns a team's requests newest-first with
// optional filters.
func (s *store) ListHumanRequests(ctx context.Context, teamID string, filter repository.RequestFilter) ([]*models.HumanRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM human_requests WHERE team_id = ?`
	args := []interface{}{teamID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
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
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*models.HumanRequest
	for rows.Next() {
		req, err := scanHumanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListExpiredPendingRequests finds pending requests whose deadline has
// passed. The reconciler expires them.
func (s *store) ListExpiredPendingRequests(ctx context.Context, now time.Time) ([]*models.HumanRequest, error) {
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT `+requestColumns+` FROM human_requests
		WHERE status = 'pending' AND timeout_at IS NOT NULL AND timeout_at < ?
		ORDER BY timeout_at ASC
	`), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*models.HumanRequest
	for rows.Next() {
		req, err := scanHumanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
