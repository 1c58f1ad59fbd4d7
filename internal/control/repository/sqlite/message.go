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

const messageColumns = `id, team_id, sender_id, sender_type, recipient_id, recipient_type,
	task_id, content, delivered_at, seen_at, processed_at, created_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var taskID sql.NullInt64
	var delivered, seen, processed sql.NullTime

	err := row.Scan(&msg.ID, &msg.TeamID, &msg.SenderID, &msg.SenderType,
		&msg.RecipientID, &msg.RecipientType, &taskID, &msg.Content,
		&delivered, &seen, &processed, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		msg.TaskID = &taskID.Int64
	}
	if delivered.Valid {
		msg.DeliveredAt = &delivered.Time
	}
	if seen.Valid {
		msg.SeenAt = &seen.Time
	}
	if processed.Valid {
		msg.ProcessedAt = &processed.Time
	}
	return msg, nil
}

// CreateMessage persists a new message. DeliveredAt is stamped
// immediately; the bus notification happens at the service layer.
func (s *store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	msg.CreatedAt = now
	if msg.DeliveredAt == nil {
		msg.DeliveredAt = &now
	}
	if msg.SenderType == "" {
		msg.SenderType = models.ActorAgent
	}
	if msg.RecipientType == "" {
		msg.RecipientType = models.ActorAgent
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO messages (id, team_id, sender_id, sender_type, recipient_id, recipient_type,
			task_id, content, delivered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), msg.ID, msg.TeamID, msg.SenderID, msg.SenderType, msg.RecipientID, msg.RecipientType,
		msg.TaskID, msg.Content, msg.DeliveredAt, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+messageColumns+` FROM messages WHERE id = ?
	`), id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListInbox returns messages addressed to a recipient, newest first.
func (s *store) ListInbox(ctx context.Context, recipientID string, unprocessedOnly bool, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE recipient_id = ?`
	args := []interface{}{recipientID}
	if unprocessedOnly {
		query += ` AND processed_at IS NULL`
	}
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

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkMessageProcessed stamps processed_at. Already-processed messages
// are left untouched so the stamp records the first processing.
func (s *store) MarkMessageProcessed(ctx context.Context, id string) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE messages SET processed_at = ? WHERE id = ? AND processed_at IS NULL
	`), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := s.GetMessage(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// MarkMessageSeen stamps seen_at on first read.
func (s *store) MarkMessageSeen(ctx context.Context, id string) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE messages SET seen_at = ? WHERE id = ? AND seen_at IS NULL
	`), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := s.GetMessage(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// ListPendingDispatches finds idle agents that have unprocessed
// messages waiting. The poller uses it to catch dispatches lost to
// missed bus notifications.
func (s *store) ListPendingDispatches(ctx context.Context, limit int) ([]repository.PendingDispatch, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT DISTINCT m.recipient_id AS agent_id, m.team_id
		FROM messages m
		JOIN agents a ON a.id = m.recipient_id
		WHERE m.processed_at IS NULL
		  AND m.recipient_type = 'agent'
		  AND a.status = 'idle'
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []repository.PendingDispatch
	for rows.Next() {
		var p repository.PendingDispatch
		if err := rows.Scan(&p.AgentID, &p.TeamID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
