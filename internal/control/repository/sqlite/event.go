package sqlite

import (
	"context"
	"time"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/db/dialect"
)

// AppendEvent writes one record to the stream and fills in its
// sequence ID. Callers append in the same transaction as the state
// change the event describes.
func (s *store) AppendEvent(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	id, err := dialect.InsertReturningID(ctx, s.w, `
		INSERT INTO events (stream_id, type, data, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.StreamID, event.Type,
		encodeJSON(event.Data, "{}"), encodeJSON(event.Metadata, "{}"),
		event.CreatedAt)
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// ListEvents returns a stream's records in append order, starting
// after the given sequence ID.
func (s *store) ListEvents(ctx context.Context, streamID string, afterID int64, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT id, stream_id, type, data, metadata, created_at
		FROM events
		WHERE stream_id = ? AND id > ?
		ORDER BY id ASC LIMIT ?
	`), streamID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		var data, metadata string
		if err := rows.Scan(&event.ID, &event.StreamID, &event.Type, &data, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		decodeJSON(data, &event.Data)
		decodeJSON(metadata, &event.Metadata)
		events = append(events, event)
	}
	return events, rows.Err()
}

// StreamExists reports whether any event has been written to the
// stream. Webhook intake uses it for delivery deduplication.
func (s *store) StreamExists(ctx context.Context, streamID string) (bool, error) {
	var count int
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT COUNT(1) FROM events WHERE stream_id = ?
	`), streamID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
