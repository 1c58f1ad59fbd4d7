package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/events"
)

// SendMessage persists an actor-to-actor message and notifies the
// dispatcher when the recipient is an agent.
func (s *Service) SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.Content == "" {
		return nil, fmt.Errorf("%w: message content is required", models.ErrValidation)
	}
	if msg.RecipientID == "" {
		return nil, fmt.Errorf("%w: recipient_id is required", models.ErrValidation)
	}
	if msg.RecipientType == "" {
		msg.RecipientType = models.ActorAgent
	}
	if msg.RecipientType == models.ActorAgent {
		if _, err := s.repo.GetAgent(ctx, msg.RecipientID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Debug("message sent",
		zap.String("message_id", msg.ID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("recipient_type", string(msg.RecipientType)))

	data := map[string]interface{}{
		"message_id":     msg.ID,
		"recipient_id":   msg.RecipientID,
		"recipient_type": string(msg.RecipientType),
		"team_id":        msg.TeamID,
	}
	if msg.TaskID != nil {
		data["task_id"] = *msg.TaskID
	}
	s.publishNotify(ctx, events.SubjectNewMessage, "message.created", data)
	return msg, nil
}

// Inbox returns an agent's messages newest-first and stamps seen_at on
// first read. Seen is informational only; processing is explicit.
func (s *Service) Inbox(ctx context.Context, agentID string, unprocessedOnly bool, limit int) ([]*models.Message, error) {
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListInbox(ctx, agentID, unprocessedOnly, limit)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		if msg.SeenAt == nil {
			if err := s.repo.MarkMessageSeen(ctx, msg.ID); err != nil {
				s.logger.Warn("failed to mark message seen",
					zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}
	return msgs, nil
}

// MarkMessageProcessed stamps a message as handled so the dispatcher
// stops counting it as pending work.
func (s *Service) MarkMessageProcessed(ctx context.Context, messageID string) error {
	return s.repo.MarkMessageProcessed(ctx, messageID)
}
