package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/events"
)

// HumanRequestDraft carries the caller-supplied fields of a new human
// request. TimeoutMinutes of zero means the request never expires.
type HumanRequestDraft struct {
	TeamID         string             `json:"team_id"`
	AgentID        string             `json:"agent_id"`
	TaskID         *int64             `json:"task_id,omitempty"`
	Kind           models.RequestKind `json:"kind"`
	Question       string             `json:"question"`
	Options        []string           `json:"options,omitempty"`
	TimeoutMinutes int                `json:"timeout_minutes,omitempty"`
}

// CreateHumanRequest parks an agent question for a human to answer.
func (s *Service) CreateHumanRequest(ctx context.Context, draft HumanRequestDraft) (*models.HumanRequest, error) {
	if draft.Question == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrValidation)
	}
	if draft.Kind == "" {
		draft.Kind = models.RequestKindQuestion
	}
	switch draft.Kind {
	case models.RequestKindQuestion, models.RequestKindApproval, models.RequestKindReview:
	default:
		return nil, fmt.Errorf("%w: unknown request kind %q", models.ErrValidation, draft.Kind)
	}

	agent, err := s.repo.GetAgent(ctx, draft.AgentID)
	if err != nil {
		return nil, err
	}

	req := &models.HumanRequest{
		TeamID:   draft.TeamID,
		AgentID:  agent.ID,
		TaskID:   draft.TaskID,
		Kind:     draft.Kind,
		Question: draft.Question,
		Options:  draft.Options,
		Status:   models.RequestStatusPending,
	}
	if req.TeamID == "" {
		req.TeamID = agent.TeamID
	}
	if draft.TimeoutMinutes > 0 {
		timeoutAt := time.Now().UTC().Add(time.Duration(draft.TimeoutMinutes) * time.Minute)
		req.TimeoutAt = &timeoutAt
	}

	err = s.repo.WithTx(ctx, func(store repository.Store) error {
		if err := store.CreateHumanRequest(ctx, req); err != nil {
			return err
		}
		data := map[string]interface{}{
			"request_id": req.ID,
			"kind":       string(req.Kind),
			"question":   req.Question,
		}
		if req.TaskID != nil {
			data["task_id"] = *req.TaskID
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.AgentStream(req.AgentID),
			Type:     events.HumanRequestCreated,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("human request created",
		zap.String("request_id", req.ID),
		zap.String("agent_id", req.AgentID),
		zap.String("kind", string(req.Kind)))
	s.publishFeed(ctx, req.TeamID, events.HumanRequestCreated, map[string]interface{}{
		"request_id": req.ID,
		"agent_id":   req.AgentID,
		"team_id":    req.TeamID,
		"kind":       string(req.Kind),
		"question":   req.Question,
	})
	return req, nil
}

// RespondToRequest resolves a pending human request with an answer.
// Requests that already left pending fail with ErrAlreadyResolved.
func (s *Service) RespondToRequest(ctx context.Context, id, response, respondedBy string) (*models.HumanRequest, error) {
	if response == "" {
		return nil, fmt.Errorf("%w: response is required", models.ErrValidation)
	}

	var req *models.HumanRequest
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		req, err = store.GetHumanRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != models.RequestStatusPending {
			return fmt.Errorf("%w: request %s is %s", models.ErrAlreadyResolved, id, req.Status)
		}

		now := time.Now().UTC()
		req.Status = models.RequestStatusResolved
		req.Response = &response
		req.ResolvedAt = &now
		if respondedBy != "" {
			req.RespondedBy = &respondedBy
		}
		if err := store.UpdateHumanRequest(ctx, req); err != nil {
			return err
		}
		data := map[string]interface{}{
			"request_id": req.ID,
			"response":   response,
		}
		if req.RespondedBy != nil {
			data["responded_by"] = *req.RespondedBy
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.AgentStream(req.AgentID),
			Type:     events.HumanRequestResolved,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("human request resolved",
		zap.String("request_id", req.ID),
		zap.String("agent_id", req.AgentID))
	notify := map[string]interface{}{
		"request_id": req.ID,
		"agent_id":   req.AgentID,
		"team_id":    req.TeamID,
		"status":     string(req.Status),
	}
	s.publishNotify(ctx, events.SubjectHumanRequestResolved, events.HumanRequestResolved, notify)
	s.publishFeed(ctx, req.TeamID, events.HumanRequestResolved, notify)
	return req, nil
}

// GetHumanRequest retrieves a human request by id.
func (s *Service) GetHumanRequest(ctx context.Context, id string) (*models.HumanRequest, error) {
	return s.repo.GetHumanRequest(ctx, id)
}

// ListHumanRequests returns a team's requests, pending-only unless all
// is set.
func (s *Service) ListHumanRequests(ctx context.Context, teamID string, all bool) ([]*models.HumanRequest, error) {
	filter := repository.RequestFilter{}
	if !all {
		filter.Status = models.RequestStatusPending
	}
	return s.repo.ListHumanRequests(ctx, teamID, filter)
}

// ExpireStaleRequests flips pending requests past their timeout to
// expired and returns how many were flipped. The reconciler calls this
// periodically.
func (s *Service) ExpireStaleRequests(ctx context.Context) (int, error) {
	stale, err := s.repo.ListExpiredPendingRequests(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range stale {
		req := req
		err := s.repo.WithTx(ctx, func(store repository.Store) error {
			now := time.Now().UTC()
			req.Status = models.RequestStatusExpired
			req.ResolvedAt = &now
			if err := store.UpdateHumanRequest(ctx, req); err != nil {
				return err
			}
			return store.AppendEvent(ctx, &models.Event{
				StreamID: events.AgentStream(req.AgentID),
				Type:     events.HumanRequestExpired,
				Data: map[string]interface{}{
					"request_id": req.ID,
					"timeout_at": req.TimeoutAt,
				},
			})
		})
		if err != nil {
			s.logger.Warn("failed to expire human request",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		expired++
		s.publishFeed(ctx, req.TeamID, events.HumanRequestExpired, map[string]interface{}{
			"request_id": req.ID,
			"agent_id":   req.AgentID,
			"team_id":    req.TeamID,
		})
	}
	if expired > 0 {
		s.logger.Info("expired stale human requests", zap.Int("count", expired))
	}
	return expired, nil
}
