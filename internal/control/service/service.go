// Package service implements the control-plane business logic: task
// lifecycle, messaging, budgets and sessions, reviews, merges, and the
// human loop. Every state mutation appends its event-log records in the
// same transaction; bus notifications are best-effort so consumers must
// tolerate gaps (the dispatcher's poller closes them).
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/events"
	"github.com/openclaw/openclaw/internal/events/bus"
)

// PullRequest is the result of opening a pull request on the code host.
type PullRequest struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
}

// GitPublisher pushes task branches and opens pull requests. The review
// service drives it best-effort when a review is requested; nil disables
// the automation.
type GitPublisher interface {
	Push(ctx context.Context, repo *models.Repository, branch string, force bool) error
	CreatePullRequest(ctx context.Context, repo *models.Repository, task *models.Task) (*PullRequest, error)
}

// Service provides the control-plane business logic.
type Service struct {
	repo   repository.Repository
	bus    bus.EventBus
	logger *logger.Logger
	git    GitPublisher
	source string
}

// New creates a control-plane service.
func New(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    eventBus,
		logger: log,
		source: "control-plane",
	}
}

// SetGitPublisher wires branch push and PR automation into reviews.
func (s *Service) SetGitPublisher(git GitPublisher) {
	s.git = git
}

// Repository exposes the underlying store for components that compose
// their own transactions (merge worker, dispatcher).
func (s *Service) Repository() repository.Repository {
	return s.repo
}

// publishNotify sends a dispatcher notification. Failures are logged and
// swallowed; the fallback poller covers missed notifications.
func (s *Service) publishNotify(ctx context.Context, subject, eventType string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, bus.NewEvent(eventType, s.source, data)); err != nil {
		s.logger.Warn("failed to publish notification",
			zap.String("subject", subject),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// publishFeed mirrors an event onto the team's live feed. Best-effort.
func (s *Service) publishFeed(ctx context.Context, teamID, eventType string, data map[string]interface{}) {
	if s.bus == nil || teamID == "" {
		return
	}
	subject := events.BuildTeamFeedSubject(teamID)
	if err := s.bus.Publish(ctx, subject, bus.NewEvent(eventType, s.source, data)); err != nil {
		s.logger.Warn("failed to publish feed event",
			zap.String("subject", subject),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
