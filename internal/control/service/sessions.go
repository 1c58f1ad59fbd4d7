package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/events"
)

// CostReport is a team cost summary over a period.
type CostReport struct {
	TeamID     string `json:"team_id"`
	PeriodDays int    `json:"period_days"`
	repository.CostSummary
}

// utcMidnight returns the start of the current UTC day, the boundary of
// the daily budget window.
func utcMidnight(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

// CheckBudget reports an agent's spend against its limits, including the
// per-task limit when a task is given.
func (s *Service) CheckBudget(ctx context.Context, agentID string, taskID *int64) (*models.BudgetStatus, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return s.checkBudget(ctx, agent, taskID)
}

func (s *Service) checkBudget(ctx context.Context, agent *models.Agent, taskID *int64) (*models.BudgetStatus, error) {
	limits := models.BudgetLimitsFor(agent)

	dailySpent, err := s.repo.AgentSpendSince(ctx, agent.ID, utcMidnight(time.Now()))
	if err != nil {
		return nil, err
	}

	status := &models.BudgetStatus{
		WithinBudget:  true,
		DailySpentUSD: dailySpent,
		DailyLimitUSD: limits.DailyCostLimitUSD,
		TaskLimitUSD:  limits.TaskCostLimitUSD,
	}
	if dailySpent >= limits.DailyCostLimitUSD {
		status.WithinBudget = false
		status.Violations = append(status.Violations,
			fmt.Sprintf("Daily limit exceeded: $%.4f / $%.2f", dailySpent, limits.DailyCostLimitUSD))
	}

	if taskID != nil {
		taskSpent, err := s.repo.TaskSpend(ctx, *taskID)
		if err != nil {
			return nil, err
		}
		status.TaskSpentUSD = taskSpent
		if taskSpent >= limits.TaskCostLimitUSD {
			status.WithinBudget = false
			status.Violations = append(status.Violations,
				fmt.Sprintf("Task limit exceeded: $%.4f / $%.2f", taskSpent, limits.TaskCostLimitUSD))
		}
	}
	return status, nil
}

// StartSession opens a usage-tracking session for an agent turn. The
// budget gate runs first: a violation appends agent.budget_exceeded and
// fails with ErrBudgetExceeded before any session exists. On success the
// agent flips to working and session.started is appended.
func (s *Service) StartSession(ctx context.Context, agentID string, taskID *int64, modelOverride string) (*models.Session, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	budget, err := s.checkBudget(ctx, agent, taskID)
	if err != nil {
		return nil, err
	}
	if !budget.WithinBudget {
		data := map[string]interface{}{
			"agent_id":   agent.ID,
			"violations": budget.Violations,
		}
		if taskID != nil {
			data["task_id"] = *taskID
		}
		appendErr := s.repo.AppendEvent(ctx, &models.Event{
			StreamID: events.AgentStream(agent.ID),
			Type:     events.AgentBudgetExceeded,
			Data:     data,
		})
		if appendErr != nil {
			s.logger.Warn("failed to record budget violation",
				zap.String("agent_id", agent.ID), zap.Error(appendErr))
		}
		return nil, fmt.Errorf("%w: %s", models.ErrBudgetExceeded, strings.Join(budget.Violations, "; "))
	}

	model := modelOverride
	if model == "" {
		model = agent.Model
	}

	session := &models.Session{
		AgentID: agent.ID,
		TaskID:  taskID,
		Model:   model,
	}
	err = s.repo.WithTx(ctx, func(store repository.Store) error {
		if err := store.CreateSession(ctx, session); err != nil {
			return err
		}
		if err := store.UpdateAgentStatus(ctx, agent.ID, models.AgentStatusWorking); err != nil {
			return err
		}
		data := map[string]interface{}{
			"session_id": session.ID,
			"model":      model,
		}
		if taskID != nil {
			data["task_id"] = *taskID
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.AgentStream(agent.ID),
			Type:     events.SessionStarted,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("agent_id", agent.ID),
		zap.String("model", model))
	return session, nil
}

// RecordUsage adds token deltas to a session and recomputes its cost
// from the running totals.
func (s *Service) RecordUsage(ctx context.Context, sessionID string, tokensIn, tokensOut, cacheRead, cacheWrite int64) (*models.Session, error) {
	var session *models.Session
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		session, err = store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		session.TokensIn += tokensIn
		session.TokensOut += tokensOut
		session.CacheRead += cacheRead
		session.CacheWrite += cacheWrite
		session.CostUSD = models.Cost(session.Model,
			session.TokensIn, session.TokensOut, session.CacheRead, session.CacheWrite)

		if err := store.UpdateSession(ctx, session); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.AgentStream(session.AgentID),
			Type:     events.SessionUsageRecorded,
			Data: map[string]interface{}{
				"session_id":     session.ID,
				"tokens_in":      tokensIn,
				"tokens_out":     tokensOut,
				"cache_read":     cacheRead,
				"cache_write":    cacheWrite,
				"total_cost_usd": session.CostUSD,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession closes a session and returns its agent to idle. Ending an
// already-ended session is a no-op apart from the idle flip.
func (s *Service) EndSession(ctx context.Context, sessionID string, errMsg *string) (*models.Session, error) {
	var session *models.Session
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		session, err = store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		if session.EndedAt == nil {
			now := time.Now().UTC()
			session.EndedAt = &now
			if errMsg != nil && *errMsg != "" {
				session.Error = errMsg
			}
			if err := store.UpdateSession(ctx, session); err != nil {
				return err
			}
			data := map[string]interface{}{
				"session_id": session.ID,
				"cost_usd":   session.CostUSD,
			}
			if session.Error != nil {
				data["error"] = *session.Error
			}
			if err := store.AppendEvent(ctx, &models.Event{
				StreamID: events.AgentStream(session.AgentID),
				Type:     events.SessionEnded,
				Data:     data,
			}); err != nil {
				return err
			}
		}
		return store.UpdateAgentStatus(ctx, session.AgentID, models.AgentStatusIdle)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session ended",
		zap.String("session_id", session.ID),
		zap.String("agent_id", session.AgentID),
		zap.Float64("cost_usd", session.CostUSD))
	return session, nil
}

// GetSession retrieves a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// TeamCosts summarises a team's session spend over the given number of
// days (default 7).
func (s *Service) TeamCosts(ctx context.Context, teamID string, days int) (*CostReport, error) {
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	summary, err := s.repo.CostSummary(ctx, teamID, since)
	if err != nil {
		return nil, err
	}
	return &CostReport{
		TeamID:      teamID,
		PeriodDays:  days,
		CostSummary: *summary,
	}, nil
}
