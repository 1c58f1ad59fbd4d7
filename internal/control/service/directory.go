package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
)

// CreateOrg registers a new organization.
func (s *Service) CreateOrg(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	if org.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if org.Slug == "" {
		return nil, fmt.Errorf("%w: slug is required", models.ErrValidation)
	}
	if err := s.repo.CreateOrg(ctx, org); err != nil {
		return nil, err
	}
	s.logger.Info("organization created",
		zap.String("org_id", org.ID), zap.String("slug", org.Slug))
	return org, nil
}

// GetOrg retrieves an organization by id.
func (s *Service) GetOrg(ctx context.Context, id string) (*models.Organization, error) {
	return s.repo.GetOrg(ctx, id)
}

// CreateTeam registers a team under an organization.
func (s *Service) CreateTeam(ctx context.Context, team *models.Team) (*models.Team, error) {
	if team.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if _, err := s.repo.GetOrg(ctx, team.OrgID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created",
		zap.String("team_id", team.ID),
		zap.String("org_id", team.OrgID),
		zap.String("name", team.Name))
	return team, nil
}

// GetTeam retrieves a team by id.
func (s *Service) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// AddConvention appends a coding standard to a team's convention list.
// Keys are unique per team; a duplicate fails with ErrDuplicateKey.
func (s *Service) AddConvention(ctx context.Context, teamID, key, content string) (*models.Team, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", models.ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", models.ErrValidation)
	}

	var team *models.Team
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		team, err = store.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}

		if team.Config == nil {
			team.Config = make(map[string]interface{})
		}
		existing, _ := team.Config["conventions"].([]interface{})
		for _, item := range existing {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if k, _ := m["key"].(string); k == key {
				return fmt.Errorf("%w: convention %q already exists", models.ErrDuplicateKey, key)
			}
		}
		team.Config["conventions"] = append(existing, map[string]interface{}{
			"key":     key,
			"content": content,
			"active":  true,
		})
		return store.UpdateTeamConfig(ctx, teamID, team.Config)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("convention added",
		zap.String("team_id", teamID), zap.String("key", key))
	return team, nil
}

// Conventions returns a team's active conventions in insertion order.
func (s *Service) Conventions(ctx context.Context, teamID string) ([]models.Convention, error) {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return team.Conventions(), nil
}

// CreateAgent registers an agent on a team. Role defaults to engineer
// and model to the platform default.
func (s *Service) CreateAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	if agent.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if agent.Role == "" {
		agent.Role = models.RoleEngineer
	}
	switch agent.Role {
	case models.RoleManager, models.RoleEngineer, models.RoleReviewer:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, agent.Role)
	}
	if agent.Model == "" {
		agent.Model = models.DefaultModel
	}
	if _, err := s.repo.GetTeam(ctx, agent.TeamID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	s.logger.Info("agent created",
		zap.String("agent_id", agent.ID),
		zap.String("team_id", agent.TeamID),
		zap.String("name", agent.Name),
		zap.String("role", string(agent.Role)))
	return agent, nil
}

// GetAgent retrieves an agent by id.
func (s *Service) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return s.repo.GetAgent(ctx, id)
}

// ListAgents returns a team's agents ordered by name.
func (s *Service) ListAgents(ctx context.Context, teamID string) ([]*models.Agent, error) {
	return s.repo.ListAgents(ctx, teamID)
}

// CreateRepo registers a git checkout for a team.
func (s *Service) CreateRepo(ctx context.Context, repo *models.Repository) (*models.Repository, error) {
	if repo.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if repo.LocalPath == "" {
		return nil, fmt.Errorf("%w: local_path is required", models.ErrValidation)
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	if _, err := s.repo.GetTeam(ctx, repo.TeamID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateRepo(ctx, repo); err != nil {
		return nil, err
	}
	s.logger.Info("repository registered",
		zap.String("repo_id", repo.ID),
		zap.String("team_id", repo.TeamID),
		zap.String("local_path", repo.LocalPath))
	return repo, nil
}

// GetRepo retrieves a repository registration by id.
func (s *Service) GetRepo(ctx context.Context, id string) (*models.Repository, error) {
	return s.repo.GetRepo(ctx, id)
}

// ListRepos returns a team's repository registrations.
func (s *Service) ListRepos(ctx context.Context, teamID string) ([]*models.Repository, error) {
	return s.repo.ListRepos(ctx, teamID)
}
