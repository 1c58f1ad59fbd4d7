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

// CreateOrg inserts a new organization.
func (s *store) CreateOrg(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.CreatedAt = time.Now().UTC()

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO orgs (id, name, slug, created_at)
		VALUES (?, ?, ?, ?)
	`), org.ID, org.Name, org.Slug, org.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: org slug %q", models.ErrDuplicateKey, org.Slug)
	}
	return err
}

// GetOrg retrieves an organization by ID.
func (s *store) GetOrg(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT id, name, slug, created_at FROM orgs WHERE id = ?
	`), id).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: org %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

// CreateTeam inserts a new team.
func (s *store) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	team.CreatedAt = time.Now().UTC()

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO teams (id, org_id, name, slug, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), team.ID, team.OrgID, team.Name, team.Slug, encodeJSON(team.Config, "{}"), team.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: team slug %q", models.ErrDuplicateKey, team.Slug)
	}
	return err
}

// GetTeam retrieves a team by ID.
func (s *store) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team := &models.Team{}
	var config string
	err := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT id, org_id, name, slug, config, created_at FROM teams WHERE id = ?
	`), id).Scan(&team.ID, &team.OrgID, &team.Name, &team.Slug, &config, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: team %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	decodeJSON(config, &team.Config)
	return team, nil
}

// UpdateTeamConfig replaces a team's config bag.
func (s *store) UpdateTeamConfig(ctx context.Context, teamID string, config map[string]interface{}) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE teams SET config = ? WHERE id = ?
	`), encodeJSON(config, "{}"), teamID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: team %s", models.ErrNotFound, teamID)
	}
	return nil
}
