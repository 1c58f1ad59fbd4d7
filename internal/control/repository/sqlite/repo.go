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

// CreateRepo registers a repository for a team.
func (s *store) CreateRepo(ctx context.Context, repo *models.Repository) error {
	if repo.ID == "" {
		repo.ID = uuid.New().String()
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	repo.CreatedAt = time.Now().UTC()

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO repos (id, team_id, name, local_path, default_branch, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), repo.ID, repo.TeamID, repo.Name, repo.LocalPath, repo.DefaultBranch,
		encodeJSON(repo.Config, "{}"), repo.CreatedAt)
	return err
}

// GetRepo retrieves a repository by ID.
func (s *store) GetRepo(ctx context.Context, id string) (*models.Repository, error) {
	repo := &models.Repository{}
	var config string
	err := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT id, team_id, name, local_path, default_branch, config, created_at
		FROM repos WHERE id = ?
	`), id).Scan(&repo.ID, &repo.TeamID, &repo.Name, &repo.LocalPath,
		&repo.DefaultBranch, &config, &repo.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: repository %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	decodeJSON(config, &repo.Config)
	return repo, nil
}

// ListRepos returns the repositories registered for a team.
func (s *store) ListRepos(ctx context.Context, teamID string) ([]*models.Repository, error) {
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT id, team_id, name, local_path, default_branch, config, created_at
		FROM repos WHERE team_id = ? ORDER BY name
	`), teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []*models.Repository
	for rows.Next() {
		repo := &models.Repository{}
		var config string
		if err := rows.Scan(&repo.ID, &repo.TeamID, &repo.Name, &repo.LocalPath,
			&repo.DefaultBranch, &config, &repo.CreatedAt); err != nil {
			return nil, err
		}
		decodeJSON(config, &repo.Config)
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}
