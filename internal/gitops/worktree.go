package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
)

// WorktreePath returns where branch's worktree lives for repo.
func WorktreePath(repo *models.Repository, branch string) string {
	return filepath.Join(repo.LocalPath, ".worktrees", branch)
}

// EnsureWorktree creates the branch (from the default branch) and a
// worktree checkout for it when they do not exist yet. The call is
// idempotent: an existing worktree is returned as-is.
func (s *Service) EnsureWorktree(ctx context.Context, repo *models.Repository, branch string) (*WorktreeInfo, error) {
	if branch == "" {
		return nil, fmt.Errorf("%w: branch is required", models.ErrValidation)
	}

	lock := s.repoLock(repo.LocalPath)
	lock.Lock()
	defer lock.Unlock()

	info := &WorktreeInfo{
		Path:     WorktreePath(repo, branch),
		Branch:   branch,
		RepoPath: repo.LocalPath,
		RepoName: repo.Name,
	}
	if _, err := os.Stat(info.Path); err == nil {
		info.Exists = true
		return info, nil
	}

	// Create the branch from the default branch. A branch that already
	// exists (earlier run, manual setup) is fine.
	res, err := s.git(ctx, repo.LocalPath, "branch", branch, repo.DefaultBranch)
	if err != nil {
		return nil, err
	}
	if !res.Ok() && !strings.Contains(res.Stderr, "already exists") {
		return nil, fmt.Errorf("%w: %s", ErrGitCommandFailed, strings.TrimSpace(res.Stderr))
	}

	if _, err := s.gitOut(ctx, repo.LocalPath, "worktree", "add", info.Path, branch); err != nil {
		return nil, err
	}
	info.Exists = true

	s.logger.Info("worktree created",
		zap.String("repo", repo.Name),
		zap.String("branch", branch),
		zap.String("path", info.Path))
	return info, nil
}

// RemoveWorktree deletes the branch's worktree checkout. It reports
// whether a worktree was actually removed.
func (s *Service) RemoveWorktree(ctx context.Context, repo *models.Repository, branch string) (bool, error) {
	lock := s.repoLock(repo.LocalPath)
	lock.Lock()
	defer lock.Unlock()

	path := WorktreePath(repo, branch)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	if _, err := s.gitOut(ctx, repo.LocalPath, "worktree", "remove", path, "--force"); err != nil {
		return false, err
	}

	s.logger.Info("worktree removed",
		zap.String("repo", repo.Name),
		zap.String("branch", branch))
	return true, nil
}

// PruneWorktrees drops stale worktree registrations (directories removed
// behind git's back).
func (s *Service) PruneWorktrees(ctx context.Context, repo *models.Repository) error {
	_, err := s.gitOut(ctx, repo.LocalPath, "worktree", "prune")
	return err
}
