package gitops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
)

// MergeBranch lands branch onto the repository's default branch using
// the given strategy and returns the resulting HEAD commit. A conflict
// aborts the in-progress rebase or merge before the error is returned,
// so the checkout is never left mid-operation.
func (s *Service) MergeBranch(ctx context.Context, repo *models.Repository, branch string, strategy models.MergeStrategy) (string, error) {
	lock := s.repoLock(repo.LocalPath)
	lock.Lock()
	defer lock.Unlock()

	var err error
	switch strategy {
	case models.StrategyRebase:
		err = s.mergeRebase(ctx, repo.LocalPath, branch, repo.DefaultBranch)
	case models.StrategyMerge:
		err = s.mergeRegular(ctx, repo.LocalPath, branch, repo.DefaultBranch)
	case models.StrategySquash:
		err = s.mergeSquash(ctx, repo.LocalPath, branch, repo.DefaultBranch)
	default:
		err = fmt.Errorf("%w: unknown merge strategy %q", models.ErrValidation, strategy)
	}
	if err != nil {
		return "", err
	}

	commit, err := s.gitOut(ctx, repo.LocalPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	s.logger.Info("branch merged",
		zap.String("repo", repo.Name),
		zap.String("branch", branch),
		zap.String("strategy", string(strategy)),
		zap.String("merge_commit", commit))
	return commit, nil
}

// mergeRebase rebases branch onto target and fast-forwards target,
// producing a linear history.
func (s *Service) mergeRebase(ctx context.Context, dir, branch, target string) error {
	if err := s.step(ctx, dir, "checkout "+branch, "checkout", branch); err != nil {
		return err
	}
	if err := s.step(ctx, dir, "rebase onto "+target, "rebase", target); err != nil {
		s.abort(ctx, dir, "rebase", "--abort")
		return err
	}
	if err := s.step(ctx, dir, "checkout "+target, "checkout", target); err != nil {
		return err
	}
	return s.step(ctx, dir, "fast-forward merge", "merge", "--ff-only", branch)
}

// mergeRegular merges branch into target with a merge commit.
func (s *Service) mergeRegular(ctx context.Context, dir, branch, target string) error {
	if err := s.step(ctx, dir, "checkout "+target, "checkout", target); err != nil {
		return err
	}
	msg := fmt.Sprintf("Merge branch '%s' into %s", branch, target)
	if err := s.step(ctx, dir, "merge", "merge", "--no-ff", "-m", msg, branch); err != nil {
		s.abort(ctx, dir, "merge", "--abort")
		return err
	}
	return nil
}

// mergeSquash collapses all branch commits into a single commit on
// target.
func (s *Service) mergeSquash(ctx context.Context, dir, branch, target string) error {
	if err := s.step(ctx, dir, "checkout "+target, "checkout", target); err != nil {
		return err
	}
	if err := s.step(ctx, dir, "squash merge", "merge", "--squash", branch); err != nil {
		s.abort(ctx, dir, "merge", "--abort")
		return err
	}
	return s.step(ctx, dir, "squash commit", "commit", "-m", "Squash merge: "+branch)
}
