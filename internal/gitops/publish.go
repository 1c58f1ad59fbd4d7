package gitops

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/subprocess"
)

// prCreateTimeout bounds `gh pr create`, which talks to the code host.
const prCreateTimeout = 30 * time.Second

// maxPRBodyDescription caps how much of the task description ends up in
// the pull request body.
const maxPRBodyDescription = 1000

// Push uploads branch to origin. force uses --force-with-lease so a
// stale local branch cannot clobber remote work.
func (s *Service) Push(ctx context.Context, repo *models.Repository, branch string, force bool) error {
	args := []string{"push", "origin", branch}
	if force {
		args = []string{"push", "--force-with-lease", "origin", branch}
	}
	if _, err := s.gitOut(ctx, repo.LocalPath, args...); err != nil {
		return err
	}
	s.logger.Info("branch pushed",
		zap.String("repo", repo.Name),
		zap.String("branch", branch),
		zap.Bool("force", force))
	return nil
}

// GHAvailable reports whether the gh CLI is installed.
func GHAvailable() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

// CreatePullRequest opens a pull request for the task branch via the gh
// CLI, which reuses whatever GitHub auth the operator already has. The
// PR URL is parsed from gh's stdout.
func (s *Service) CreatePullRequest(ctx context.Context, repo *models.Repository, task *models.Task) (*service.PullRequest, error) {
	if task.Branch == "" {
		return nil, fmt.Errorf("%w: task %d has no branch", models.ErrValidation, task.ID)
	}
	if !GHAvailable() {
		return nil, errors.New("gh CLI not found, install from https://cli.github.com")
	}

	body := fmt.Sprintf("OpenClaw Task #%d\n\n%s", task.ID, truncate(task.Description, maxPRBodyDescription))
	args := []string{
		"pr", "create",
		"--title", task.Title,
		"--body", body,
		"--base", repo.DefaultBranch,
		"--head", task.Branch,
	}

	res, err := subprocess.Run(ctx, "gh", args, subprocess.Options{Dir: repo.LocalPath, Timeout: prCreateTimeout})
	if err != nil {
		return nil, fmt.Errorf("gh pr create: %w", err)
	}

	url := strings.TrimSpace(res.Stdout)
	if !res.Ok() || url == "" {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("gh pr create failed (exit code %d)", res.ExitCode)
		}
		return nil, errors.New(msg)
	}

	pr := &service.PullRequest{URL: url, Number: parsePRNumber(url)}
	s.logger.Info("pull request created",
		zap.Int64("task_id", task.ID),
		zap.String("pr_url", pr.URL),
		zap.Int("pr_number", pr.Number))
	return pr, nil
}

// parsePRNumber extracts the PR number from a GitHub PR URL, e.g.
// https://github.com/org/repo/pull/42 -> 42. Returns 0 when the URL
// does not end in a number.
func parsePRNumber(url string) int {
	trimmed := strings.TrimRight(url, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
