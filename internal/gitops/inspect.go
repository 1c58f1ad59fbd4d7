package gitops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openclaw/openclaw/internal/control/models"
)

// Diff returns the full diff of branch against the repository's default
// branch (three-dot: changes since the branches diverged).
func (s *Service) Diff(ctx context.Context, repo *models.Repository, branch string) (string, error) {
	res, err := s.git(ctx, repo.LocalPath, "diff", repo.DefaultBranch+"..."+branch)
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", fmt.Errorf("%w: %s", ErrGitCommandFailed, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// ChangedFiles lists the files changed on branch relative to the default
// branch, with per-file status and line counts.
func (s *Service) ChangedFiles(ctx context.Context, repo *models.Repository, branch string) ([]DiffFile, error) {
	spec := repo.DefaultBranch + "..." + branch

	numstatOut, err := s.gitOut(ctx, repo.LocalPath, "diff", "--numstat", spec)
	if err != nil {
		return nil, err
	}
	statusOut, err := s.gitOut(ctx, repo.LocalPath, "diff", "--name-status", spec)
	if err != nil {
		return nil, err
	}

	// numstat lines: "<adds>\t<dels>\t<path>"; binary files use "-".
	type lineCounts struct{ adds, dels int }
	numstat := make(map[string]lineCounts)
	for _, line := range strings.Split(numstatOut, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		var c lineCounts
		if parts[0] != "-" {
			c.adds, _ = strconv.Atoi(parts[0])
		}
		if parts[1] != "-" {
			c.dels, _ = strconv.Atoi(parts[1])
		}
		numstat[parts[2]] = c
	}

	// name-status lines: "<status>\t<path>" (renames carry both paths;
	// the last column is the current one).
	var files []DiffFile
	for _, line := range strings.Split(statusOut, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		path := parts[len(parts)-1]
		c := numstat[path]
		files = append(files, DiffFile{
			Path:      path,
			Status:    parts[0][:1],
			Additions: c.adds,
			Deletions: c.dels,
		})
	}
	return files, nil
}

// FileContent reads a file at the tip of branch without touching any
// worktree checkout.
func (s *Service) FileContent(ctx context.Context, repo *models.Repository, branch, path string) (string, error) {
	res, err := s.git(ctx, repo.LocalPath, "show", branch+":"+path)
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", fmt.Errorf("%w: file %s on branch %s", models.ErrNotFound, path, branch)
	}
	return res.Stdout, nil
}

// CommitLog returns up to limit commits that exist on branch but not on
// the default branch, newest first.
func (s *Service) CommitLog(ctx context.Context, repo *models.Repository, branch string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := s.gitOut(ctx, repo.LocalPath, "log",
		repo.DefaultBranch+".."+branch,
		fmt.Sprintf("--max-count=%d", limit),
		"--format=%H|%an|%ae|%s|%aI")
	if err != nil {
		return nil, err
	}

	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "|", 5)
		if len(parts) != 5 {
			continue
		}
		commits = append(commits, Commit{
			Hash:        parts[0],
			AuthorName:  parts[1],
			AuthorEmail: parts[2],
			Message:     parts[3],
			Date:        parts[4],
		})
	}
	return commits, nil
}
