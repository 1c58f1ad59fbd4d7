package gitops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/subprocess"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewService(log, 30*time.Second)
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	res, err := subprocess.Run(context.Background(), "git", args, subprocess.Options{Dir: dir, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	if !res.Ok() {
		t.Fatalf("git %v: %s", args, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout)
}

func writeRepoFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func initTestRepo(t *testing.T) *models.Repository {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "config", "user.email", "dev@example.com")
	gitCmd(t, dir, "config", "user.name", "Dev")
	writeRepoFile(t, dir, "README.md", "# demo\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial commit")
	gitCmd(t, dir, "branch", "-M", "main")
	return &models.Repository{
		ID:            "repo-1",
		TeamID:        "team-1",
		Name:          "demo",
		LocalPath:     dir,
		DefaultBranch: "main",
	}
}

// commitOnBranch ensures a worktree for branch, writes path in it and
// commits. Returns the worktree path.
func commitOnBranch(t *testing.T, svc *Service, repo *models.Repository, branch, path, content, msg string) string {
	t.Helper()
	wt, err := svc.EnsureWorktree(context.Background(), repo, branch)
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	writeRepoFile(t, wt.Path, path, content)
	gitCmd(t, wt.Path, "add", ".")
	gitCmd(t, wt.Path, "commit", "-m", msg)
	return wt.Path
}

func TestEnsureWorktreeIdempotent(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()

	wt, err := svc.EnsureWorktree(ctx, repo, "openclaw/task-1-demo")
	if err != nil {
		t.Fatalf("EnsureWorktree failed: %v", err)
	}
	if !wt.Exists {
		t.Error("expected worktree to exist after creation")
	}
	if wt.Path != filepath.Join(repo.LocalPath, ".worktrees", "openclaw/task-1-demo") {
		t.Errorf("unexpected worktree path: %s", wt.Path)
	}
	if _, err := os.Stat(filepath.Join(wt.Path, "README.md")); err != nil {
		t.Errorf("worktree missing checked-out files: %v", err)
	}

	again, err := svc.EnsureWorktree(ctx, repo, "openclaw/task-1-demo")
	if err != nil {
		t.Fatalf("second EnsureWorktree failed: %v", err)
	}
	if again.Path != wt.Path || !again.Exists {
		t.Errorf("second call should return the same worktree: %+v", again)
	}

	if _, err := svc.EnsureWorktree(ctx, repo, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty branch should be a validation error, got %v", err)
	}
}

func TestRemoveWorktree(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()

	wt, err := svc.EnsureWorktree(ctx, repo, "openclaw/task-2-cleanup")
	if err != nil {
		t.Fatalf("EnsureWorktree failed: %v", err)
	}

	removed, err := svc.RemoveWorktree(ctx, repo, "openclaw/task-2-cleanup")
	if err != nil {
		t.Fatalf("RemoveWorktree failed: %v", err)
	}
	if !removed {
		t.Error("expected removal to be reported")
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Errorf("worktree directory still present: %v", err)
	}

	removed, err = svc.RemoveWorktree(ctx, repo, "openclaw/task-2-cleanup")
	if err != nil {
		t.Fatalf("second RemoveWorktree failed: %v", err)
	}
	if removed {
		t.Error("removing a missing worktree should report false")
	}

	if err := svc.PruneWorktrees(ctx, repo); err != nil {
		t.Errorf("PruneWorktrees failed: %v", err)
	}
}

func TestDiffAndChangedFiles(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-3-feature"

	commitOnBranch(t, svc, repo, branch, "internal/auth/session.go", "package auth\n", "add session package")
	commitOnBranch(t, svc, repo, branch, "README.md", "# demo\n\nupdated\n", "update readme")

	diff, err := svc.Diff(ctx, repo, branch)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if !strings.Contains(diff, "+updated") {
		t.Errorf("diff missing added line:\n%s", diff)
	}
	if !strings.Contains(diff, "internal/auth/session.go") {
		t.Errorf("diff missing new file:\n%s", diff)
	}

	files, err := svc.ChangedFiles(ctx, repo, branch)
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 changed files, got %d: %+v", len(files), files)
	}
	byPath := make(map[string]DiffFile)
	for _, f := range files {
		byPath[f.Path] = f
	}
	if f := byPath["internal/auth/session.go"]; f.Status != "A" || f.Additions != 1 {
		t.Errorf("unexpected entry for new file: %+v", f)
	}
	if f := byPath["README.md"]; f.Status != "M" || f.Additions == 0 {
		t.Errorf("unexpected entry for modified file: %+v", f)
	}
}

func TestFileContentAtBranch(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-4-read"

	commitOnBranch(t, svc, repo, branch, "config.yaml", "port: 8080\n", "add config")

	content, err := svc.FileContent(ctx, repo, branch, "config.yaml")
	if err != nil {
		t.Fatalf("FileContent failed: %v", err)
	}
	if content != "port: 8080\n" {
		t.Errorf("unexpected content: %q", content)
	}

	// The default branch must not see the branch-only file.
	if _, err := svc.FileContent(ctx, repo, repo.DefaultBranch, "config.yaml"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on default branch, got %v", err)
	}
	if _, err := svc.FileContent(ctx, repo, branch, "missing.txt"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing file, got %v", err)
	}
}

func TestCommitLog(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-5-log"

	commitOnBranch(t, svc, repo, branch, "a.txt", "a\n", "first change")
	commitOnBranch(t, svc, repo, branch, "b.txt", "b\n", "second change")

	commits, err := svc.CommitLog(ctx, repo, branch, 10)
	if err != nil {
		t.Fatalf("CommitLog failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Message != "second change" || commits[1].Message != "first change" {
		t.Errorf("commits not newest-first: %+v", commits)
	}
	for _, c := range commits {
		if len(c.Hash) != 40 {
			t.Errorf("expected full sha, got %q", c.Hash)
		}
		if c.AuthorName != "Dev" || c.AuthorEmail != "dev@example.com" {
			t.Errorf("unexpected author: %+v", c)
		}
		if c.Date == "" {
			t.Error("missing commit date")
		}
	}

	// Limit applies.
	commits, err = svc.CommitLog(ctx, repo, branch, 1)
	if err != nil {
		t.Fatalf("CommitLog with limit failed: %v", err)
	}
	if len(commits) != 1 {
		t.Errorf("expected 1 commit with limit, got %d", len(commits))
	}
}

func TestMergeBranchSquash(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-6-squash"

	commitOnBranch(t, svc, repo, branch, "feature.go", "package main\n", "add feature")
	commitOnBranch(t, svc, repo, branch, "feature.go", "package main\n\nvar ok = true\n", "extend feature")

	commit, err := svc.MergeBranch(ctx, repo, branch, models.StrategySquash)
	if err != nil {
		t.Fatalf("MergeBranch failed: %v", err)
	}
	if len(commit) != 40 {
		t.Errorf("expected full merge commit sha, got %q", commit)
	}
	if msg := gitCmd(t, repo.LocalPath, "log", "-1", "--format=%s", "main"); msg != "Squash merge: "+branch {
		t.Errorf("unexpected squash commit message: %q", msg)
	}
	if _, err := os.Stat(filepath.Join(repo.LocalPath, "feature.go")); err != nil {
		t.Errorf("merged file missing on main: %v", err)
	}
}

func TestMergeBranchRegular(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-7-merge"

	commitOnBranch(t, svc, repo, branch, "feature.go", "package main\n", "add feature")

	commit, err := svc.MergeBranch(ctx, repo, branch, models.StrategyMerge)
	if err != nil {
		t.Fatalf("MergeBranch failed: %v", err)
	}
	if len(commit) != 40 {
		t.Errorf("expected full merge commit sha, got %q", commit)
	}
	if msg := gitCmd(t, repo.LocalPath, "log", "-1", "--format=%s", "main"); !strings.Contains(msg, "Merge branch") {
		t.Errorf("expected a merge commit, got %q", msg)
	}
}

func TestMergeBranchRebase(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-8-rebase"

	commitOnBranch(t, svc, repo, branch, "feature.go", "package main\n", "add feature")

	// Rebase checks the branch out in the primary checkout, so the
	// worktree has to go first.
	if _, err := svc.RemoveWorktree(ctx, repo, branch); err != nil {
		t.Fatalf("RemoveWorktree failed: %v", err)
	}

	commit, err := svc.MergeBranch(ctx, repo, branch, models.StrategyRebase)
	if err != nil {
		t.Fatalf("MergeBranch failed: %v", err)
	}
	if msg := gitCmd(t, repo.LocalPath, "log", "-1", "--format=%s", "main"); msg != "add feature" {
		t.Errorf("expected linear history with branch commit on top, got %q", msg)
	}
	if head := gitCmd(t, repo.LocalPath, "rev-parse", "HEAD"); head != commit {
		t.Errorf("returned commit %s does not match HEAD %s", commit, head)
	}
}

func TestMergeConflictAborts(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-9-conflict"

	commitOnBranch(t, svc, repo, branch, "README.md", "# demo\n\nbranch version\n", "branch edit")

	// Conflicting edit on main.
	writeRepoFile(t, repo.LocalPath, "README.md", "# demo\n\nmain version\n")
	gitCmd(t, repo.LocalPath, "add", ".")
	gitCmd(t, repo.LocalPath, "commit", "-m", "main edit")

	_, err := svc.MergeBranch(ctx, repo, branch, models.StrategyMerge)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "merge") {
		t.Errorf("error should name the failing step: %v", err)
	}
	// The abort must leave the primary checkout clean.
	if status := gitCmd(t, repo.LocalPath, "status", "--porcelain"); status != "" {
		t.Errorf("checkout left dirty after abort:\n%s", status)
	}
}

func TestRebaseConflictAborts(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-10-rebase-conflict"

	commitOnBranch(t, svc, repo, branch, "README.md", "# demo\n\nbranch version\n", "branch edit")
	if _, err := svc.RemoveWorktree(ctx, repo, branch); err != nil {
		t.Fatalf("RemoveWorktree failed: %v", err)
	}

	writeRepoFile(t, repo.LocalPath, "README.md", "# demo\n\nmain version\n")
	gitCmd(t, repo.LocalPath, "add", ".")
	gitCmd(t, repo.LocalPath, "commit", "-m", "main edit")

	_, err := svc.MergeBranch(ctx, repo, branch, models.StrategyRebase)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "rebase onto main") {
		t.Errorf("error should name the rebase step: %v", err)
	}
	for _, marker := range []string{"rebase-merge", "rebase-apply"} {
		if _, statErr := os.Stat(filepath.Join(repo.LocalPath, ".git", marker)); !os.IsNotExist(statErr) {
			t.Errorf("rebase state %s still present after abort", marker)
		}
	}
}

func TestPushToBareRemote(t *testing.T) {
	svc := newTestService(t)
	repo := initTestRepo(t)
	ctx := context.Background()
	branch := "openclaw/task-11-push"

	remote := t.TempDir()
	gitCmd(t, remote, "init", "--bare")
	gitCmd(t, repo.LocalPath, "remote", "add", "origin", remote)

	commitOnBranch(t, svc, repo, branch, "pushed.txt", "x\n", "to be pushed")

	if err := svc.Push(ctx, repo, branch, false); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if sha := gitCmd(t, remote, "rev-parse", branch); len(sha) != 40 {
		t.Errorf("branch not present on remote: %q", sha)
	}

	// Amend and force-push with lease.
	wt, err := svc.EnsureWorktree(ctx, repo, branch)
	if err != nil {
		t.Fatalf("EnsureWorktree failed: %v", err)
	}
	gitCmd(t, wt.Path, "commit", "--amend", "-m", "amended")
	if err := svc.Push(ctx, repo, branch, true); err != nil {
		t.Fatalf("force push failed: %v", err)
	}
	if msg := gitCmd(t, remote, "log", "-1", "--format=%s", branch); msg != "amended" {
		t.Errorf("force push did not update remote: %q", msg)
	}

	if err := svc.Push(ctx, repo, "no-such-branch", false); err == nil {
		t.Error("pushing a missing branch should fail")
	}
}

func TestParsePRNumber(t *testing.T) {
	cases := []struct {
		url  string
		want int
	}{
		{"https://github.com/acme/demo/pull/42", 42},
		{"https://github.com/acme/demo/pull/42/", 42},
		{"https://github.com/acme/demo/pulls", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parsePRNumber(tc.url); got != tc.want {
			t.Errorf("parsePRNumber(%q) = %d, want %d", tc.url, got, tc.want)
		}
	}
}
