// Package gitops shells out to the git binary for worktree management,
// branch inspection, pushes, pull requests and merge execution. Every
// command runs through internal/subprocess with a bounded timeout.
// Operations that mutate a repository's primary checkout are serialised
// with a per-repository lock.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/subprocess"
)

// DefaultTimeout bounds a single git command.
const DefaultTimeout = 60 * time.Second

// ErrGitCommandFailed wraps the stderr of a git command that exited
// with a non-zero status.
var ErrGitCommandFailed = errors.New("git command failed")

// WorktreeInfo describes a task branch's checkout under .worktrees/.
type WorktreeInfo struct {
	Path     string `json:"path"`
	Branch   string `json:"branch"`
	Exists   bool   `json:"exists"`
	RepoPath string `json:"repo_path"`
	RepoName string `json:"repo_name"`
}

// DiffFile is one changed file in a branch diff.
type DiffFile struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Commit is one entry of a branch commit log.
type Commit struct {
	Hash        string `json:"hash"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Message     string `json:"message"`
	Date        string `json:"date"`
}

// Service runs git operations against registered repositories.
type Service struct {
	logger  *logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a git service. timeout bounds each git command;
// zero or negative selects DefaultTimeout.
func NewService(log *logger.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		logger:  log,
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

// repoLock returns the mutex that serialises primary-checkout mutations
// for the repository at path.
func (s *Service) repoLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// git runs a git command in dir and returns the raw result. A non-zero
// exit status is not an error at this level; callers decide.
func (s *Service) git(ctx context.Context, dir string, args ...string) (*subprocess.Result, error) {
	res, err := subprocess.Run(ctx, "git", args, subprocess.Options{Dir: dir, Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return res, nil
}

// gitOut runs a git command and returns its trimmed stdout, converting
// a non-zero exit into ErrGitCommandFailed with the stderr attached.
func (s *Service) gitOut(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := s.git(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", fmt.Errorf("%w: %s", ErrGitCommandFailed, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// step runs one git command and labels its failure, so multi-command
// sequences report which stage broke.
func (s *Service) step(ctx context.Context, dir, label string, args ...string) error {
	res, err := s.git(ctx, dir, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !res.Ok() {
		return fmt.Errorf("%s: %s", label, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// abort cleans up a conflicted rebase or merge. Failing to abort is
// expected when nothing is in progress.
func (s *Service) abort(ctx context.Context, dir string, args ...string) {
	res, err := s.git(ctx, dir, args...)
	if err != nil {
		s.logger.Debug("git abort failed", zap.Strings("args", args), zap.Error(err))
		return
	}
	if !res.Ok() {
		s.logger.Debug("git abort exited non-zero",
			zap.Strings("args", args),
			zap.String("stderr", strings.TrimSpace(res.Stderr)))
	}
}
