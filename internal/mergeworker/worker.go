// Package mergeworker executes queued merge jobs. Workers claim the
// oldest queued job, run the job's git strategy in the repository
// checkout, and finalise the task: done on success, back to in_progress
// on failure. Multiple workers may run against the same database; the
// claim is transactional so they skip each other's jobs.
package mergeworker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/events"
	"github.com/openclaw/openclaw/internal/events/bus"
)

// Common errors
var (
	ErrAlreadyRunning = errors.New("merge worker is already running")
	ErrNotRunning     = errors.New("merge worker is not running")
)

// GitMerger lands a branch onto the repository default branch and
// returns the merge commit. *gitops.Service satisfies it.
type GitMerger interface {
	MergeBranch(ctx context.Context, repo *models.Repository, branch string, strategy models.MergeStrategy) (string, error)
}

// Config holds merge worker tuning.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second}
}

// Stats is a point-in-time snapshot of the worker counters.
type Stats struct {
	Processed int64     `json:"processed"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
}

// Worker drains the merge job queue.
type Worker struct {
	svc      *service.Service
	git      GitMerger
	eventBus bus.EventBus
	logger   *logger.Logger
	config   Config

	// Statistics
	processed int64
	failed    int64

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a merge worker. A nil event bus disables feed publishing.
func New(svc *service.Service, git GitMerger, eventBus bus.EventBus, log *logger.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Worker{
		svc:      svc,
		git:      git,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "mergeworker")),
		config:   cfg,
	}
}

// Start begins the claim loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.startedAt = time.Now().UTC()
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("merge worker starting",
		zap.Duration("poll_interval", w.config.PollInterval))

	w.wg.Add(1)
	go w.claimLoop(ctx)
	return nil
}

// Stop stops the claim loop. A job being executed finishes first; the
// loop checks for shutdown between jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrNotRunning
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("merge worker stopped")
	return nil
}

// IsRunning returns true if the worker is active.
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() Stats {
	w.mu.RLock()
	started := w.startedAt
	w.mu.RUnlock()
	return Stats{
		Processed: atomic.LoadInt64(&w.processed),
		Failed:    atomic.LoadInt64(&w.failed),
		StartedAt: started,
	}
}

func (w *Worker) claimLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes jobs until the queue is empty or shutdown begins.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("merge job failed", zap.Error(err))
		}
		if !claimed {
			return
		}
	}
}

// RunOnce claims and executes a single queued job. It reports whether a
// job was claimed; the returned error covers execution, not an empty
// queue.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	var job *models.MergeJob
	err := w.svc.Repository().WithTx(ctx, func(store repository.Store) error {
		var err error
		job, err = store.ClaimQueuedMergeJob(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return true, w.execute(ctx, job)
}

func (w *Worker) execute(ctx context.Context, job *models.MergeJob) error {
	w.logger.Info("merge job claimed",
		zap.String("job_id", job.ID),
		zap.Int64("task_id", job.TaskID),
		zap.String("strategy", string(job.Strategy)))

	w.appendJobEvent(ctx, job, events.MergeStarted, map[string]interface{}{
		"job_id":   job.ID,
		"repo_id":  job.RepoID,
		"strategy": string(job.Strategy),
	})

	task, err := w.svc.GetTask(ctx, job.TaskID)
	if err != nil {
		return w.fail(ctx, job, nil, err)
	}
	repo, err := w.svc.GetRepo(ctx, job.RepoID)
	if err != nil {
		return w.fail(ctx, job, task, err)
	}

	commit, err := w.git.MergeBranch(ctx, repo, task.Branch, job.Strategy)
	if err != nil {
		return w.fail(ctx, job, task, err)
	}
	return w.succeed(ctx, job, task, commit)
}

func (w *Worker) succeed(ctx context.Context, job *models.MergeJob, task *models.Task, commit string) error {
	now := time.Now().UTC()
	job.Status = models.MergeStatusSuccess
	job.MergeCommit = &commit
	job.FinishedAt = &now
	if err := w.svc.Repository().UpdateMergeJob(ctx, job); err != nil {
		return err
	}

	w.appendJobEvent(ctx, job, events.MergeCompleted, map[string]interface{}{
		"job_id":       job.ID,
		"merge_commit": commit,
	})

	if _, err := w.svc.ChangeTaskStatus(ctx, task.ID, models.TaskStatusDone, ""); err != nil {
		w.logger.Error("failed to finish merged task",
			zap.Int64("task_id", task.ID), zap.Error(err))
	}

	atomic.AddInt64(&w.processed, 1)
	w.publishFeed(ctx, task.TeamID, events.MergeCompleted, map[string]interface{}{
		"task_id":      task.ID,
		"team_id":      task.TeamID,
		"job_id":       job.ID,
		"repo_id":      job.RepoID,
		"merge_commit": commit,
	})
	w.logger.Info("merge job completed",
		zap.String("job_id", job.ID),
		zap.Int64("task_id", task.ID),
		zap.String("merge_commit", commit))
	return nil
}

// fail persists the job error and sends the task back to in_progress so
// the assignee can resolve the conflict. A nil task means it could not
// be loaded; the job still fails but no transition happens.
func (w *Worker) fail(ctx context.Context, job *models.MergeJob, task *models.Task, cause error) error {
	now := time.Now().UTC()
	msg := cause.Error()
	job.Status = models.MergeStatusFailed
	job.Error = &msg
	job.FinishedAt = &now
	if err := w.svc.Repository().UpdateMergeJob(ctx, job); err != nil {
		w.logger.Error("failed to persist merge failure",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	w.appendJobEvent(ctx, job, events.MergeFailed, map[string]interface{}{
		"job_id": job.ID,
		"error":  msg,
	})

	if task != nil {
		if _, err := w.svc.ChangeTaskStatus(ctx, task.ID, models.TaskStatusInProgress, ""); err != nil {
			w.logger.Error("failed to return task to in_progress",
				zap.Int64("task_id", task.ID), zap.Error(err))
		}
		w.publishFeed(ctx, task.TeamID, events.MergeFailed, map[string]interface{}{
			"task_id": task.ID,
			"team_id": task.TeamID,
			"job_id":  job.ID,
			"repo_id": job.RepoID,
			"error":   msg,
		})
	}

	atomic.AddInt64(&w.failed, 1)
	w.logger.Warn("merge job failed",
		zap.String("job_id", job.ID),
		zap.Int64("task_id", job.TaskID),
		zap.String("error", msg))
	return cause
}

func (w *Worker) appendJobEvent(ctx context.Context, job *models.MergeJob, eventType string, data map[string]interface{}) {
	err := w.svc.Repository().AppendEvent(ctx, &models.Event{
		StreamID: events.TaskStream(job.TaskID),
		Type:     eventType,
		Data:     data,
	})
	if err != nil {
		w.logger.Warn("failed to append merge event",
			zap.String("job_id", job.ID),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

func (w *Worker) publishFeed(ctx context.Context, teamID, eventType string, data map[string]interface{}) {
	if w.eventBus == nil || teamID == "" {
		return
	}
	event := bus.NewEvent(eventType, "mergeworker", data)
	if err := w.eventBus.Publish(ctx, events.BuildTeamFeedSubject(teamID), event); err != nil {
		w.logger.Debug("failed to publish merge event",
			zap.String("type", eventType), zap.Error(err))
	}
}
