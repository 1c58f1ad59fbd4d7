package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/db/dialect"
)

const mergeJobColumns = `id, task_id, repo_id, status, strategy, merge_commit, error,
	created_at, started_at, finished_at`

func scanMergeJob(row rowScanner) (*models.MergeJob, error) {
	job := &models.MergeJob{}
	var mergeCommit, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.TaskID, &job.RepoID, &job.Status, &job.Strategy,
		&mergeCommit, &errMsg, &job.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if mergeCommit.Valid {
		job.MergeCommit = &mergeCommit.String
	}
	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return job, nil
}

// CreateMergeJob queues a merge attempt.
func (s *store) CreateMergeJob(ctx context.Context, job *models.MergeJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = time.Now().UTC()
	if job.Status == "" {
		job.Status = models.MergeStatusQueued
	}
	if job.Strategy == "" {
		job.Strategy = models.StrategyRebase
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO merge_jobs (id, task_id, repo_id, status, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), job.ID, job.TaskID, job.RepoID, job.Status, job.Strategy, job.CreatedAt)
	return err
}

// UpdateMergeJob writes back the job's progress fields.
func (s *store) UpdateMergeJob(ctx context.Context, job *models.MergeJob) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE merge_jobs SET status = ?, merge_commit = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?
	`), job.Status, job.MergeCommit, job.Error, job.StartedAt, job.FinishedAt, job.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: merge job %s", models.ErrNotFound, job.ID)
	}
	return nil
}

// ListMergeJobs returns a task's merge jobs, newest first.
func (s *store) ListMergeJobs(ctx context.Context, taskID int64) ([]*models.MergeJob, error) {
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT `+mergeJobColumns+` FROM merge_jobs WHERE task_id = ? ORDER BY created_at DESC
	`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.MergeJob
	for rows.Next() {
		job, err := scanMergeJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimQueuedMergeJob atomically takes the oldest queued job and flips
// it to running. Returns nil when nothing is queued. Call it inside
// WithTx so competing workers skip each other's claims; on Postgres the
// row is locked with SKIP LOCKED, on SQLite the single writer
// serialises claims.
func (s *store) ClaimQueuedMergeJob(ctx context.Context) (*models.MergeJob, error) {
	query := `SELECT ` + mergeJobColumns + ` FROM merge_jobs WHERE status = 'queued' ORDER BY created_at ASC LIMIT 1`
	if dialect.IsPostgres(s.w.DriverName()) {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	row := s.w.QueryRowxContext(ctx, s.w.Rebind(query))
	job, err := scanMergeJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE merge_jobs SET status = 'running', started_at = ? WHERE id = ? AND status = 'queued'
	`), now, job.ID)
	if err != nil {
		return nil, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Another worker won the race.
		return nil, nil
	}

	job.Status = models.MergeStatusRunning
	job.StartedAt = &now
	return job, nil
}
