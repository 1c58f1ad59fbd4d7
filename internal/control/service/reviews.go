package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/events"
)

// MergeStatusReport is the merge readiness view of a task.
type MergeStatusReport struct {
	TaskID        int64              `json:"task_id"`
	ReviewVerdict *models.Verdict    `json:"review_verdict,omitempty"`
	ReviewAttempt int                `json:"review_attempt"`
	MergeJobs     []*models.MergeJob `json:"merge_jobs"`
	CanMerge      bool               `json:"can_merge"`
}

// RequestReview opens the next review attempt for a task. When no
// reviewer is given an idle reviewer-role agent on the team is picked.
// Branch push and PR creation are best-effort and never fail the call.
func (s *Service) RequestReview(ctx context.Context, taskID int64, reviewerID *string, reviewerType models.ActorType) (*models.Review, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if reviewerID == nil || *reviewerID == "" {
		reviewerID = nil
		agents, err := s.repo.ListAgents(ctx, task.TeamID)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			if a.Role == models.RoleReviewer && a.Status == models.AgentStatusIdle {
				id := a.ID
				reviewerID = &id
				reviewerType = models.ActorAgent
				break
			}
		}
	}
	if reviewerType == "" {
		reviewerType = models.ActorAgent
	}

	review := &models.Review{
		TaskID:       task.ID,
		ReviewerID:   reviewerID,
		ReviewerType: reviewerType,
	}
	err = s.repo.WithTx(ctx, func(store repository.Store) error {
		attempt, err := store.MaxReviewAttempt(ctx, task.ID)
		if err != nil {
			return err
		}
		review.Attempt = attempt + 1
		if err := store.CreateReview(ctx, review); err != nil {
			return err
		}
		data := map[string]interface{}{
			"review_id":     review.ID,
			"attempt":       review.Attempt,
			"reviewer_type": string(review.ReviewerType),
		}
		if review.ReviewerID != nil {
			data["reviewer_id"] = *review.ReviewerID
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.ReviewCreated,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review requested",
		zap.Int64("task_id", task.ID),
		zap.String("review_id", review.ID),
		zap.Int("attempt", review.Attempt))
	s.publishFeed(ctx, task.TeamID, events.ReviewCreated, map[string]interface{}{
		"review_id": review.ID,
		"task_id":   task.ID,
		"team_id":   task.TeamID,
		"attempt":   review.Attempt,
	})

	s.publishBranch(ctx, task)

	if review.ReviewerID != nil && review.ReviewerType == models.ActorAgent {
		sender := "system"
		if task.AssigneeID != nil {
			sender = *task.AssigneeID
		}
		content := fmt.Sprintf(
			"Code Review Request\n\nTask #%d is ready for review (attempt %d).\nReview ID: %s\nBranch: %s",
			task.ID, review.Attempt, review.ID, task.Branch)
		_, err := s.SendMessage(ctx, &models.Message{
			TeamID:        task.TeamID,
			SenderID:      sender,
			SenderType:    models.ActorAgent,
			RecipientID:   *review.ReviewerID,
			RecipientType: models.ActorAgent,
			TaskID:        &task.ID,
			Content:       content,
		})
		if err != nil {
			s.logger.Warn("failed to notify reviewer",
				zap.String("review_id", review.ID),
				zap.String("reviewer_id", *review.ReviewerID),
				zap.Error(err))
		}
	}
	return review, nil
}

// publishBranch pushes the task branch and opens a PR on the first
// linked repository. Failures are logged, never returned.
func (s *Service) publishBranch(ctx context.Context, task *models.Task) {
	if s.git == nil || len(task.RepoIDs) == 0 || task.Branch == "" {
		return
	}
	repo, err := s.repo.GetRepo(ctx, task.RepoIDs[0])
	if err != nil {
		s.logger.Warn("failed to load repo for branch publish",
			zap.Int64("task_id", task.ID), zap.Error(err))
		return
	}
	if err := s.git.Push(ctx, repo, task.Branch, false); err != nil {
		s.logger.Warn("failed to push task branch",
			zap.Int64("task_id", task.ID),
			zap.String("branch", task.Branch),
			zap.Error(err))
		return
	}
	pr, err := s.git.CreatePullRequest(ctx, repo, task)
	if err != nil {
		s.logger.Warn("failed to create pull request",
			zap.Int64("task_id", task.ID),
			zap.String("branch", task.Branch),
			zap.Error(err))
		return
	}

	if err := s.recordPullRequest(ctx, task, repo, pr); err != nil {
		s.logger.Warn("failed to record pull request",
			zap.Int64("task_id", task.ID), zap.Error(err))
	}
}

// recordPullRequest stores the PR reference in task metadata and appends
// pr.created, then announces it on the team feed.
func (s *Service) recordPullRequest(ctx context.Context, task *models.Task, repo *models.Repository, pr *PullRequest) error {
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		fresh, err := store.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if fresh.Metadata == nil {
			fresh.Metadata = make(map[string]interface{})
		}
		fresh.Metadata["pr_url"] = pr.URL
		fresh.Metadata["pr_number"] = pr.Number
		if err := store.UpdateTask(ctx, fresh); err != nil {
			return err
		}
		task.Metadata = fresh.Metadata
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(task.ID),
			Type:     events.PRCreated,
			Data: map[string]interface{}{
				"pr_url":    pr.URL,
				"pr_number": pr.Number,
				"repo_id":   repo.ID,
			},
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("pull request created",
		zap.Int64("task_id", task.ID),
		zap.String("pr_url", pr.URL))
	s.publishFeed(ctx, task.TeamID, events.PRCreated, map[string]interface{}{
		"task_id":   task.ID,
		"team_id":   task.TeamID,
		"pr_url":    pr.URL,
		"pr_number": pr.Number,
	})
	return nil
}

// resolveTaskRepo picks the repository for a git operation: the explicit
// id when given, otherwise the task's first linked repository.
func (s *Service) resolveTaskRepo(ctx context.Context, task *models.Task, repoID string) (*models.Repository, error) {
	if repoID == "" {
		if len(task.RepoIDs) == 0 {
			return nil, fmt.Errorf("%w: task %d has no linked repositories", models.ErrValidation, task.ID)
		}
		repoID = task.RepoIDs[0]
	}
	return s.repo.GetRepo(ctx, repoID)
}

// PushTaskBranch pushes the task branch to the repository remote. Unlike
// the review automation this surfaces failures to the caller.
func (s *Service) PushTaskBranch(ctx context.Context, taskID int64, repoID string, force bool) (*models.Task, *models.Repository, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.Branch == "" {
		return nil, nil, fmt.Errorf("%w: task %d has no branch", models.ErrValidation, taskID)
	}
	repo, err := s.resolveTaskRepo(ctx, task, repoID)
	if err != nil {
		return nil, nil, err
	}
	if s.git == nil {
		return nil, nil, fmt.Errorf("%w: git publishing is not configured", models.ErrValidation)
	}
	if err := s.git.Push(ctx, repo, task.Branch, force); err != nil {
		return nil, nil, err
	}
	s.logger.Info("task branch pushed",
		zap.Int64("task_id", task.ID),
		zap.String("repo_id", repo.ID),
		zap.String("branch", task.Branch))
	return task, repo, nil
}

// OpenPullRequest creates a pull request for the task branch and records
// it on the task. The repo id may be empty when the task links exactly
// the repositories to use.
func (s *Service) OpenPullRequest(ctx context.Context, taskID int64, repoID string) (*PullRequest, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Branch == "" {
		return nil, fmt.Errorf("%w: task %d has no branch", models.ErrValidation, taskID)
	}
	repo, err := s.resolveTaskRepo(ctx, task, repoID)
	if err != nil {
		return nil, err
	}
	if s.git == nil {
		return nil, fmt.Errorf("%w: git publishing is not configured", models.ErrValidation)
	}
	pr, err := s.git.CreatePullRequest(ctx, repo, task)
	if err != nil {
		return nil, err
	}
	if err := s.recordPullRequest(ctx, task, repo, pr); err != nil {
		s.logger.Warn("failed to record pull request",
			zap.Int64("task_id", task.ID), zap.Error(err))
	}
	return pr, nil
}

// ListReviews returns all review attempts for a task, newest first.
func (s *Service) ListReviews(ctx context.Context, taskID int64) ([]*models.Review, error) {
	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListReviews(ctx, taskID)
}

// AddReviewComment attaches an inline or general note to a review.
func (s *Service) AddReviewComment(ctx context.Context, reviewID, authorID string, authorType models.ActorType, content string, filePath *string, lineNumber *int) (*models.ReviewComment, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", models.ErrValidation)
	}
	if authorType == "" {
		authorType = models.ActorAgent
	}

	review, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	comment := &models.ReviewComment{
		ReviewID:   review.ID,
		AuthorID:   authorID,
		AuthorType: authorType,
		FilePath:   filePath,
		LineNumber: lineNumber,
		Content:    content,
	}
	err = s.repo.WithTx(ctx, func(store repository.Store) error {
		if err := store.CreateReviewComment(ctx, comment); err != nil {
			return err
		}
		data := map[string]interface{}{
			"review_id":  review.ID,
			"comment_id": comment.ID,
			"author_id":  comment.AuthorID,
		}
		if filePath != nil {
			data["file_path"] = *filePath
		}
		if lineNumber != nil {
			data["line_number"] = *lineNumber
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(review.TaskID),
			Type:     events.ReviewCommentAdded,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// SubmitVerdict records the outcome of a review attempt. A
// request_changes or reject verdict regresses the task to in_progress
// and sends the rendered feedback to the assignee; approve leaves the
// task where it is so the human tier can drive the approval transitions.
func (s *Service) SubmitVerdict(ctx context.Context, reviewID string, verdict models.Verdict, summary *string, reviewerID *string, reviewerType models.ActorType) (*models.Review, error) {
	if !models.ValidVerdict(verdict) {
		return nil, fmt.Errorf("%w: unknown verdict %q", models.ErrValidation, verdict)
	}

	var review *models.Review
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		review, err = store.GetReview(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.Verdict != nil {
			return fmt.Errorf("%w: review %s already has verdict %s", models.ErrAlreadyResolved, reviewID, *review.Verdict)
		}

		now := time.Now().UTC()
		review.Verdict = &verdict
		review.ResolvedAt = &now
		if summary != nil && *summary != "" {
			review.Summary = summary
		}
		if reviewerID != nil && *reviewerID != "" {
			review.ReviewerID = reviewerID
			if reviewerType != "" {
				review.ReviewerType = reviewerType
			}
		}
		if err := store.UpdateReview(ctx, review); err != nil {
			return err
		}

		data := map[string]interface{}{
			"review_id": review.ID,
			"attempt":   review.Attempt,
			"verdict":   string(verdict),
		}
		if review.ReviewerID != nil {
			data["reviewer_id"] = *review.ReviewerID
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(review.TaskID),
			Type:     events.ReviewVerdict,
			Data:     data,
		})
	})
	if err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, review.TaskID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("review verdict submitted",
		zap.String("review_id", review.ID),
		zap.Int64("task_id", task.ID),
		zap.String("verdict", string(verdict)))
	s.publishFeed(ctx, task.TeamID, events.ReviewVerdict, map[string]interface{}{
		"review_id": review.ID,
		"task_id":   task.ID,
		"team_id":   task.TeamID,
		"attempt":   review.Attempt,
		"verdict":   string(verdict),
	})

	if verdict == models.VerdictRequestChanges || verdict == models.VerdictReject {
		// Regress before notifying so the dispatched assignee sees an
		// in_progress task.
		if models.CanTransition(task.Status, models.TaskStatusInProgress) {
			actor := ""
			if review.ReviewerID != nil {
				actor = *review.ReviewerID
			}
			if _, err := s.ChangeTaskStatus(ctx, task.ID, models.TaskStatusInProgress, actor); err != nil {
				s.logger.Warn("failed to regress task after review",
					zap.Int64("task_id", task.ID), zap.Error(err))
			}
		}
		s.sendReviewFeedback(ctx, task, review)
	}
	return review, nil
}

// sendReviewFeedback renders the review into a feedback message for the
// assignee and records review.feedback_sent.
func (s *Service) sendReviewFeedback(ctx context.Context, task *models.Task, review *models.Review) {
	if task.AssigneeID == nil {
		s.logger.Warn("no assignee to send review feedback to",
			zap.Int64("task_id", task.ID), zap.String("review_id", review.ID))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Review Feedback (Attempt #%d)\n", review.Attempt)
	if review.Summary != nil && *review.Summary != "" {
		b.WriteString("\n" + *review.Summary + "\n")
	}
	full, err := s.repo.GetReview(ctx, review.ID)
	if err == nil {
		review = full
	}
	if len(review.Comments) > 0 {
		b.WriteString("\n")
		for _, c := range review.Comments {
			if c.FilePath != nil && c.LineNumber != nil {
				fmt.Fprintf(&b, "%s:%d: %s\n", *c.FilePath, *c.LineNumber, c.Content)
			} else if c.FilePath != nil {
				fmt.Fprintf(&b, "%s: %s\n", *c.FilePath, c.Content)
			} else {
				fmt.Fprintf(&b, "General: %s\n", c.Content)
			}
		}
	}

	sender := "system"
	senderType := models.ActorUser
	if review.ReviewerID != nil {
		sender = *review.ReviewerID
		senderType = review.ReviewerType
	}
	msg, err := s.SendMessage(ctx, &models.Message{
		TeamID:        task.TeamID,
		SenderID:      sender,
		SenderType:    senderType,
		RecipientID:   *task.AssigneeID,
		RecipientType: models.ActorAgent,
		TaskID:        &task.ID,
		Content:       b.String(),
	})
	if err != nil {
		s.logger.Warn("failed to send review feedback",
			zap.Int64("task_id", task.ID),
			zap.String("review_id", review.ID),
			zap.Error(err))
		return
	}

	err = s.repo.AppendEvent(ctx, &models.Event{
		StreamID: events.TaskStream(task.ID),
		Type:     events.ReviewFeedbackSent,
		Data: map[string]interface{}{
			"review_id":  review.ID,
			"attempt":    review.Attempt,
			"message_id": msg.ID,
		},
	})
	if err != nil {
		s.logger.Warn("failed to record review feedback event",
			zap.String("review_id", review.ID), zap.Error(err))
	}
}

// QueueMerge enqueues a merge job for an approved task and moves the
// task to merging. Refused unless the latest review verdict is approve
// and the task can legally transition.
func (s *Service) QueueMerge(ctx context.Context, taskID int64, repoID string, strategy models.MergeStrategy) (*models.MergeJob, error) {
	if strategy == "" {
		strategy = models.StrategyRebase
	}
	if !models.ValidStrategy(strategy) {
		return nil, fmt.Errorf("%w: unknown merge strategy %q", models.ErrValidation, strategy)
	}

	if _, err := s.repo.GetRepo(ctx, repoID); err != nil {
		return nil, err
	}

	job := &models.MergeJob{
		TaskID:   taskID,
		RepoID:   repoID,
		Strategy: strategy,
	}
	var task *models.Task
	var oldStatus models.TaskStatus
	err := s.repo.WithTx(ctx, func(store repository.Store) error {
		var err error
		task, err = store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		latest, err := store.LatestReview(ctx, taskID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if latest == nil || latest.Verdict == nil || *latest.Verdict != models.VerdictApprove {
			return fmt.Errorf("%w: task %d is not approved for merge", models.ErrInvalidTransition, taskID)
		}
		if !models.CanTransition(task.Status, models.TaskStatusMerging) {
			return fmt.Errorf("%w: task %d cannot move from %s to %s",
				models.ErrInvalidTransition, taskID, task.Status, models.TaskStatusMerging)
		}

		if err := store.CreateMergeJob(ctx, job); err != nil {
			return err
		}
		if err := store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(taskID),
			Type:     events.MergeQueued,
			Data: map[string]interface{}{
				"job_id":   job.ID,
				"repo_id":  repoID,
				"strategy": string(strategy),
			},
		}); err != nil {
			return err
		}

		oldStatus = task.Status
		task.Status = models.TaskStatusMerging
		if err := store.UpdateTask(ctx, task); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &models.Event{
			StreamID: events.TaskStream(taskID),
			Type:     events.TaskStatusChanged,
			Data: map[string]interface{}{
				"from": string(oldStatus),
				"to":   string(models.TaskStatusMerging),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("merge queued",
		zap.Int64("task_id", taskID),
		zap.String("job_id", job.ID),
		zap.String("strategy", string(strategy)))
	statusData := map[string]interface{}{
		"task_id":    taskID,
		"team_id":    task.TeamID,
		"old_status": string(oldStatus),
		"new_status": string(models.TaskStatusMerging),
	}
	s.publishNotify(ctx, events.SubjectTaskStatusChanged, events.TaskStatusChanged, statusData)
	s.publishFeed(ctx, task.TeamID, events.TaskStatusChanged, statusData)
	s.publishFeed(ctx, task.TeamID, events.MergeQueued, map[string]interface{}{
		"task_id": taskID,
		"team_id": task.TeamID,
		"job_id":  job.ID,
		"repo_id": repoID,
	})
	return job, nil
}

// MergeStatus reports a task's review verdict and merge job history.
func (s *Service) MergeStatus(ctx context.Context, taskID int64) (*MergeStatusReport, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	report := &MergeStatusReport{TaskID: taskID, MergeJobs: []*models.MergeJob{}}

	latest, err := s.repo.LatestReview(ctx, taskID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		report.ReviewVerdict = latest.Verdict
		report.ReviewAttempt = latest.Attempt
	}

	jobs, err := s.repo.ListMergeJobs(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if jobs != nil {
		report.MergeJobs = jobs
	}

	report.CanMerge = latest != nil &&
		latest.Verdict != nil && *latest.Verdict == models.VerdictApprove &&
		models.CanTransition(task.Status, models.TaskStatusMerging)
	return report, nil
}
