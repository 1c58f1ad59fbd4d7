package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/openclaw/internal/control/models"
)

const reviewColumns = `id, task_id, attempt, reviewer_id, reviewer_type, verdict, summary,
	created_at, resolved_at`

func scanReview(row rowScanner) (*models.Review, error) {
	review := &models.Review{}
	var reviewerID, verdict, summary sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(&review.ID, &review.TaskID, &review.Attempt, &reviewerID,
		&review.ReviewerType, &verdict, &summary, &review.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if reviewerID.Valid {
		review.ReviewerID = &reviewerID.String
	}
	if verdict.Valid {
		v := models.Verdict(verdict.String)
		review.Verdict = &v
	}
	if summary.Valid {
		review.Summary = &summary.String
	}
	if resolvedAt.Valid {
		review.ResolvedAt = &resolvedAt.Time
	}
	return review, nil
}

func scanReviewComment(row rowScanner) (*models.ReviewComment, error) {
	comment := &models.ReviewComment{}
	var filePath sql.NullString
	var lineNumber sql.NullInt64

	err := row.Scan(&comment.ID, &comment.ReviewID, &comment.AuthorID, &comment.AuthorType,
		&filePath, &lineNumber, &comment.Content, &comment.CreatedAt)
	if err != nil {
		return nil, err
	}

	if filePath.Valid {
		comment.FilePath = &filePath.String
	}
	if lineNumber.Valid {
		n := int(lineNumber.Int64)
		comment.LineNumber = &n
	}
	return comment, nil
}

// CreateReview opens a new review attempt. The UNIQUE(task_id, attempt)
// constraint catches concurrent attempt allocation.
func (s *store) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now().UTC()
	if review.ReviewerType == "" {
		review.ReviewerType = models.ActorUser
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO reviews (id, task_id, attempt, reviewer_id, reviewer_type, verdict,
			summary, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), review.ID, review.TaskID, review.Attempt, review.ReviewerID, review.ReviewerType,
		review.Verdict, review.Summary, review.CreatedAt, review.ResolvedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: review attempt %d for task %d", models.ErrDuplicateKey, review.Attempt, review.TaskID)
		}
		return err
	}
	return nil
}

// GetReview retrieves a review with its comments.
func (s *store) GetReview(ctx context.Context, id string) (*models.Review, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+reviewColumns+` FROM reviews WHERE id = ?
	`), id)
	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: review %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, []*models.Review{review}); err != nil {
		return nil, err
	}
	return review, nil
}

// UpdateReview writes back the verdict fields.
func (s *store) UpdateReview(ctx context.Context, review *models.Review) error {
	result, err := s.w.ExecContext(ctx, s.w.Rebind(`
		UPDATE reviews SET reviewer_id = ?, reviewer_type = ?, verdict = ?, summary = ?, resolved_at = ?
		WHERE id = ?
	`), review.ReviewerID, review.ReviewerType, review.Verdict, review.Summary,
		review.ResolvedAt, review.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: review %s", models.ErrNotFound, review.ID)
	}
	return nil
}

// ListReviews returns a task's review attempts, most recent attempt
// first, each with its comments.
func (s *store) ListReviews(ctx context.Context, taskID int64) ([]*models.Review, error) {
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(`
		SELECT `+reviewColumns+` FROM reviews WHERE task_id = ? ORDER BY attempt DESC
	`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// LatestReview returns the highest-attempt review for a task.
func (s *store) LatestReview(ctx context.Context, taskID int64) (*models.Review, error) {
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT `+reviewColumns+` FROM reviews WHERE task_id = ? ORDER BY attempt DESC LIMIT 1
	`), taskID)
	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no reviews for task %d", models.ErrNotFound, taskID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, []*models.Review{review}); err != nil {
		return nil, err
	}
	return review, nil
}

// MaxReviewAttempt returns the highest attempt number recorded for a
// task, or 0 when the task has no reviews yet.
func (s *store) MaxReviewAttempt(ctx context.Context, taskID int64) (int, error) {
	var attempt int
	row := s.r.QueryRowxContext(ctx, s.r.Rebind(`
		SELECT COALESCE(MAX(attempt), 0) FROM reviews WHERE task_id = ?
	`), taskID)
	if err := row.Scan(&attempt); err != nil {
		return 0, err
	}
	return attempt, nil
}

// CreateReviewComment attaches one comment to a review.
func (s *store) CreateReviewComment(ctx context.Context, comment *models.ReviewComment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	comment.CreatedAt = time.Now().UTC()
	if comment.AuthorType == "" {
		comment.AuthorType = models.ActorUser
	}

	_, err := s.w.ExecContext(ctx, s.w.Rebind(`
		INSERT INTO review_comments (id, review_id, author_id, author_type, file_path,
			line_number, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), comment.ID, comment.ReviewID, comment.AuthorID, comment.AuthorType,
		comment.FilePath, comment.LineNumber, comment.Content, comment.CreatedAt)
	return err
}

// loadComments fills the Comments slice of each review in one query.
func (s *store) loadComments(ctx context.Context, reviews []*models.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	ids := make([]string, len(reviews))
	byID := make(map[string]*models.Review, len(reviews))
	for i, review := range reviews {
		ids[i] = review.ID
		byID[review.ID] = review
	}

	query, args, err := sqlx.In(`
		SELECT id, review_id, author_id, author_type, file_path, line_number, content, created_at
		FROM review_comments WHERE review_id IN (?) ORDER BY created_at ASC`, ids)
	if err != nil {
		return err
	}
	rows, err := s.r.QueryxContext(ctx, s.r.Rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanReviewComment(rows)
		if err != nil {
			return err
		}
		if review, ok := byID[comment.ReviewID]; ok {
			review.Comments = append(review.Comments, *comment)
		}
	}
	return rows.Err()
}
