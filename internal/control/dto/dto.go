// Package dto defines the wire shapes of the control-plane REST API and
// the converters from the interior models.
package dto

import (
	"time"

	"github.com/openclaw/openclaw/internal/control/models"
)

type OrgDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamDTO struct {
	ID        string                 `json:"id"`
	OrgID     string                 `json:"org_id"`
	Name      string                 `json:"name"`
	Slug      string                 `json:"slug"`
	Config    map[string]interface{} `json:"config,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type AgentDTO struct {
	ID              string                 `json:"id"`
	TeamID          string                 `json:"team_id"`
	Name            string                 `json:"name"`
	Role            models.AgentRole       `json:"role"`
	Model           string                 `json:"model"`
	Status          models.AgentStatus     `json:"status"`
	Config          map[string]interface{} `json:"config,omitempty"`
	StatusChangedAt time.Time              `json:"status_changed_at"`
	CreatedAt       time.Time              `json:"created_at"`
}

type RepositoryDTO struct {
	ID            string                 `json:"id"`
	TeamID        string                 `json:"team_id"`
	Name          string                 `json:"name"`
	LocalPath     string                 `json:"local_path"`
	DefaultBranch string                 `json:"default_branch"`
	Config        map[string]interface{} `json:"config,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

type TaskDTO struct {
	ID          int64                  `json:"id"`
	TeamID      string                 `json:"team_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Status      models.TaskStatus      `json:"status"`
	Priority    models.TaskPriority    `json:"priority"`
	DRIID       *string                `json:"dri_id,omitempty"`
	AssigneeID  *string                `json:"assignee_id,omitempty"`
	DependsOn   []int64                `json:"depends_on,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Branch      string                 `json:"branch,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

type MessageDTO struct {
	ID            string           `json:"id"`
	TeamID        string           `json:"team_id"`
	SenderID      string           `json:"sender_id"`
	SenderType    models.ActorType `json:"sender_type"`
	RecipientID   string           `json:"recipient_id"`
	RecipientType models.ActorType `json:"recipient_type"`
	TaskID        *int64           `json:"task_id,omitempty"`
	Content       string           `json:"content"`
	SeenAt        *time.Time       `json:"seen_at,omitempty"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type EventDTO struct {
	ID        int64                  `json:"id"`
	StreamID  string                 `json:"stream_id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type SessionDTO struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agent_id"`
	TaskID     *int64     `json:"task_id,omitempty"`
	Model      string     `json:"model"`
	TokensIn   int64      `json:"tokens_in"`
	TokensOut  int64      `json:"tokens_out"`
	CacheRead  int64      `json:"cache_read"`
	CacheWrite int64      `json:"cache_write"`
	CostUSD    float64    `json:"cost_usd"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

type HumanRequestDTO struct {
	ID          string               `json:"id"`
	TeamID      string               `json:"team_id"`
	AgentID     string               `json:"agent_id"`
	TaskID      *int64               `json:"task_id,omitempty"`
	Kind        models.RequestKind   `json:"kind"`
	Question    string               `json:"question"`
	Options     []string             `json:"options,omitempty"`
	Status      models.RequestStatus `json:"status"`
	Response    *string              `json:"response,omitempty"`
	RespondedBy *string              `json:"responded_by,omitempty"`
	TimeoutAt   *time.Time           `json:"timeout_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
}

type ReviewCommentDTO struct {
	ID         string           `json:"id"`
	ReviewID   string           `json:"review_id"`
	AuthorID   string           `json:"author_id"`
	AuthorType models.ActorType `json:"author_type"`
	FilePath   *string          `json:"file_path,omitempty"`
	LineNumber *int             `json:"line_number,omitempty"`
	Content    string           `json:"content"`
	CreatedAt  time.Time        `json:"created_at"`
}

type ReviewDTO struct {
	ID           string             `json:"id"`
	TaskID       int64              `json:"task_id"`
	Attempt      int                `json:"attempt"`
	ReviewerID   *string            `json:"reviewer_id,omitempty"`
	ReviewerType models.ActorType   `json:"reviewer_type"`
	Verdict      *models.Verdict    `json:"verdict,omitempty"`
	Summary      *string            `json:"summary,omitempty"`
	Comments     []ReviewCommentDTO `json:"comments"`
	CreatedAt    time.Time          `json:"created_at"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
}

type MergeJobDTO struct {
	ID          string               `json:"id"`
	TaskID      int64                `json:"task_id"`
	RepoID      string               `json:"repo_id"`
	Status      models.MergeStatus   `json:"status"`
	Strategy    models.MergeStrategy `json:"strategy"`
	MergeCommit *string              `json:"merge_commit,omitempty"`
	Error       *string              `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}

type ChangedFileDTO struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type ListTasksResponse struct {
	Tasks []TaskDTO `json:"tasks"`
	Total int       `json:"total"`
}

type ListAgentsResponse struct {
	Agents []AgentDTO `json:"agents"`
	Total  int        `json:"total"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Total    int          `json:"total"`
}

type ListEventsResponse struct {
	Events []EventDTO `json:"events"`
	Total  int        `json:"total"`
}

type ListHumanRequestsResponse struct {
	Requests []HumanRequestDTO `json:"requests"`
	Total    int               `json:"total"`
}

type ListReviewsResponse struct {
	Reviews []ReviewDTO `json:"reviews"`
	Total   int         `json:"total"`
}

type ListAdaptersResponse struct {
	Adapters []string `json:"adapters"`
}

type TaskContextResponse struct {
	TaskID  int64             `json:"task_id"`
	Context map[string]string `json:"context"`
}

type DiffResponse struct {
	TaskID int64  `json:"task_id"`
	RepoID string `json:"repo_id"`
	Branch string `json:"branch"`
	Diff   string `json:"diff"`
}

type ChangedFilesResponse struct {
	TaskID int64            `json:"task_id"`
	RepoID string           `json:"repo_id"`
	Branch string           `json:"branch"`
	Files  []ChangedFileDTO `json:"files"`
	Total  int              `json:"total"`
}

type FileContentResponse struct {
	RepoID  string `json:"repo_id"`
	Path    string `json:"path"`
	Ref     string `json:"ref"`
	Content string `json:"content"`
}

type PushResponse struct {
	TaskID int64  `json:"task_id"`
	RepoID string `json:"repo_id"`
	Branch string `json:"branch"`
	Pushed bool   `json:"pushed"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

func FromOrg(org *models.Organization) OrgDTO {
	return OrgDTO{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
	}
}

func FromTeam(team *models.Team) TeamDTO {
	return TeamDTO{
		ID:        team.ID,
		OrgID:     team.OrgID,
		Name:      team.Name,
		Slug:      team.Slug,
		Config:    team.Config,
		CreatedAt: team.CreatedAt,
	}
}

func FromAgent(agent *models.Agent) AgentDTO {
	return AgentDTO{
		ID:              agent.ID,
		TeamID:          agent.TeamID,
		Name:            agent.Name,
		Role:            agent.Role,
		Model:           agent.Model,
		Status:          agent.Status,
		Config:          agent.Config,
		StatusChangedAt: agent.StatusChangedAt,
		CreatedAt:       agent.CreatedAt,
	}
}

func FromRepository(repo *models.Repository) RepositoryDTO {
	return RepositoryDTO{
		ID:            repo.ID,
		TeamID:        repo.TeamID,
		Name:          repo.Name,
		LocalPath:     repo.LocalPath,
		DefaultBranch: repo.DefaultBranch,
		Config:        repo.Config,
		CreatedAt:     repo.CreatedAt,
	}
}

func FromTask(task *models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		TeamID:      task.TeamID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DRIID:       task.DRIID,
		AssigneeID:  task.AssigneeID,
		DependsOn:   task.DependsOn,
		RepoIDs:     task.RepoIDs,
		Tags:        task.Tags,
		Branch:      task.Branch,
		Metadata:    task.Metadata,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		CompletedAt: task.CompletedAt,
	}
}

func FromTasks(tasks []*models.Task) []TaskDTO {
	out := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return out
}

func FromMessage(msg *models.Message) MessageDTO {
	return MessageDTO{
		ID:            msg.ID,
		TeamID:        msg.TeamID,
		SenderID:      msg.SenderID,
		SenderType:    msg.SenderType,
		RecipientID:   msg.RecipientID,
		RecipientType: msg.RecipientType,
		TaskID:        msg.TaskID,
		Content:       msg.Content,
		SeenAt:        msg.SeenAt,
		ProcessedAt:   msg.ProcessedAt,
		CreatedAt:     msg.CreatedAt,
	}
}

func FromEvent(ev *models.Event) EventDTO {
	return EventDTO{
		ID:        ev.ID,
		StreamID:  ev.StreamID,
		Type:      ev.Type,
		Data:      ev.Data,
		Metadata:  ev.Metadata,
		CreatedAt: ev.CreatedAt,
	}
}

func FromSession(sess *models.Session) SessionDTO {
	return SessionDTO{
		ID:         sess.ID,
		AgentID:    sess.AgentID,
		TaskID:     sess.TaskID,
		Model:      sess.Model,
		TokensIn:   sess.TokensIn,
		TokensOut:  sess.TokensOut,
		CacheRead:  sess.CacheRead,
		CacheWrite: sess.CacheWrite,
		CostUSD:    sess.CostUSD,
		Error:      sess.Error,
		StartedAt:  sess.StartedAt,
		EndedAt:    sess.EndedAt,
	}
}

func FromHumanRequest(req *models.HumanRequest) HumanRequestDTO {
	return HumanRequestDTO{
		ID:          req.ID,
		TeamID:      req.TeamID,
		AgentID:     req.AgentID,
		TaskID:      req.TaskID,
		Kind:        req.Kind,
		Question:    req.Question,
		Options:     req.Options,
		Status:      req.Status,
		Response:    req.Response,
		RespondedBy: req.RespondedBy,
		TimeoutAt:   req.TimeoutAt,
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
	}
}

func FromReviewComment(comment *models.ReviewComment) ReviewCommentDTO {
	return ReviewCommentDTO{
		ID:         comment.ID,
		ReviewID:   comment.ReviewID,
		AuthorID:   comment.AuthorID,
		AuthorType: comment.AuthorType,
		FilePath:   comment.FilePath,
		LineNumber: comment.LineNumber,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
}

func FromReview(review *models.Review) ReviewDTO {
	comments := make([]ReviewCommentDTO, 0, len(review.Comments))
	for i := range review.Comments {
		comments = append(comments, FromReviewComment(&review.Comments[i]))
	}
	return ReviewDTO{
		ID:           review.ID,
		TaskID:       review.TaskID,
		Attempt:      review.Attempt,
		ReviewerID:   review.ReviewerID,
		ReviewerType: review.ReviewerType,
		Verdict:      review.Verdict,
		Summary:      review.Summary,
		Comments:     comments,
		CreatedAt:    review.CreatedAt,
		ResolvedAt:   review.ResolvedAt,
	}
}

func FromMergeJob(job *models.MergeJob) MergeJobDTO {
	return MergeJobDTO{
		ID:          job.ID,
		TaskID:      job.TaskID,
		RepoID:      job.RepoID,
		Status:      job.Status,
		Strategy:    job.Strategy,
		MergeCommit: job.MergeCommit,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
}
