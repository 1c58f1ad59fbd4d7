package dto

import (
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
)

type CreateOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type CreateTeamRequest struct {
	Name   string                 `json:"name"`
	Slug   string                 `json:"slug,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

type CreateAgentRequest struct {
	Name   string                 `json:"name"`
	Role   models.AgentRole       `json:"role"`
	Model  string                 `json:"model,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

type CreateRepoRequest struct {
	Name          string                 `json:"name"`
	LocalPath     string                 `json:"local_path"`
	DefaultBranch string                 `json:"default_branch,omitempty"`
	Config        map[string]interface{} `json:"config,omitempty"`
}

type AddConventionRequest struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

type CreateTaskRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Priority    models.TaskPriority    `json:"priority,omitempty"`
	DRIID       *string                `json:"dri_id,omitempty"`
	AssigneeID  *string                `json:"assignee_id,omitempty"`
	DependsOn   []int64                `json:"depends_on,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type CreateTasksBatchRequest struct {
	Tasks []service.TaskDraft `json:"tasks"`
}

type UpdateTaskRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *models.TaskPriority   `json:"priority,omitempty"`
	DRIID       *string                `json:"dri_id,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type ChangeTaskStatusRequest struct {
	Status  models.TaskStatus `json:"status"`
	ActorID string            `json:"actor_id,omitempty"`
}

type AssignTaskRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type SaveContextRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AddTaskCommentRequest struct {
	AuthorID string `json:"author_id,omitempty"`
	Body     string `json:"body"`
}

type SendMessageRequest struct {
	SenderID      string           `json:"sender_id"`
	SenderType    models.ActorType `json:"sender_type,omitempty"`
	RecipientID   string           `json:"recipient_id"`
	RecipientType models.ActorType `json:"recipient_type,omitempty"`
	TaskID        *int64           `json:"task_id,omitempty"`
	Content       string           `json:"content"`
}

type StartSessionRequest struct {
	AgentID string `json:"agent_id"`
	TaskID  *int64 `json:"task_id,omitempty"`
	Model   string `json:"model,omitempty"`
}

type RecordUsageRequest struct {
	TokensIn   int64 `json:"tokens_in"`
	TokensOut  int64 `json:"tokens_out"`
	CacheRead  int64 `json:"cache_read,omitempty"`
	CacheWrite int64 `json:"cache_write,omitempty"`
}

type EndSessionRequest struct {
	Error *string `json:"error,omitempty"`
}

type RespondRequest struct {
	Response    string `json:"response"`
	RespondedBy string `json:"responded_by,omitempty"`
}

type RequestReviewRequest struct {
	ReviewerID   *string          `json:"reviewer_id,omitempty"`
	ReviewerType models.ActorType `json:"reviewer_type,omitempty"`
}

type AddReviewCommentRequest struct {
	AuthorID   string           `json:"author_id"`
	AuthorType models.ActorType `json:"author_type,omitempty"`
	Content    string           `json:"content"`
	FilePath   *string          `json:"file_path,omitempty"`
	LineNumber *int             `json:"line_number,omitempty"`
}

type SubmitVerdictRequest struct {
	Verdict      models.Verdict   `json:"verdict"`
	Summary      *string          `json:"summary,omitempty"`
	ReviewerID   *string          `json:"reviewer_id,omitempty"`
	ReviewerType models.ActorType `json:"reviewer_type,omitempty"`
}

type ApproveTaskRequest struct {
	ActorID string `json:"actor_id,omitempty"`
}

type QueueMergeRequest struct {
	RepoID   string               `json:"repo_id"`
	Strategy models.MergeStrategy `json:"strategy,omitempty"`
}

type PushBranchRequest struct {
	RepoID string `json:"repo_id"`
	Force  bool   `json:"force,omitempty"`
}

type CreatePRRequest struct {
	RepoID string `json:"repo_id,omitempty"`
}

type RunAgentRequest struct {
	TaskID  *int64 `json:"task_id,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
	Adapter string `json:"adapter,omitempty"`
}
