package client

import "time"

// Enum values mirrored from the control-plane API. The client keeps them
// as plain strings so importers never reach into the server's internals.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskInReview   = "in_review"
	TaskInApproval = "in_approval"
	TaskMerging    = "merging"
	TaskDone       = "done"
	TaskCancelled  = "cancelled"

	AgentIdle    = "idle"
	AgentWorking = "working"
	AgentPaused  = "paused"

	ActorAgent = "agent"
	ActorUser  = "user"

	RequestPending  = "pending"
	RequestResolved = "resolved"
	RequestExpired  = "expired"

	VerdictApprove        = "approve"
	VerdictRequestChanges = "request_changes"
	VerdictReject         = "reject"
)

type Org struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type Team struct {
	ID        string                 `json:"id"`
	OrgID     string                 `json:"org_id"`
	Name      string                 `json:"name"`
	Slug      string                 `json:"slug"`
	Config    map[string]interface{} `json:"config,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Agent struct {
	ID              string                 `json:"id"`
	TeamID          string                 `json:"team_id"`
	Name            string                 `json:"name"`
	Role            string                 `json:"role"`
	Model           string                 `json:"model"`
	Status          string                 `json:"status"`
	Config          map[string]interface{} `json:"config,omitempty"`
	StatusChangedAt time.Time              `json:"status_changed_at"`
	CreatedAt       time.Time              `json:"created_at"`
}

type Repository struct {
	ID            string                 `json:"id"`
	TeamID        string                 `json:"team_id"`
	Name          string                 `json:"name"`
	LocalPath     string                 `json:"local_path"`
	DefaultBranch string                 `json:"default_branch"`
	Config        map[string]interface{} `json:"config,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

type Convention struct {
	Key     string `json:"key"`
	Content string `json:"content"`
	Active  bool   `json:"active"`
}

type Task struct {
	ID          int64                  `json:"id"`
	TeamID      string                 `json:"team_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Status      string                 `json:"status"`
	Priority    string                 `json:"priority"`
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

type Message struct {
	ID            string     `json:"id"`
	TeamID        string     `json:"team_id"`
	SenderID      string     `json:"sender_id"`
	SenderType    string     `json:"sender_type"`
	RecipientID   string     `json:"recipient_id"`
	RecipientType string     `json:"recipient_type"`
	TaskID        *int64     `json:"task_id,omitempty"`
	Content       string     `json:"content"`
	SeenAt        *time.Time `json:"seen_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Event struct {
	ID        int64                  `json:"id"`
	StreamID  string                 `json:"stream_id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Session struct {
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

type HumanRequest struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"`
	AgentID     string     `json:"agent_id"`
	TaskID      *int64     `json:"task_id,omitempty"`
	Kind        string     `json:"kind"`
	Question    string     `json:"question"`
	Options     []string   `json:"options,omitempty"`
	Status      string     `json:"status"`
	Response    *string    `json:"response,omitempty"`
	RespondedBy *string    `json:"responded_by,omitempty"`
	TimeoutAt   *time.Time `json:"timeout_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type ReviewComment struct {
	ID         string    `json:"id"`
	ReviewID   string    `json:"review_id"`
	AuthorID   string    `json:"author_id"`
	AuthorType string    `json:"author_type"`
	FilePath   *string   `json:"file_path,omitempty"`
	LineNumber *int      `json:"line_number,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type Review struct {
	ID           string          `json:"id"`
	TaskID       int64           `json:"task_id"`
	Attempt      int             `json:"attempt"`
	ReviewerID   *string         `json:"reviewer_id,omitempty"`
	ReviewerType string          `json:"reviewer_type"`
	Verdict      *string         `json:"verdict,omitempty"`
	Summary      *string         `json:"summary,omitempty"`
	Comments     []ReviewComment `json:"comments"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}

type MergeJob struct {
	ID          string     `json:"id"`
	TaskID      int64      `json:"task_id"`
	RepoID      string     `json:"repo_id"`
	Status      string     `json:"status"`
	Strategy    string     `json:"strategy"`
	MergeCommit *string    `json:"merge_commit,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// MergeStatus is the merge readiness view of a task.
type MergeStatus struct {
	TaskID        int64       `json:"task_id"`
	ReviewVerdict *string     `json:"review_verdict,omitempty"`
	ReviewAttempt int         `json:"review_attempt"`
	MergeJobs     []*MergeJob `json:"merge_jobs"`
	CanMerge      bool        `json:"can_merge"`
}

type ChangedFile struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type Diff struct {
	TaskID int64  `json:"task_id"`
	RepoID string `json:"repo_id"`
	Branch string `json:"branch"`
	Diff   string `json:"diff"`
}

type ChangedFiles struct {
	TaskID int64         `json:"task_id"`
	RepoID string        `json:"repo_id"`
	Branch string        `json:"branch"`
	Files  []ChangedFile `json:"files"`
	Total  int           `json:"total"`
}

type FileContent struct {
	RepoID  string `json:"repo_id"`
	Path    string `json:"path"`
	Ref     string `json:"ref"`
	Content string `json:"content"`
}

type PushResult struct {
	TaskID int64  `json:"task_id"`
	RepoID string `json:"repo_id"`
	Branch string `json:"branch"`
	Pushed bool   `json:"pushed"`
}

type PullRequest struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
}

// BudgetStatus is an agent's spend measured against its limits.
type BudgetStatus struct {
	WithinBudget  bool     `json:"within_budget"`
	DailySpentUSD float64  `json:"daily_spent_usd"`
	DailyLimitUSD float64  `json:"daily_limit_usd"`
	TaskSpentUSD  float64  `json:"task_spent_usd"`
	TaskLimitUSD  float64  `json:"task_limit_usd"`
	Violations    []string `json:"violations"`
}

// CostReport is a team cost summary over a period.
type CostReport struct {
	TeamID         string      `json:"team_id"`
	PeriodDays     int         `json:"period_days"`
	TotalCostUSD   float64     `json:"total_cost_usd"`
	TotalTokensIn  int64       `json:"total_tokens_in"`
	TotalTokensOut int64       `json:"total_tokens_out"`
	SessionCount   int         `json:"session_count"`
	PerAgent       []AgentCost `json:"per_agent"`
	PerModel       []ModelCost `json:"per_model"`
}

type AgentCost struct {
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name"`
	CostUSD   float64 `json:"cost_usd"`
	Sessions  int     `json:"sessions"`
}

type ModelCost struct {
	Model    string  `json:"model"`
	CostUSD  float64 `json:"cost_usd"`
	Sessions int     `json:"sessions"`
}

// RunStarted acknowledges a fire-and-forget agent run.
type RunStarted struct {
	AgentID string `json:"agent_id"`
	TeamID  string `json:"team_id"`
	TaskID  *int64 `json:"task_id,omitempty"`
	Adapter string `json:"adapter,omitempty"`
	Started bool   `json:"started"`
}

// Request bodies. Shapes match what the control-plane handlers bind.

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
	Role   string                 `json:"role"`
	Model  string                 `json:"model,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

type CreateRepoRequest struct {
	Name          string                 `json:"name"`
	LocalPath     string                 `json:"local_path"`
	DefaultBranch string                 `json:"default_branch,omitempty"`
	Config        map[string]interface{} `json:"config,omitempty"`
}

type CreateTaskRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	DRIID       *string                `json:"dri_id,omitempty"`
	AssigneeID  *string                `json:"assignee_id,omitempty"`
	DependsOn   []int64                `json:"depends_on,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// TaskDraft is one entry of a batch create. DependsOnIndices point at
// earlier drafts in the same batch and resolve to real task IDs server-side.
type TaskDraft struct {
	Title            string                 `json:"title"`
	Description      string                 `json:"description,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	AssigneeID       *string                `json:"assignee_id,omitempty"`
	DRIID            *string                `json:"dri_id,omitempty"`
	RepoIDs          []string               `json:"repo_ids,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	DependsOn        []int64                `json:"depends_on,omitempty"`
	DependsOnIndices []int                  `json:"depends_on_indices,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *string                `json:"priority,omitempty"`
	DRIID       *string                `json:"dri_id,omitempty"`
	RepoIDs     []string               `json:"repo_ids,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type SendMessageRequest struct {
	SenderID      string `json:"sender_id"`
	SenderType    string `json:"sender_type,omitempty"`
	RecipientID   string `json:"recipient_id"`
	RecipientType string `json:"recipient_type,omitempty"`
	TaskID        *int64 `json:"task_id,omitempty"`
	Content       string `json:"content"`
}

type StartSessionRequest struct {
	AgentID string `json:"agent_id"`
	TaskID  *int64 `json:"task_id,omitempty"`
	Model   string `json:"model,omitempty"`
}

type Usage struct {
	TokensIn   int64 `json:"tokens_in"`
	TokensOut  int64 `json:"tokens_out"`
	CacheRead  int64 `json:"cache_read,omitempty"`
	CacheWrite int64 `json:"cache_write,omitempty"`
}

type CreateHumanRequestInput struct {
	TeamID         string   `json:"team_id"`
	AgentID        string   `json:"agent_id"`
	TaskID         *int64   `json:"task_id,omitempty"`
	Kind           string   `json:"kind"`
	Question       string   `json:"question"`
	Options        []string `json:"options,omitempty"`
	TimeoutMinutes int      `json:"timeout_minutes,omitempty"`
}

type RequestReviewInput struct {
	ReviewerID   *string `json:"reviewer_id,omitempty"`
	ReviewerType string  `json:"reviewer_type,omitempty"`
}

type ReviewCommentInput struct {
	AuthorID   string  `json:"author_id"`
	AuthorType string  `json:"author_type,omitempty"`
	Content    string  `json:"content"`
	FilePath   *string `json:"file_path,omitempty"`
	LineNumber *int    `json:"line_number,omitempty"`
}

type VerdictInput struct {
	Verdict      string  `json:"verdict"`
	Summary      *string `json:"summary,omitempty"`
	ReviewerID   *string `json:"reviewer_id,omitempty"`
	ReviewerType string  `json:"reviewer_type,omitempty"`
}

type RunAgentInput struct {
	TaskID  *int64 `json:"task_id,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
	Adapter string `json:"adapter,omitempty"`
}
