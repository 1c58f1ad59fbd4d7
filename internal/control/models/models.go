package models

import (
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusInApproval TaskStatus = "in_approval"
	TaskStatusMerging    TaskStatus = "merging"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority orders tasks for humans; the platform itself never schedules by it.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// AgentRole determines which prompt template an agent runs with.
type AgentRole string

const (
	RoleManager  AgentRole = "manager"
	RoleEngineer AgentRole = "engineer"
	RoleReviewer AgentRole = "reviewer"
)

// AgentStatus tracks whether an agent can accept a dispatch.
// Only the dispatcher and the runner mutate it.
type AgentStatus string

const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusWorking AgentStatus = "working"
	AgentStatusPaused  AgentStatus = "paused"
)

// ActorType distinguishes humans from agents on messages, reviews and comments.
type ActorType string

const (
	ActorAgent ActorType = "agent"
	ActorUser  ActorType = "user"
)

// RequestKind classifies a human-in-the-loop request.
type RequestKind string

const (
	RequestKindQuestion RequestKind = "question"
	RequestKindApproval RequestKind = "approval"
	RequestKindReview   RequestKind = "review"
)

// RequestStatus is the lifecycle state of a human request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusResolved RequestStatus = "resolved"
	RequestStatusExpired  RequestStatus = "expired"
)

// Verdict is the outcome of a review attempt.
type Verdict string

const (
	VerdictApprove        Verdict = "approve"
	VerdictRequestChanges Verdict = "request_changes"
	VerdictReject         Verdict = "reject"
)

// ValidVerdict reports whether v is one of the known verdicts.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictApprove, VerdictRequestChanges, VerdictReject:
		return true
	}
	return false
}

// MergeStatus is the lifecycle state of a merge job.
type MergeStatus string

const (
	MergeStatusQueued  MergeStatus = "queued"
	MergeStatusRunning MergeStatus = "running"
	MergeStatusSuccess MergeStatus = "success"
	MergeStatusFailed  MergeStatus = "failed"
)

// MergeStrategy selects how a task branch lands on the default branch.
type MergeStrategy string

const (
	StrategyRebase MergeStrategy = "rebase"
	StrategyMerge  MergeStrategy = "merge"
	StrategySquash MergeStrategy = "squash"
)

// ValidStrategy reports whether s is one of the known merge strategies.
func ValidStrategy(s MergeStrategy) bool {
	switch s {
	case StrategyRebase, StrategyMerge, StrategySquash:
		return true
	}
	return false
}

// Organization is the top-level tenant.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Team groups agents and repositories under an organization.
// Config is a free-form bag; the recognised key "conventions" holds an
// ordered list of {key, content, active} objects.
type Team struct {
	ID        string                 `json:"id" db:"id"`
	OrgID     string                 `json:"org_id" db:"org_id"`
	Name      string                 `json:"name" db:"name"`
	Slug      string                 `json:"slug" db:"slug"`
	Config    map[string]interface{} `json:"config,omitempty"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Convention is one team coding standard rendered into agent prompts.
type Convention struct {
	Key     string `json:"key"`
	Content string `json:"content"`
	Active  bool   `json:"active"`
}

// Conventions extracts the active, ordered conventions from a team config.
func (t *Team) Conventions() []Convention {
	if t.Config == nil {
		return nil
	}
	raw, ok := t.Config["conventions"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]Convention, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		c := Convention{Active: true}
		if k, ok := m["key"].(string); ok {
			c.Key = k
		}
		if v, ok := m["content"].(string); ok {
			c.Content = v
		}
		if a, ok := m["active"].(bool); ok {
			c.Active = a
		}
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// Agent is an autonomous worker belonging to a team.
// Config is a free-form bag; recognised keys: adapter, timeout_seconds,
// max_output_per_turn, daily_cost_limit_usd, task_cost_limit_usd.
type Agent struct {
	ID              string                 `json:"id" db:"id"`
	TeamID          string                 `json:"team_id" db:"team_id"`
	Name            string                 `json:"name" db:"name"`
	Role            AgentRole              `json:"role" db:"role"`
	Model           string                 `json:"model" db:"model"`
	Status          AgentStatus            `json:"status" db:"status"`
	Config          map[string]interface{} `json:"config,omitempty"`
	StatusChangedAt time.Time              `json:"status_changed_at" db:"status_changed_at"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

// ConfigString returns a string value from the agent config bag.
func (a *Agent) ConfigString(key string) (string, bool) {
	if a.Config == nil {
		return "", false
	}
	v, ok := a.Config[key].(string)
	return v, ok
}

// ConfigFloat returns a numeric value from the agent config bag.
// JSON decoding yields float64 for all numbers.
func (a *Agent) ConfigFloat(key string) (float64, bool) {
	if a.Config == nil {
		return 0, false
	}
	switch v := a.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Repository is a git checkout the platform operates on.
type Repository struct {
	ID            string                 `json:"id" db:"id"`
	TeamID        string                 `json:"team_id" db:"team_id"`
	Name          string                 `json:"name" db:"name"`
	LocalPath     string                 `json:"local_path" db:"local_path"`
	DefaultBranch string                 `json:"default_branch" db:"default_branch"`
	Config        map[string]interface{} `json:"config,omitempty"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

// Task is the unit of work agents are dispatched against.
// Metadata is a free-form bag with reserved subkeys "context"
// (map[string]string), "pr_url" and "pr_number".
type Task struct {
	ID          int64                  `json:"id" db:"id"`
	TeamID      string                 `json:"team_id" db:"team_id"`
	Title       string                 `json:"title" db:"title"`
	Description string                 `json:"description" db:"description"`
	Status      TaskStatus             `json:"status" db:"status"`
	Priority    TaskPriority           `json:"priority" db:"priority"`
	DRIID       *string                `json:"dri_id,omitempty" db:"dri_id"`
	AssigneeID  *string                `json:"assignee_id,omitempty" db:"assignee_id"`
	DependsOn   []int64                `json:"depends_on"`
	RepoIDs     []string               `json:"repo_ids"`
	Tags        []string               `json:"tags"`
	Branch      string                 `json:"branch" db:"branch"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
}

// Context returns the saved context carryover map from task metadata.
func (t *Task) Context() map[string]string {
	if t.Metadata == nil {
		return nil
	}
	raw, ok := t.Metadata["context"].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Message is an actor→actor envelope. Unprocessed messages addressed to
// agents are what the dispatcher acts on.
type Message struct {
	ID            string     `json:"id" db:"id"`
	TeamID        string     `json:"team_id" db:"team_id"`
	SenderID      string     `json:"sender_id" db:"sender_id"`
	SenderType    ActorType  `json:"sender_type" db:"sender_type"`
	RecipientID   string     `json:"recipient_id" db:"recipient_id"`
	RecipientType ActorType  `json:"recipient_type" db:"recipient_type"`
	TaskID        *int64     `json:"task_id,omitempty" db:"task_id"`
	Content       string     `json:"content" db:"content"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	SeenAt        *time.Time `json:"seen_at,omitempty" db:"seen_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Event is one append-only record on a stream. Streams are keyed
// "task:<id>", "agent:<uuid>" or "webhook:<delivery-id>".
type Event struct {
	ID        int64                  `json:"id" db:"id"`
	StreamID  string                 `json:"stream_id" db:"stream_id"`
	Type      string                 `json:"type" db:"type"`
	Data      map[string]interface{} `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Session is one agent turn: tokens, cost and duration.
type Session struct {
	ID         string     `json:"id" db:"id"`
	AgentID    string     `json:"agent_id" db:"agent_id"`
	TaskID     *int64     `json:"task_id,omitempty" db:"task_id"`
	Model      string     `json:"model" db:"model"`
	TokensIn   int64      `json:"tokens_in" db:"tokens_in"`
	TokensOut  int64      `json:"tokens_out" db:"tokens_out"`
	CacheRead  int64      `json:"cache_read" db:"cache_read"`
	CacheWrite int64      `json:"cache_write" db:"cache_write"`
	CostUSD    float64    `json:"cost_usd" db:"cost_usd"`
	Error      *string    `json:"error,omitempty" db:"error"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// HumanRequest is an agent→human rendezvous point.
type HumanRequest struct {
	ID          string        `json:"id" db:"id"`
	TeamID      string        `json:"team_id" db:"team_id"`
	AgentID     string        `json:"agent_id" db:"agent_id"`
	TaskID      *int64        `json:"task_id,omitempty" db:"task_id"`
	Kind        RequestKind   `json:"kind" db:"kind"`
	Question    string        `json:"question" db:"question"`
	Options     []string      `json:"options"`
	Status      RequestStatus `json:"status" db:"status"`
	Response    *string       `json:"response,omitempty" db:"response"`
	RespondedBy *string       `json:"responded_by,omitempty" db:"responded_by"`
	TimeoutAt   *time.Time    `json:"timeout_at,omitempty" db:"timeout_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Review is one review attempt for a task. Attempt numbers are unique
// per task and assigned sequentially.
type Review struct {
	ID           string          `json:"id" db:"id"`
	TaskID       int64           `json:"task_id" db:"task_id"`
	Attempt      int             `json:"attempt" db:"attempt"`
	ReviewerID   *string         `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewerType ActorType       `json:"reviewer_type" db:"reviewer_type"`
	Verdict      *Verdict        `json:"verdict,omitempty" db:"verdict"`
	Summary      *string         `json:"summary,omitempty" db:"summary"`
	Comments     []ReviewComment `json:"comments"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ReviewComment is one inline or general note on a review.
type ReviewComment struct {
	ID         string    `json:"id" db:"id"`
	ReviewID   string    `json:"review_id" db:"review_id"`
	AuthorID   string    `json:"author_id" db:"author_id"`
	AuthorType ActorType `json:"author_type" db:"author_type"`
	FilePath   *string   `json:"file_path,omitempty" db:"file_path"`
	LineNumber *int      `json:"line_number,omitempty" db:"line_number"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MergeJob is one queued attempt to land a task branch.
type MergeJob struct {
	ID          string        `json:"id" db:"id"`
	TaskID      int64         `json:"task_id" db:"task_id"`
	RepoID      string        `json:"repo_id" db:"repo_id"`
	Status      MergeStatus   `json:"status" db:"status"`
	Strategy    MergeStrategy `json:"strategy" db:"strategy"`
	MergeCommit *string       `json:"merge_commit,omitempty" db:"merge_commit"`
	Error       *string       `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty" db:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
}
