package repository

import (
	"context"
	"time"

	"github.com/openclaw/openclaw/internal/control/models"
)

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status     models.TaskStatus
	AssigneeID string
	Limit      int
	Offset     int
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	AgentID string
	TaskID  int64
	Limit   int
}

// RequestFilter narrows ListHumanRequests.
type RequestFilter struct {
	Status  models.RequestStatus
	AgentID string
	TaskID  int64
	Limit   int
}

// PendingDispatch is one idle agent with unprocessed inbox messages,
// surfaced to the dispatcher's fallback poller.
type PendingDispatch struct {
	AgentID string `db:"agent_id"`
	TeamID  string `db:"team_id"`
}

// CostSummary aggregates session spend for a team over a window.
type CostSummary struct {
	TotalCostUSD   float64     `json:"total_cost_usd"`
	TotalTokensIn  int64       `json:"total_tokens_in"`
	TotalTokensOut int64       `json:"total_tokens_out"`
	SessionCount   int         `json:"session_count"`
	PerAgent       []AgentCost `json:"per_agent"`
	PerModel       []ModelCost `json:"per_model"`
}

// AgentCost is one agent's share of a cost summary.
type AgentCost struct {
	AgentID   string  `json:"agent_id" db:"agent_id"`
	AgentName string  `json:"agent_name" db:"agent_name"`
	CostUSD   float64 `json:"cost_usd" db:"cost_usd"`
	Sessions  int     `json:"sessions" db:"sessions"`
}

// ModelCost is one model's share of a cost summary.
type ModelCost struct {
	Model    string  `json:"model" db:"model"`
	CostUSD  float64 `json:"cost_usd" db:"cost_usd"`
	Sessions int     `json:"sessions" db:"sessions"`
}

// Store defines the row-level storage operations. The same set is available
// on the shared pools and inside a transaction via Repository.WithTx, so
// services compose multi-statement invariants (mutation + event append)
// without caring which they run on.
type Store interface {
	// Organization operations
	CreateOrg(ctx context.Context, org *models.Organization) error
	GetOrg(ctx context.Context, id string) (*models.Organization, error)

	// Team operations
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	UpdateTeamConfig(ctx context.Context, teamID string, config map[string]interface{}) error

	// Agent operations
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ListAgents(ctx context.Context, teamID string) ([]*models.Agent, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status models.AgentStatus) error
	ResetStuckAgents(ctx context.Context, cutoff time.Time) (int64, error)

	// Repository registrations
	CreateRepo(ctx context.Context, repo *models.Repository) error
	GetRepo(ctx context.Context, id string) (*models.Repository, error)
	ListRepos(ctx context.Context, teamID string) ([]*models.Repository, error)

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetTasksByIDs(ctx context.Context, ids []int64) ([]*models.Task, error)
	ListTasks(ctx context.Context, teamID string, filter TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	SetTaskBranch(ctx context.Context, id int64, branch string) error
	FindActiveTaskForAgent(ctx context.Context, agentID string) (*models.Task, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListInbox(ctx context.Context, recipientID string, unprocessedOnly bool, limit int) ([]*models.Message, error)
	MarkMessageProcessed(ctx context.Context, id string) error
	MarkMessageSeen(ctx context.Context, id string) error
	ListPendingDispatches(ctx context.Context, limit int) ([]PendingDispatch, error)

	// Event log
	AppendEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, streamID string, afterID int64, limit int) ([]*models.Event, error)
	StreamExists(ctx context.Context, streamID string) (bool, error)

	// Session operations
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error)
	AgentSpendSince(ctx context.Context, agentID string, since time.Time) (float64, error)
	TaskSpend(ctx context.Context, taskID int64) (float64, error)
	CostSummary(ctx context.Context, teamID string, since time.Time) (*CostSummary, error)

	// Human request operations
	CreateHumanRequest(ctx context.Context, req *models.HumanRequest) error
	GetHumanRequest(ctx context.Context, id string) (*models.HumanRequest, error)
	UpdateHumanRequest(ctx context.Context, req *models.HumanRequest) error
	ListHumanRequests(ctx context.Context, teamID string, filter RequestFilter) ([]*models.HumanRequest, error)
	ListExpiredPendingRequests(ctx context.Context, now time.Time) ([]*models.HumanRequest, error)

	// Review operations
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review) error
	ListReviews(ctx context.Context, taskID int64) ([]*models.Review, error)
	LatestReview(ctx context.Context, taskID int64) (*models.Review, error)
	MaxReviewAttempt(ctx context.Context, taskID int64) (int, error)
	CreateReviewComment(ctx context.Context, comment *models.ReviewComment) error

	// Merge job operations
	CreateMergeJob(ctx context.Context, job *models.MergeJob) error
	UpdateMergeJob(ctx context.Context, job *models.MergeJob) error
	ListMergeJobs(ctx context.Context, taskID int64) ([]*models.MergeJob, error)
	ClaimQueuedMergeJob(ctx context.Context) (*models.MergeJob, error)
}

// Repository is the full storage surface: the Store operations on the
// shared pools plus transactional composition and lifecycle.
type Repository interface {
	Store

	// WithTx runs fn inside a single transaction. The Store passed to fn
	// reads its own uncommitted writes; any error rolls everything back.
	WithTx(ctx context.Context, fn func(s Store) error) error

	Close() error
}
