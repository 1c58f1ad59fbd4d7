// Package events provides event types, stream ids, and bus subjects for the
// openclaw event system.
package events

import (
	"fmt"
	"strconv"
)

// Event types for tasks
const (
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskStatusChanged = "task.status_changed"
	TaskAssigned      = "task.assigned"
	TaskCommentAdded  = "task.comment_added"
	TaskContextSaved  = "task.context_saved"
)

// Event types for sessions and budgets
const (
	SessionStarted       = "session.started"
	SessionUsageRecorded = "session.usage_recorded"
	SessionEnded         = "session.ended"
	AgentBudgetExceeded  = "agent.budget_exceeded"
)

// Event types for agent runs
const (
	AgentRunStarted    = "agent.run.started"
	AgentRunCompleted  = "agent.run.completed"
	AgentRunFailed     = "agent.run.failed"
	AgentRunTimeout    = "agent.run.timeout"
	AgentStatusChanged = "agent.status_changed"
)

// Event types for human requests
const (
	HumanRequestCreated  = "human_request.created"
	HumanRequestResolved = "human_request.resolved"
	HumanRequestExpired  = "human_request.expired"
)

// Event types for reviews and pull requests
const (
	ReviewCreated      = "review.created"
	ReviewCommentAdded = "review.comment_added"
	ReviewVerdict      = "review.verdict"
	ReviewFeedbackSent = "review.feedback_sent"
	PRCreated          = "pr.created"
)

// Event types for merge jobs
const (
	MergeQueued    = "merge.queued"
	MergeStarted   = "merge.started"
	MergeCompleted = "merge.completed"
	MergeFailed    = "merge.failed"
)

// Event types for webhook intake
const (
	WebhookReceived = "webhook.received"
)

// Notification subjects consumed by the dispatcher. Payloads are the event
// Data maps described in the handlers that publish them.
const (
	SubjectNewMessage           = "openclaw.notify.new_message"
	SubjectHumanRequestResolved = "openclaw.notify.human_request_resolved"
	SubjectTaskStatusChanged    = "openclaw.notify.task_status_changed"
)

// teamFeedBase is the base subject of the team-scoped live event feed.
const teamFeedBase = "openclaw.events"

// TaskStream returns the event-log stream id for a task.
func TaskStream(taskID int64) string {
	return "task:" + strconv.FormatInt(taskID, 10)
}

// AgentStream returns the event-log stream id for an agent.
func AgentStream(agentID string) string {
	return "agent:" + agentID
}

// WebhookStream returns the event-log stream id for a webhook delivery.
func WebhookStream(deliveryID string) string {
	return "webhook:" + deliveryID
}

// BuildTeamFeedSubject creates the live feed subject for a specific team.
func BuildTeamFeedSubject(teamID string) string {
	return fmt.Sprintf("%s.%s", teamFeedBase, teamID)
}

// BuildTeamFeedWildcardSubject creates a wildcard subscription for all team feeds.
func BuildTeamFeedWildcardSubject() string {
	return teamFeedBase + ".*"
}
