package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/pkg/client"
)

// Poll cadences for the blocking tools. Tests shorten them.
var (
	humanPollInterval      = 5 * time.Second
	completionPollInterval = 5 * time.Second
)

func registerTools(s *server.MCPServer, api *client.Client, id Identity, log *logger.Logger) {
	// Inbox and feedback
	s.AddTool(
		mcp.NewTool("get_inbox",
			mcp.WithDescription("Read your unprocessed messages: review feedback, questions from other agents, "+
				"notes from humans. Returned messages are acknowledged, so act on what you read."),
			mcp.WithString("agent_id",
				mcp.Description("Agent whose inbox to read. Defaults to your own agent id."),
			),
			mcp.WithBoolean("include_processed",
				mcp.Description("Also return messages that were already acknowledged."),
			),
		),
		getInboxHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("get_review_feedback",
			mcp.WithDescription("Get the latest review of a task, including the verdict, summary, and every comment."),
			mcp.WithNumber("task_id",
				mcp.Description("Task to look up. Defaults to your current task."),
			),
		),
		getReviewFeedbackHandler(api, id, log),
	)

	// Task lifecycle
	s.AddTool(
		mcp.NewTool("change_task_status",
			mcp.WithDescription("Move a task through its lifecycle (todo, in_progress, in_review, in_approval, "+
				"merging, done, cancelled). Move your task to in_review when your work is ready."),
			mcp.WithNumber("task_id",
				mcp.Description("Task to move. Defaults to your current task."),
			),
			mcp.WithString("status",
				mcp.Required(),
				mcp.Description("The target status."),
			),
			mcp.WithString("actor_id",
				mcp.Description("Who is making the change. Defaults to your agent id."),
			),
		),
		changeTaskStatusHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("ask_human",
			mcp.WithDescription("Ask a human a question and, by default, BLOCK until they answer. Use it when "+
				"you need a decision you cannot make yourself. Returns the human's answer."),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("The question to ask."),
			),
			mcp.WithString("kind",
				mcp.Description("question, approval, or review. Defaults to question."),
			),
			mcp.WithArray("options",
				mcp.Description("Optional multiple-choice answers to offer."),
			),
			mcp.WithNumber("task_id",
				mcp.Description("Task the question is about. Defaults to your current task."),
			),
			mcp.WithNumber("timeout_minutes",
				mcp.Description("How long the request stays open before it expires server-side."),
			),
			mcp.WithBoolean("wait",
				mcp.Description("Block until resolved. Defaults to true; pass false to fire and forget."),
			),
			mcp.WithString("team_id",
				mcp.Description("Defaults to your team."),
			),
			mcp.WithString("agent_id",
				mcp.Description("Defaults to your agent id."),
			),
		),
		askHumanHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a message to another agent or a human on your team. It lands in their inbox "+
				"and wakes them if they are idle."),
			mcp.WithString("recipient_id",
				mcp.Required(),
				mcp.Description("Agent or user id to send to."),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("The message text."),
			),
			mcp.WithString("recipient_type",
				mcp.Description("agent or user. Defaults to agent."),
			),
			mcp.WithNumber("task_id",
				mcp.Description("Task the message is about. Defaults to your current task."),
			),
			mcp.WithString("team_id",
				mcp.Description("Defaults to your team."),
			),
			mcp.WithString("sender_id",
				mcp.Description("Defaults to your agent id."),
			),
		),
		sendMessageHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("add_task_comment",
			mcp.WithDescription("Append a note to the task's event log. Use it to record progress or decisions "+
				"without messaging anyone."),
			mcp.WithNumber("task_id",
				mcp.Description("Defaults to your current task."),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("The comment text."),
			),
		),
		addTaskCommentHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("save_context",
			mcp.WithDescription("Save a discovery (root cause, key files, decisions) under a short key. Saved "+
				"context is injected into future runs on this task, so findings survive restarts."),
			mcp.WithNumber("task_id",
				mcp.Description("Defaults to your current task."),
			),
			mcp.WithString("key",
				mcp.Required(),
				mcp.Description("Short identifier like root_cause or key_files."),
			),
			mcp.WithString("value",
				mcp.Required(),
				mcp.Description("What you found."),
			),
		),
		saveContextHandler(api, id, log),
	)

	// Orchestration
	s.AddTool(
		mcp.NewTool("list_team_agents",
			mcp.WithDescription("List the agents on a team with their roles and current status (idle/working)."),
			mcp.WithString("team_id",
				mcp.Description("Defaults to your team."),
			),
		),
		listTeamAgentsHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("create_tasks_batch",
			mcp.WithDescription("Create several tasks at once, atomically. Entries may depend on earlier entries "+
				"via depends_on_indices (0-based positions in this batch); dependent tasks cannot start until "+
				"their dependencies are done."),
			mcp.WithArray("tasks",
				mcp.Required(),
				mcp.Description("Task objects: {title, description?, priority?, assignee_id?, repo_ids?, tags?, "+
					"depends_on_indices?}."),
			),
			mcp.WithString("team_id",
				mcp.Description("Defaults to your team."),
			),
		),
		createTasksBatchHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("assign_task",
			mcp.WithDescription("Assign a task to an agent. The agent picks it up on its next turn."),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("Task to assign."),
			),
			mcp.WithString("assignee_id",
				mcp.Required(),
				mcp.Description("Agent to assign it to."),
			),
		),
		assignTaskHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("wait_for_task_completion",
			mcp.WithDescription("BLOCK until a task reaches in_review, done, or cancelled. Use it to wait for "+
				"sub-tasks you delegated."),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("Task to wait on."),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Give up after this long. Defaults to 3600."),
			),
		),
		waitForTaskCompletionHandler(api, id, log),
	)

	// Task inspection
	s.AddTool(
		mcp.NewTool("get_task",
			mcp.WithDescription("Get a task's current state: status, assignee, branch, dependencies."),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("Task to look up."),
			),
		),
		getTaskHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("get_task_events",
			mcp.WithDescription("Read a task's audit trail: status changes, comments, reviews, merges."),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description("Task to look up."),
			),
			mcp.WithNumber("limit",
				mcp.Description("Most events to return. Defaults to 50."),
			),
		),
		getTaskEventsHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List a team's tasks, optionally filtered by status or assignee."),
			mcp.WithString("team_id",
				mcp.Description("Defaults to your team."),
			),
			mcp.WithString("status",
				mcp.Description("Only tasks in this status."),
			),
			mcp.WithString("assignee_id",
				mcp.Description("Only tasks assigned to this agent."),
			),
		),
		listTasksHandler(api, id, log),
	)

	// Code review
	s.AddTool(
		mcp.NewTool("get_task_diff",
			mcp.WithDescription("Get the task branch's diff against the repository default branch, as unified diff text."),
			mcp.WithNumber("task_id",
				mcp.Description("Defaults to your current task."),
			),
			mcp.WithString("repo_id",
				mcp.Description("Repository to diff. Defaults to the task's first linked repo."),
			),
		),
		getTaskDiffHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("get_changed_files",
			mcp.WithDescription("List the files the task branch changed, with add/delete counts."),
			mcp.WithNumber("task_id",
				mcp.Description("Defaults to your current task."),
			),
			mcp.WithString("repo_id",
				mcp.Description("Defaults to the task's first linked repo."),
			),
		),
		getChangedFilesHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("read_file",
			mcp.WithDescription("Read one file from the repository at the task's branch. Use it to see changed "+
				"files in full context."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("File path inside the repository."),
			),
			mcp.WithNumber("task_id",
				mcp.Description("Supplies the branch to read at. Defaults to your current task."),
			),
			mcp.WithString("repo_id",
				mcp.Description("Defaults to the task's first linked repo."),
			),
		),
		readFileHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("add_review_comment",
			mcp.WithDescription("Leave a comment on a review, optionally anchored to a file and line. Be specific "+
				"and actionable."),
			mcp.WithString("review_id",
				mcp.Required(),
				mcp.Description("Review to comment on (from your inbox message)."),
			),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("The comment."),
			),
			mcp.WithString("file_path",
				mcp.Description("File the comment is about."),
			),
			mcp.WithNumber("line_number",
				mcp.Description("Line the comment is about."),
			),
			mcp.WithString("author_id",
				mcp.Description("Defaults to your agent id."),
			),
			mcp.WithString("author_type",
				mcp.Description("agent or user. Defaults to agent."),
			),
		),
		addReviewCommentHandler(api, id, log),
	)

	s.AddTool(
		mcp.NewTool("submit_review_verdict",
			mcp.WithDescription("Resolve a review with approve, request_changes, or reject. Approval sends the "+
				"task to the human approval gate; request_changes returns it to the engineer with your comments."),
			mcp.WithString("review_id",
				mcp.Required(),
				mcp.Description("Review to resolve."),
			),
			mcp.WithString("verdict",
				mcp.Required(),
				mcp.Description("approve, request_changes, or reject."),
			),
			mcp.WithString("summary",
				mcp.Description("One-line summary of the review."),
			),
			mcp.WithString("reviewer_id",
				mcp.Description("Defaults to your agent id."),
			),
			mcp.WithString("reviewer_type",
				mcp.Description("agent or user. Defaults to agent."),
			),
		),
		submitReviewVerdictHandler(api, id, log),
	)

	log.Info("registered MCP tools", zap.Int("count", 19))
}

// jsonResult renders an API value as indented JSON tool output.
func jsonResult(v interface{}) *mcp.CallToolResult {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(formatted))
}

// stringArg reads a string argument, falling back to the injected
// identity value.
func stringArg(req mcp.CallToolRequest, key, fallback string) string {
	if v := req.GetString(key, ""); v != "" {
		return v
	}
	return fallback
}

// taskIDArg resolves task_id for tools that default to the current task.
func taskIDArg(req mcp.CallToolRequest, id Identity) (int64, error) {
	if v := req.GetInt("task_id", 0); v != 0 {
		return int64(v), nil
	}
	if id.TaskID != nil {
		return *id.TaskID, nil
	}
	return 0, fmt.Errorf("task_id is required when running without a task")
}

// optTaskID is taskIDArg for tools where the task is genuinely optional.
func optTaskID(req mcp.CallToolRequest, id Identity) *int64 {
	if v := req.GetInt("task_id", 0); v != 0 {
		n := int64(v)
		return &n
	}
	return id.TaskID
}

// stringSliceArg decodes an array argument of strings, nil when absent.
func stringSliceArg(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	var out []string
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getInboxHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID := stringArg(req, "agent_id", id.AgentID)
		if agentID == "" {
			return mcp.NewToolResultError("agent_id is required"), nil
		}
		all := req.GetBool("include_processed", false)

		messages, err := api.Inbox(ctx, agentID, all, 0)
		if err != nil {
			log.Error("failed to fetch inbox", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch inbox: %v", err)), nil
		}

		// Acknowledge what we hand over so the dispatcher stops counting
		// these messages as pending work for the agent.
		if !all {
			for _, msg := range messages {
				if err := api.MarkMessageProcessed(ctx, msg.ID); err != nil {
					log.Warn("failed to mark message processed",
						zap.String("message_id", msg.ID), zap.Error(err))
				}
			}
		}

		if len(messages) == 0 {
			return mcp.NewToolResultText("Inbox is empty."), nil
		}
		return jsonResult(messages), nil
	}
}

func getReviewFeedbackHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		reviews, err := api.ListReviews(ctx, taskID)
		if err != nil {
			log.Error("failed to fetch reviews", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch reviews: %v", err)), nil
		}
		if len(reviews) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No reviews for task %d yet.", taskID)), nil
		}

		latest := reviews[0]
		for _, r := range reviews[1:] {
			if r.Attempt > latest.Attempt {
				latest = r
			}
		}
		return jsonResult(latest), nil
	}
}

func changeTaskStatusHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := req.RequireString("status")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := api.ChangeTaskStatus(ctx, taskID, status, stringArg(req, "actor_id", id.AgentID))
		if err != nil {
			log.Error("failed to change task status",
				zap.Int64("task_id", taskID), zap.String("status", status), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to change status: %v", err)), nil
		}
		return jsonResult(task), nil
	}
}

func askHumanHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		teamID := stringArg(req, "team_id", id.TeamID)
		agentID := stringArg(req, "agent_id", id.AgentID)
		if teamID == "" || agentID == "" {
			return mcp.NewToolResultError("team_id and agent_id are required"), nil
		}
		options, err := stringSliceArg(req, "options")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		timeoutMinutes := req.GetInt("timeout_minutes", 0)

		hr, err := api.CreateHumanRequest(ctx, client.CreateHumanRequestInput{
			TeamID:         teamID,
			AgentID:        agentID,
			TaskID:         optTaskID(req, id),
			Kind:           req.GetString("kind", "question"),
			Question:       question,
			Options:        options,
			TimeoutMinutes: timeoutMinutes,
		})
		if err != nil {
			log.Error("failed to create human request", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to ask: %v", err)), nil
		}

		if !req.GetBool("wait", true) {
			return jsonResult(hr), nil
		}

		waitCtx := ctx
		if timeoutMinutes > 0 {
			// One extra poll period past the server-side expiry, so the
			// outcome reads "expired" rather than a local timeout.
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx,
				time.Duration(timeoutMinutes)*time.Minute+humanPollInterval)
			defer cancel()
		}

		log.Debug("waiting for human response", zap.String("request_id", hr.ID))
		resolved, err := api.AwaitHumanResponse(waitCtx, hr.ID, humanPollInterval)
		if err != nil {
			if waitCtx.Err() != nil {
				return mcp.NewToolResultError(fmt.Sprintf(
					"Timed out waiting for a human response to request %s. Proceed with your best judgment.", hr.ID)), nil
			}
			log.Error("failed waiting for human response", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed waiting for response: %v", err)), nil
		}

		switch resolved.Status {
		case client.RequestResolved:
			answer := ""
			if resolved.Response != nil {
				answer = *resolved.Response
			}
			return mcp.NewToolResultText("Human response: " + answer), nil
		case client.RequestExpired:
			return mcp.NewToolResultError(
				"The request expired before a human responded. Proceed with your best judgment."), nil
		default:
			return jsonResult(resolved), nil
		}
	}
}

func sendMessageHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		recipientID, err := req.RequireString("recipient_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body, err := req.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		teamID := stringArg(req, "team_id", id.TeamID)
		if teamID == "" {
			return mcp.NewToolResultError("team_id is required"), nil
		}

		msg, err := api.SendMessage(ctx, teamID, client.SendMessageRequest{
			SenderID:      stringArg(req, "sender_id", id.AgentID),
			SenderType:    client.ActorAgent,
			RecipientID:   recipientID,
			RecipientType: req.GetString("recipient_type", client.ActorAgent),
			TaskID:        optTaskID(req, id),
			Content:       body,
		})
		if err != nil {
			log.Error("failed to send message", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
		}
		return jsonResult(msg), nil
	}
}

func addTaskCommentHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := req.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		event, err := api.AddTaskComment(ctx, taskID, id.AgentID, body)
		if err != nil {
			log.Error("failed to add comment", zap.Int64("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to add comment: %v", err)), nil
		}
		return jsonResult(event), nil
	}
}

func saveContextHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := api.SaveTaskContext(ctx, taskID, key, value); err != nil {
			log.Error("failed to save context", zap.Int64("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to save context: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Saved context %q on task %d.", key, taskID)), nil
	}
}

func listTeamAgentsHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		teamID := stringArg(req, "team_id", id.TeamID)
		if teamID == "" {
			return mcp.NewToolResultError("team_id is required"), nil
		}

		agents, err := api.ListAgents(ctx, teamID)
		if err != nil {
			log.Error("failed to list agents", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list agents: %v", err)), nil
		}
		return jsonResult(agents), nil
	}
}

func createTasksBatchHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		teamID := stringArg(req, "team_id", id.TeamID)
		if teamID == "" {
			return mcp.NewToolResultError("team_id is required"), nil
		}
		raw, ok := req.GetArguments()["tasks"]
		if !ok || raw == nil {
			return mcp.NewToolResultError("tasks is required"), nil
		}

		encoded, err := json.Marshal(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tasks: %v", err)), nil
		}
		var drafts []client.TaskDraft
		if err := json.Unmarshal(encoded, &drafts); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tasks: %v", err)), nil
		}

		created, err := api.CreateTasksBatch(ctx, teamID, drafts)
		if err != nil {
			log.Error("failed to create batch", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create tasks: %v", err)), nil
		}
		return jsonResult(created), nil
	}
}

func assignTaskHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		assigneeID, err := req.RequireString("assignee_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := api.AssignTask(ctx, int64(taskID), assigneeID)
		if err != nil {
			log.Error("failed to assign task",
				zap.Int("task_id", taskID), zap.String("assignee_id", assigneeID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to assign task: %v", err)), nil
		}
		return jsonResult(task), nil
	}
}

func waitForTaskCompletionHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		timeout := req.GetInt("timeout_seconds", 3600)

		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		log.Debug("waiting for task completion", zap.Int("task_id", taskID))
		ticker := time.NewTicker(completionPollInterval)
		defer ticker.Stop()

		for {
			task, err := api.GetTask(waitCtx, int64(taskID))
			if err != nil {
				if waitCtx.Err() != nil {
					return mcp.NewToolResultError(fmt.Sprintf(
						"Timed out after %ds waiting for task %d.", timeout, taskID)), nil
				}
				log.Error("failed to poll task", zap.Int("task_id", taskID), zap.Error(err))
				return mcp.NewToolResultError(fmt.Sprintf("Failed to poll task: %v", err)), nil
			}

			switch task.Status {
			case client.TaskInReview, client.TaskDone, client.TaskCancelled:
				return jsonResult(task), nil
			}

			select {
			case <-waitCtx.Done():
				return mcp.NewToolResultError(fmt.Sprintf(
					"Timed out after %ds; task %d is still %s.", timeout, taskID, task.Status)), nil
			case <-ticker.C:
			}
		}
	}
}

func getTaskHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := api.GetTask(ctx, int64(taskID))
		if err != nil {
			log.Error("failed to fetch task", zap.Int("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch task: %v", err)), nil
		}
		return jsonResult(task), nil
	}
}

func getTaskEventsHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		events, err := api.TaskEvents(ctx, int64(taskID), 0, req.GetInt("limit", 50))
		if err != nil {
			log.Error("failed to fetch events", zap.Int("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch events: %v", err)), nil
		}
		return jsonResult(events), nil
	}
}

func listTasksHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		teamID := stringArg(req, "team_id", id.TeamID)
		if teamID == "" {
			return mcp.NewToolResultError("team_id is required"), nil
		}

		tasks, err := api.ListTasks(ctx, teamID, client.TaskFilter{
			Status:     req.GetString("status", ""),
			AssigneeID: req.GetString("assignee_id", ""),
		})
		if err != nil {
			log.Error("failed to list tasks", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
		}
		return jsonResult(tasks), nil
	}
}

func getTaskDiffHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		diff, err := api.TaskDiff(ctx, taskID, req.GetString("repo_id", ""))
		if err != nil {
			log.Error("failed to fetch diff", zap.Int64("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch diff: %v", err)), nil
		}
		if diff.Diff == "" {
			return mcp.NewToolResultText(fmt.Sprintf("No changes on branch %s.", diff.Branch)), nil
		}
		return mcp.NewToolResultText(diff.Diff), nil
	}
}

func getChangedFilesHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		files, err := api.ChangedFiles(ctx, taskID, req.GetString("repo_id", ""))
		if err != nil {
			log.Error("failed to fetch changed files", zap.Int64("task_id", taskID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch changed files: %v", err)), nil
		}
		return jsonResult(files), nil
	}
}

func readFileHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := taskIDArg(req, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := api.GetTask(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch task: %v", err)), nil
		}
		repoID := req.GetString("repo_id", "")
		if repoID == "" {
			if len(task.RepoIDs) == 0 {
				return mcp.NewToolResultError(fmt.Sprintf(
					"Task %d has no linked repositories; pass repo_id.", taskID)), nil
			}
			repoID = task.RepoIDs[0]
		}

		file, err := api.RepoFile(ctx, repoID, path, task.Branch)
		if err != nil {
			log.Error("failed to read file",
				zap.String("repo_id", repoID), zap.String("path", path), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read %s: %v", path, err)), nil
		}
		return mcp.NewToolResultText(file.Content), nil
	}
}

func addReviewCommentHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reviewID, err := req.RequireString("review_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		input := client.ReviewCommentInput{
			AuthorID:   stringArg(req, "author_id", id.AgentID),
			AuthorType: req.GetString("author_type", client.ActorAgent),
			Content:    content,
		}
		if fp := req.GetString("file_path", ""); fp != "" {
			input.FilePath = &fp
		}
		if ln := req.GetInt("line_number", 0); ln != 0 {
			input.LineNumber = &ln
		}

		comment, err := api.AddReviewComment(ctx, reviewID, input)
		if err != nil {
			log.Error("failed to add review comment", zap.String("review_id", reviewID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to add comment: %v", err)), nil
		}
		return jsonResult(comment), nil
	}
}

func submitReviewVerdictHandler(api *client.Client, id Identity, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reviewID, err := req.RequireString("review_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		verdict, err := req.RequireString("verdict")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		input := client.VerdictInput{
			Verdict:      verdict,
			ReviewerType: req.GetString("reviewer_type", client.ActorAgent),
		}
		if s := req.GetString("summary", ""); s != "" {
			input.Summary = &s
		}
		if rid := stringArg(req, "reviewer_id", id.AgentID); rid != "" {
			input.ReviewerID = &rid
		}

		review, err := api.SubmitVerdict(ctx, reviewID, input)
		if err != nil {
			log.Error("failed to submit verdict", zap.String("review_id", reviewID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("Failed to submit verdict: %v", err)), nil
		}
		return jsonResult(review), nil
	}
}
