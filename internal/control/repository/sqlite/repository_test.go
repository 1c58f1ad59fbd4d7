package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/db"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "control.db")

	pool, err := db.Open("sqlite", dbPath, "", 5000)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	repo, err := New(pool)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTeam(t *testing.T, repo *Repository) *models.Team {
	t.Helper()
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", Slug: "acme-" + t.Name()}
	if err := repo.CreateOrg(ctx, org); err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	team := &models.Team{OrgID: org.ID, Name: "Platform", Slug: "platform"}
	if err := repo.CreateTeam(ctx, team); err != nil {
		t.Fatalf("failed to create team: %v", err)
	}
	return team
}

func seedAgent(t *testing.T, repo *Repository, teamID, name string, role models.AgentRole) *models.Agent {
	t.Helper()
	agent := &models.Agent{TeamID: teamID, Name: name, Role: role, Model: "claude-sonnet-4-20250514"}
	if err := repo.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("failed to create agent %s: %v", name, err)
	}
	return agent
}

func TestOrgAndTeamLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	if err := repo.CreateOrg(ctx, org); err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	if org.ID == "" {
		t.Error("expected org ID to be set")
	}
	if org.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	retrieved, err := repo.GetOrg(ctx, org.ID)
	if err != nil {
		t.Fatalf("failed to get org: %v", err)
	}
	if retrieved.Slug != "acme" {
		t.Errorf("expected slug 'acme', got %s", retrieved.Slug)
	}

	team := &models.Team{
		OrgID: org.ID,
		Name:  "Platform",
		Slug:  "platform",
		Config: map[string]interface{}{
			"conventions": []interface{}{
				map[string]interface{}{"key": "style", "content": "use tabs", "active": true},
			},
		},
	}
	if err := repo.CreateTeam(ctx, team); err != nil {
		t.Fatalf("failed to create team: %v", err)
	}

	got, err := repo.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("failed to get team: %v", err)
	}
	conventions := got.Conventions()
	if len(conventions) != 1 || conventions[0].Key != "style" {
		t.Errorf("expected one 'style' convention, got %+v", conventions)
	}

	if err := repo.UpdateTeamConfig(ctx, team.ID, map[string]interface{}{"foo": "bar"}); err != nil {
		t.Fatalf("failed to update team config: %v", err)
	}
	got, _ = repo.GetTeam(ctx, team.ID)
	if got.Config["foo"] != "bar" {
		t.Errorf("expected config foo=bar, got %v", got.Config)
	}
}

func TestDuplicateOrgSlug(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateOrg(ctx, &models.Organization{Name: "First", Slug: "same"}); err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	err := repo.CreateOrg(ctx, &models.Organization{Name: "Second", Slug: "same"})
	if !errors.Is(err, models.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestAgentLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	agent := &models.Agent{
		TeamID: team.ID,
		Name:   "dev-1",
		Role:   models.RoleEngineer,
		Model:  "claude-sonnet-4-20250514",
		Config: map[string]interface{}{"adapter": "claude"},
	}
	if err := repo.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	if agent.Status != models.AgentStatusIdle {
		t.Errorf("expected default status idle, got %s", agent.Status)
	}

	retrieved, err := repo.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("failed to get agent: %v", err)
	}
	if v, _ := retrieved.ConfigString("adapter"); v != "claude" {
		t.Errorf("expected adapter 'claude', got %q", v)
	}

	if err := repo.UpdateAgentStatus(ctx, agent.ID, models.AgentStatusWorking); err != nil {
		t.Fatalf("failed to update agent status: %v", err)
	}
	retrieved, _ = repo.GetAgent(ctx, agent.ID)
	if retrieved.Status != models.AgentStatusWorking {
		t.Errorf("expected status working, got %s", retrieved.Status)
	}

	seedAgent(t, repo, team.ID, "art", models.RoleReviewer)
	agents, err := repo.ListAgents(ctx, team.ID)
	if err != nil {
		t.Fatalf("failed to list agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].Name != "art" {
		t.Errorf("expected agents ordered by name, got %s first", agents[0].Name)
	}

	err = repo.UpdateAgentStatus(ctx, "nonexistent", models.AgentStatusIdle)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateAgentName(t *testing.T) {
	repo := newTestRepo(t)
	team := seedTeam(t, repo)
	seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	err := repo.CreateAgent(context.Background(), &models.Agent{TeamID: team.ID, Name: "dev-1"})
	if !errors.Is(err, models.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestResetStuckAgents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	stuck := seedAgent(t, repo, team.ID, "stuck", models.RoleEngineer)
	active := seedAgent(t, repo, team.ID, "active", models.RoleEngineer)
	idle := seedAgent(t, repo, team.ID, "idle", models.RoleEngineer)

	_ = repo.UpdateAgentStatus(ctx, stuck.ID, models.AgentStatusWorking)
	_ = repo.UpdateAgentStatus(ctx, active.ID, models.AgentStatusWorking)

	// Backdate both status flips past the cutoff.
	old := time.Now().UTC().Add(-time.Hour)
	for _, id := range []string{stuck.ID, active.ID} {
		if _, err := repo.pool.Writer().Exec(
			repo.pool.Writer().Rebind(`UPDATE agents SET status_changed_at = ? WHERE id = ?`), old, id); err != nil {
			t.Fatalf("failed to backdate agent: %v", err)
		}
	}

	// The active agent has a live session inside the window.
	session := &models.Session{AgentID: active.ID, Model: "claude-sonnet-4-20250514"}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	cutoff := time.Now().UTC().Add(-30 * time.Minute)
	reset, err := repo.ResetStuckAgents(ctx, cutoff)
	if err != nil {
		t.Fatalf("failed to reset stuck agents: %v", err)
	}
	if reset != 1 {
		t.Errorf("expected 1 agent reset, got %d", reset)
	}

	got, _ := repo.GetAgent(ctx, stuck.ID)
	if got.Status != models.AgentStatusIdle {
		t.Errorf("expected stuck agent reset to idle, got %s", got.Status)
	}
	got, _ = repo.GetAgent(ctx, active.ID)
	if got.Status != models.AgentStatusWorking {
		t.Errorf("expected active agent left working, got %s", got.Status)
	}
	got, _ = repo.GetAgent(ctx, idle.ID)
	if got.Status != models.AgentStatusIdle {
		t.Errorf("expected idle agent untouched, got %s", got.Status)
	}
}

func TestRepoLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	reg := &models.Repository{TeamID: team.ID, Name: "api", LocalPath: "/srv/repos/api"}
	if err := repo.CreateRepo(ctx, reg); err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	if reg.DefaultBranch != "main" {
		t.Errorf("expected default branch 'main', got %s", reg.DefaultBranch)
	}

	retrieved, err := repo.GetRepo(ctx, reg.ID)
	if err != nil {
		t.Fatalf("failed to get repo: %v", err)
	}
	if retrieved.LocalPath != "/srv/repos/api" {
		t.Errorf("expected local path '/srv/repos/api', got %s", retrieved.LocalPath)
	}

	repos, err := repo.ListRepos(ctx, team.ID)
	if err != nil {
		t.Fatalf("failed to list repos: %v", err)
	}
	if len(repos) != 1 {
		t.Errorf("expected 1 repo, got %d", len(repos))
	}
}

func TestTaskLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	task := &models.Task{
		TeamID:      team.ID,
		Title:       "Fix login bug",
		Description: "Users cannot log in",
		DependsOn:   []int64{},
		RepoIDs:     []string{"repo-1"},
		Tags:        []string{"bug"},
		Metadata:    map[string]interface{}{"source": "manual"},
	}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("expected task ID to be assigned")
	}
	if task.Status != models.TaskStatusTodo {
		t.Errorf("expected default status todo, got %s", task.Status)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", task.Priority)
	}

	if err := repo.SetTaskBranch(ctx, task.ID, models.TaskBranch(task.ID, task.Title)); err != nil {
		t.Fatalf("failed to set task branch: %v", err)
	}

	retrieved, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if retrieved.Branch != fmt.Sprintf("task-%d-fix-login-bug", task.ID) {
		t.Errorf("unexpected branch %q", retrieved.Branch)
	}
	if len(retrieved.RepoIDs) != 1 || retrieved.RepoIDs[0] != "repo-1" {
		t.Errorf("expected repo_ids round-trip, got %v", retrieved.RepoIDs)
	}
	if retrieved.Metadata["source"] != "manual" {
		t.Errorf("expected metadata round-trip, got %v", retrieved.Metadata)
	}

	retrieved.Status = models.TaskStatusInProgress
	retrieved.AssigneeID = &agent.ID
	if err := repo.UpdateTask(ctx, retrieved); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	got, _ := repo.GetTask(ctx, task.ID)
	if got.Status != models.TaskStatusInProgress {
		t.Errorf("expected status in_progress, got %s", got.Status)
	}
	if got.AssigneeID == nil || *got.AssigneeID != agent.ID {
		t.Errorf("expected assignee %s, got %v", agent.ID, got.AssigneeID)
	}

	now := time.Now().UTC()
	got.Status = models.TaskStatusDone
	got.CompletedAt = &now
	if err := repo.UpdateTask(ctx, got); err != nil {
		t.Fatalf("failed to complete task: %v", err)
	}
	got, _ = repo.GetTask(ctx, task.ID)
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestTaskNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetTask(ctx, 9999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err = repo.UpdateTask(ctx, &models.Task{ID: 9999, Title: "ghost"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
	err = repo.SetTaskBranch(ctx, 9999, "task-9999-ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on branch set, got %v", err)
	}
}

func TestGetTasksByIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	var ids []int64
	for i := 0; i < 3; i++ {
		task := &models.Task{TeamID: team.ID, Title: fmt.Sprintf("Task %d", i)}
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
		ids = append(ids, task.ID)
	}

	tasks, err := repo.GetTasksByIDs(ctx, []int64{ids[0], ids[2], 9999})
	if err != nil {
		t.Fatalf("failed to get tasks by ids: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(tasks))
	}

	tasks, err = repo.GetTasksByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("expected no error for empty id set, got %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks for empty id set, got %d", len(tasks))
	}
}

func TestListTasksFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	for i := 0; i < 4; i++ {
		task := &models.Task{TeamID: team.ID, Title: fmt.Sprintf("Task %d", i)}
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
		if i%2 == 0 {
			task.Status = models.TaskStatusInProgress
			task.AssigneeID = &agent.ID
			if err := repo.UpdateTask(ctx, task); err != nil {
				t.Fatalf("failed to update task: %v", err)
			}
		}
	}

	all, err := repo.ListTasks(ctx, team.ID, repository.TaskFilter{})
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(all))
	}
	if all[0].ID < all[1].ID {
		t.Error("expected newest-first ordering")
	}

	inProgress, _ := repo.ListTasks(ctx, team.ID, repository.TaskFilter{Status: models.TaskStatusInProgress})
	if len(inProgress) != 2 {
		t.Errorf("expected 2 in_progress tasks, got %d", len(inProgress))
	}

	mine, _ := repo.ListTasks(ctx, team.ID, repository.TaskFilter{AssigneeID: agent.ID})
	if len(mine) != 2 {
		t.Errorf("expected 2 assigned tasks, got %d", len(mine))
	}

	paged, _ := repo.ListTasks(ctx, team.ID, repository.TaskFilter{Limit: 2, Offset: 2})
	if len(paged) != 2 {
		t.Errorf("expected 2 tasks on second page, got %d", len(paged))
	}
}

func TestFindActiveTaskForAgent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	_, err := repo.FindActiveTaskForAgent(ctx, agent.ID)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound with no tasks, got %v", err)
	}

	first := &models.Task{TeamID: team.ID, Title: "First"}
	second := &models.Task{TeamID: team.ID, Title: "Second"}
	_ = repo.CreateTask(ctx, first)
	_ = repo.CreateTask(ctx, second)

	for _, task := range []*models.Task{first, second} {
		task.Status = models.TaskStatusInProgress
		task.AssigneeID = &agent.ID
		if err := repo.UpdateTask(ctx, task); err != nil {
			t.Fatalf("failed to update task: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	// Touch the first task last so it becomes the most recent.
	time.Sleep(2 * time.Millisecond)
	if err := repo.UpdateTask(ctx, first); err != nil {
		t.Fatalf("failed to touch task: %v", err)
	}

	active, err := repo.FindActiveTaskForAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("failed to find active task: %v", err)
	}
	if active.ID != first.ID {
		t.Errorf("expected most recently updated task %d, got %d", first.ID, active.ID)
	}
}

func TestMessageInbox(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	manager := seedAgent(t, repo, team.ID, "mgr", models.RoleManager)
	dev := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	msg := &models.Message{
		TeamID:      team.ID,
		SenderID:    manager.ID,
		RecipientID: dev.ID,
		Content:     "Please pick up the login fix",
	}
	if err := repo.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	if msg.DeliveredAt == nil {
		t.Error("expected delivered_at to be stamped")
	}

	inbox, err := repo.ListInbox(ctx, dev.ID, true, 10)
	if err != nil {
		t.Fatalf("failed to list inbox: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("expected 1 unprocessed message, got %d", len(inbox))
	}

	if err := repo.MarkMessageSeen(ctx, msg.ID); err != nil {
		t.Fatalf("failed to mark seen: %v", err)
	}
	if err := repo.MarkMessageProcessed(ctx, msg.ID); err != nil {
		t.Fatalf("failed to mark processed: %v", err)
	}
	// Second processing is a no-op, not an error.
	if err := repo.MarkMessageProcessed(ctx, msg.ID); err != nil {
		t.Errorf("expected idempotent processing, got %v", err)
	}

	inbox, _ = repo.ListInbox(ctx, dev.ID, true, 10)
	if len(inbox) != 0 {
		t.Errorf("expected empty unprocessed inbox, got %d", len(inbox))
	}
	inbox, _ = repo.ListInbox(ctx, dev.ID, false, 10)
	if len(inbox) != 1 {
		t.Errorf("expected 1 message in full inbox, got %d", len(inbox))
	}
	if inbox[0].SeenAt == nil || inbox[0].ProcessedAt == nil {
		t.Error("expected seen_at and processed_at to be stamped")
	}

	err = repo.MarkMessageProcessed(ctx, "nonexistent")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingDispatches(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	idle := seedAgent(t, repo, team.ID, "idle-dev", models.RoleEngineer)
	busy := seedAgent(t, repo, team.ID, "busy-dev", models.RoleEngineer)
	_ = repo.UpdateAgentStatus(ctx, busy.ID, models.AgentStatusWorking)

	for _, recipient := range []string{idle.ID, busy.ID} {
		msg := &models.Message{TeamID: team.ID, SenderID: "user-1", SenderType: models.ActorUser,
			RecipientID: recipient, Content: "work to do"}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}
	}
	// Messages to humans never show up as dispatches.
	human := &models.Message{TeamID: team.ID, SenderID: idle.ID, RecipientID: "user-1",
		RecipientType: models.ActorUser, Content: "done"}
	_ = repo.CreateMessage(ctx, human)

	pending, err := repo.ListPendingDispatches(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list pending dispatches: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending dispatch, got %d", len(pending))
	}
	if pending[0].AgentID != idle.ID || pending[0].TeamID != team.ID {
		t.Errorf("unexpected dispatch %+v", pending[0])
	}
}

func TestEventStream(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stream := "task:1"
	var lastID int64
	for i := 0; i < 3; i++ {
		event := &models.Event{
			StreamID: stream,
			Type:     "task.status_changed",
			Data:     map[string]interface{}{"seq": float64(i)},
		}
		if err := repo.AppendEvent(ctx, event); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if event.ID <= lastID {
			t.Errorf("expected increasing event ids, got %d after %d", event.ID, lastID)
		}
		lastID = event.ID
	}

	events, err := repo.ListEvents(ctx, stream, 0, 10)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Data["seq"] != float64(0) {
		t.Errorf("expected append order, got %v first", events[0].Data)
	}

	tail, _ := repo.ListEvents(ctx, stream, events[0].ID, 10)
	if len(tail) != 2 {
		t.Errorf("expected 2 events after first, got %d", len(tail))
	}

	exists, err := repo.StreamExists(ctx, stream)
	if err != nil {
		t.Fatalf("failed to check stream: %v", err)
	}
	if !exists {
		t.Error("expected stream to exist")
	}
	exists, _ = repo.StreamExists(ctx, "webhook:unknown")
	if exists {
		t.Error("expected unknown stream to not exist")
	}
}

func TestSessionSpend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	task := &models.Task{TeamID: team.ID, Title: "Task"}
	_ = repo.CreateTask(ctx, task)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	old := &models.Session{AgentID: agent.ID, TaskID: &task.ID, Model: "claude-sonnet-4-20250514",
		CostUSD: 2.5, StartedAt: yesterday}
	if err := repo.CreateSession(ctx, old); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	current := &models.Session{AgentID: agent.ID, TaskID: &task.ID, Model: "claude-sonnet-4-20250514"}
	if err := repo.CreateSession(ctx, current); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	current.TokensIn = 1000
	current.TokensOut = 500
	current.CostUSD = 1.25
	now := time.Now().UTC()
	current.EndedAt = &now
	if err := repo.UpdateSession(ctx, current); err != nil {
		t.Fatalf("failed to update session: %v", err)
	}

	retrieved, err := repo.GetSession(ctx, current.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if retrieved.TokensIn != 1000 || retrieved.CostUSD != 1.25 {
		t.Errorf("unexpected session counters: %+v", retrieved)
	}
	if retrieved.EndedAt == nil {
		t.Error("expected ended_at to be set")
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	today, err := repo.AgentSpendSince(ctx, agent.ID, midnight)
	if err != nil {
		t.Fatalf("failed to sum agent spend: %v", err)
	}
	if today != 1.25 {
		t.Errorf("expected today's spend 1.25, got %f", today)
	}

	total, err := repo.TaskSpend(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to sum task spend: %v", err)
	}
	if total != 3.75 {
		t.Errorf("expected task spend 3.75, got %f", total)
	}

	sessions, err := repo.ListSessions(ctx, repository.SessionFilter{AgentID: agent.ID})
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestCostSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	dev := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)
	reviewer := seedAgent(t, repo, team.ID, "rev-1", models.RoleReviewer)

	sessions := []*models.Session{
		{AgentID: dev.ID, Model: "claude-sonnet-4-20250514", CostUSD: 3.0, TokensIn: 100, TokensOut: 50},
		{AgentID: dev.ID, Model: "claude-opus-4-20250514", CostUSD: 5.0, TokensIn: 200, TokensOut: 80},
		{AgentID: reviewer.ID, Model: "claude-sonnet-4-20250514", CostUSD: 1.0, TokensIn: 40, TokensOut: 20},
	}
	for _, session := range sessions {
		if err := repo.CreateSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}

	since := time.Now().UTC().Add(-time.Hour)
	summary, err := repo.CostSummary(ctx, team.ID, since)
	if err != nil {
		t.Fatalf("failed to build cost summary: %v", err)
	}
	if summary.TotalCostUSD != 9.0 {
		t.Errorf("expected total cost 9.0, got %f", summary.TotalCostUSD)
	}
	if summary.TotalTokensIn != 340 || summary.TotalTokensOut != 150 {
		t.Errorf("unexpected token totals: %+v", summary)
	}
	if summary.SessionCount != 3 {
		t.Errorf("expected 3 sessions, got %d", summary.SessionCount)
	}
	if len(summary.PerAgent) != 2 {
		t.Fatalf("expected 2 agent rows, got %d", len(summary.PerAgent))
	}
	if summary.PerAgent[0].AgentID != dev.ID || summary.PerAgent[0].CostUSD != 8.0 {
		t.Errorf("expected dev-1 first with 8.0, got %+v", summary.PerAgent[0])
	}
	if len(summary.PerModel) != 2 {
		t.Errorf("expected 2 model rows, got %d", len(summary.PerModel))
	}
}

func TestHumanRequestLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	timeout := time.Now().UTC().Add(time.Hour)
	req := &models.HumanRequest{
		TeamID:    team.ID,
		AgentID:   agent.ID,
		Question:  "Should I use feature flags?",
		Options:   []string{"yes", "no"},
		TimeoutAt: &timeout,
	}
	if err := repo.CreateHumanRequest(ctx, req); err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if req.Status != models.RequestStatusPending {
		t.Errorf("expected default status pending, got %s", req.Status)
	}

	retrieved, err := repo.GetHumanRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("failed to get request: %v", err)
	}
	if len(retrieved.Options) != 2 {
		t.Errorf("expected options round-trip, got %v", retrieved.Options)
	}

	response := "yes"
	respondedBy := "user-1"
	now := time.Now().UTC()
	retrieved.Status = models.RequestStatusResolved
	retrieved.Response = &response
	retrieved.RespondedBy = &respondedBy
	retrieved.ResolvedAt = &now
	if err := repo.UpdateHumanRequest(ctx, retrieved); err != nil {
		t.Fatalf("failed to resolve request: %v", err)
	}

	pending, _ := repo.ListHumanRequests(ctx, team.ID, repository.RequestFilter{Status: models.RequestStatusPending})
	if len(pending) != 0 {
		t.Errorf("expected no pending requests, got %d", len(pending))
	}
	all, _ := repo.ListHumanRequests(ctx, team.ID, repository.RequestFilter{})
	if len(all) != 1 {
		t.Errorf("expected 1 request, got %d", len(all))
	}
	if all[0].Response == nil || *all[0].Response != "yes" {
		t.Errorf("expected response 'yes', got %v", all[0].Response)
	}
}

func TestListExpiredPendingRequests(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	agent := seedAgent(t, repo, team.ID, "dev-1", models.RoleEngineer)

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	expired := &models.HumanRequest{TeamID: team.ID, AgentID: agent.ID, Question: "old?", TimeoutAt: &past}
	live := &models.HumanRequest{TeamID: team.ID, AgentID: agent.ID, Question: "new?", TimeoutAt: &future}
	open := &models.HumanRequest{TeamID: team.ID, AgentID: agent.ID, Question: "no deadline?"}
	for _, req := range []*models.HumanRequest{expired, live, open} {
		if err := repo.CreateHumanRequest(ctx, req); err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
	}

	requests, err := repo.ListExpiredPendingRequests(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to list expired requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 expired request, got %d", len(requests))
	}
	if requests[0].ID != expired.ID {
		t.Errorf("expected request %s, got %s", expired.ID, requests[0].ID)
	}
}

func TestReviewLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)
	reviewer := seedAgent(t, repo, team.ID, "rev-1", models.RoleReviewer)

	task := &models.Task{TeamID: team.ID, Title: "Task"}
	_ = repo.CreateTask(ctx, task)

	attempt, err := repo.MaxReviewAttempt(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to get max attempt: %v", err)
	}
	if attempt != 0 {
		t.Errorf("expected attempt 0 with no reviews, got %d", attempt)
	}

	review := &models.Review{TaskID: task.ID, Attempt: 1, ReviewerID: &reviewer.ID, ReviewerType: models.ActorAgent}
	if err := repo.CreateReview(ctx, review); err != nil {
		t.Fatalf("failed to create review: %v", err)
	}

	filePath := "auth/login.go"
	line := 42
	comment := &models.ReviewComment{
		ReviewID:   review.ID,
		AuthorID:   reviewer.ID,
		AuthorType: models.ActorAgent,
		FilePath:   &filePath,
		LineNumber: &line,
		Content:    "missing error check",
	}
	if err := repo.CreateReviewComment(ctx, comment); err != nil {
		t.Fatalf("failed to create comment: %v", err)
	}
	general := &models.ReviewComment{ReviewID: review.ID, AuthorID: reviewer.ID,
		AuthorType: models.ActorAgent, Content: "overall looks close"}
	if err := repo.CreateReviewComment(ctx, general); err != nil {
		t.Fatalf("failed to create comment: %v", err)
	}

	retrieved, err := repo.GetReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("failed to get review: %v", err)
	}
	if len(retrieved.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(retrieved.Comments))
	}
	if retrieved.Comments[0].FilePath == nil || *retrieved.Comments[0].FilePath != "auth/login.go" {
		t.Errorf("expected file comment first, got %+v", retrieved.Comments[0])
	}

	verdict := models.VerdictRequestChanges
	summary := "needs error handling"
	now := time.Now().UTC()
	retrieved.Verdict = &verdict
	retrieved.Summary = &summary
	retrieved.ResolvedAt = &now
	if err := repo.UpdateReview(ctx, retrieved); err != nil {
		t.Fatalf("failed to update review: %v", err)
	}

	second := &models.Review{TaskID: task.ID, Attempt: 2, ReviewerID: &reviewer.ID, ReviewerType: models.ActorAgent}
	if err := repo.CreateReview(ctx, second); err != nil {
		t.Fatalf("failed to create second review: %v", err)
	}

	latest, err := repo.LatestReview(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to get latest review: %v", err)
	}
	if latest.Attempt != 2 {
		t.Errorf("expected latest attempt 2, got %d", latest.Attempt)
	}

	reviews, err := repo.ListReviews(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to list reviews: %v", err)
	}
	if len(reviews) != 2 || reviews[0].Attempt != 2 {
		t.Errorf("expected attempts newest-first, got %+v", reviews)
	}
	if len(reviews[1].Comments) != 2 {
		t.Errorf("expected comments loaded for older attempt, got %d", len(reviews[1].Comments))
	}

	attempt, _ = repo.MaxReviewAttempt(ctx, task.ID)
	if attempt != 2 {
		t.Errorf("expected max attempt 2, got %d", attempt)
	}

	dup := &models.Review{TaskID: task.ID, Attempt: 2}
	err = repo.CreateReview(ctx, dup)
	if !errors.Is(err, models.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for duplicate attempt, got %v", err)
	}
}

func TestMergeJobClaim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	task := &models.Task{TeamID: team.ID, Title: "Task"}
	_ = repo.CreateTask(ctx, task)

	job := &models.MergeJob{TaskID: task.ID, RepoID: "repo-1", Strategy: models.StrategySquash}
	if err := repo.CreateMergeJob(ctx, job); err != nil {
		t.Fatalf("failed to create merge job: %v", err)
	}
	if job.Status != models.MergeStatusQueued {
		t.Errorf("expected default status queued, got %s", job.Status)
	}

	var claimed *models.MergeJob
	err := repo.WithTx(ctx, func(s repository.Store) error {
		var err error
		claimed, err = s.ClaimQueuedMergeJob(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("failed to claim job: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected to claim job %s, got %+v", job.ID, claimed)
	}
	if claimed.Status != models.MergeStatusRunning || claimed.StartedAt == nil {
		t.Errorf("expected running job with started_at, got %+v", claimed)
	}

	// Nothing left to claim.
	again, err := repo.ClaimQueuedMergeJob(ctx)
	if err != nil {
		t.Fatalf("unexpected claim error: %v", err)
	}
	if again != nil {
		t.Errorf("expected nil claim, got %+v", again)
	}

	commit := "abc123"
	now := time.Now().UTC()
	claimed.Status = models.MergeStatusSuccess
	claimed.MergeCommit = &commit
	claimed.FinishedAt = &now
	if err := repo.UpdateMergeJob(ctx, claimed); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	jobs, err := repo.ListMergeJobs(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].MergeCommit == nil || *jobs[0].MergeCommit != "abc123" {
		t.Errorf("expected merge commit recorded, got %+v", jobs[0])
	}
}

func TestWithTxRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	task := &models.Task{TeamID: team.ID, Title: "Rolled back"}
	wantErr := errors.New("boom")
	err := repo.WithTx(ctx, func(s repository.Store) error {
		if err := s.CreateTask(ctx, task); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error returned, got %v", err)
	}

	_, err = repo.GetTask(ctx, task.ID)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected rolled-back task to be missing, got %v", err)
	}
}

func TestWithTxCommitVisibility(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	team := seedTeam(t, repo)

	var taskID int64
	err := repo.WithTx(ctx, func(s repository.Store) error {
		task := &models.Task{TeamID: team.ID, Title: "Atomic"}
		if err := s.CreateTask(ctx, task); err != nil {
			return err
		}
		taskID = task.ID

		// Reads inside the transaction observe its writes.
		if _, err := s.GetTask(ctx, task.ID); err != nil {
			return err
		}
		return s.AppendEvent(ctx, &models.Event{
			StreamID: fmt.Sprintf("task:%d", task.ID),
			Type:     "task.created",
			Data:     map[string]interface{}{"title": task.Title},
		})
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	if _, err := repo.GetTask(ctx, taskID); err != nil {
		t.Errorf("expected committed task visible, got %v", err)
	}
	events, err := repo.ListEvents(ctx, fmt.Sprintf("task:%d", taskID), 0, 10)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "task.created" {
		t.Errorf("expected one task.created event, got %+v", events)
	}
}
