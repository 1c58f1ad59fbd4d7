package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	ctrlsqlite "github.com/openclaw/openclaw/internal/control/repository/sqlite"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/db"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/runner"
)

// fakeRunner records run requests and can be told to fail runs.
type fakeRunner struct {
	mu  sync.Mutex
	err error
	got chan runner.RunRequest
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{got: make(chan runner.RunRequest, 16)}
}

func (f *fakeRunner) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRunner) Run(ctx context.Context, req runner.RunRequest) (*runner.RunResult, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	f.got <- req
	if err != nil {
		return nil, err
	}
	return &runner.RunResult{SessionID: "sess-1", Adapter: "mock", Classification: "completed"}, nil
}

type testEnv struct {
	svc      *service.Service
	eventBus *bus.MemoryEventBus
	runner   *fakeRunner
	d        *Dispatcher
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	pool, err := db.Open("sqlite", filepath.Join(t.TempDir(), "control.db"), "", 5000)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	repo, err := ctrlsqlite.New(pool)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	eventBus := bus.NewMemoryEventBus(log)
	t.Cleanup(eventBus.Close)

	svc := service.New(repo, eventBus, log)
	fr := newFakeRunner()
	return &testEnv{
		svc:      svc,
		eventBus: eventBus,
		runner:   fr,
		d:        New(svc, fr, eventBus, log, cfg),
	}
}

func seedTeam(t *testing.T, svc *service.Service) *models.Team {
	t.Helper()
	ctx := context.Background()

	org, err := svc.CreateOrg(ctx, &models.Organization{Name: "Acme", Slug: "acme"})
	if err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	team, err := svc.CreateTeam(ctx, &models.Team{OrgID: org.ID, Name: "Platform", Slug: "platform"})
	if err != nil {
		t.Fatalf("failed to create team: %v", err)
	}
	return team
}

func seedAgent(t *testing.T, svc *service.Service, teamID, name string) *models.Agent {
	t.Helper()
	agent, err := svc.CreateAgent(context.Background(), &models.Agent{
		TeamID: teamID, Name: name, Role: models.RoleEngineer,
	})
	if err != nil {
		t.Fatalf("failed to create agent %s: %v", name, err)
	}
	return agent
}

func waitRun(t *testing.T, f *fakeRunner) runner.RunRequest {
	t.Helper()
	select {
	case req := <-f.got:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a run")
		return runner.RunRequest{}
	}
}

func assertNoRun(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case req := <-f.got:
		t.Fatalf("unexpected run for agent %s", req.AgentID)
	case <-time.After(150 * time.Millisecond):
	}
}

func waitAgentStatus(t *testing.T, svc *service.Service, agentID string, want models.AgentStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		agent, err := svc.GetAgent(context.Background(), agentID)
		if err != nil {
			t.Fatalf("failed to load agent: %v", err)
		}
		if agent.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("agent %s never reached status %q", agentID, want)
}

func TestDispatchRunsIdleAgent(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")

	env.d.Dispatch(context.Background(), agent.ID, team.ID, "test")

	req := waitRun(t, env.runner)
	if req.AgentID != agent.ID {
		t.Errorf("expected run for agent %s, got %s", agent.ID, req.AgentID)
	}
	if req.TeamID != team.ID {
		t.Errorf("expected team %s, got %s", team.ID, req.TeamID)
	}
	if req.TaskID != nil {
		t.Errorf("expected no task, got %d", *req.TaskID)
	}

	// The working flip happens before the runner is launched.
	reloaded, err := env.svc.GetAgent(context.Background(), agent.ID)
	if err != nil {
		t.Fatalf("failed to reload agent: %v", err)
	}
	if reloaded.Status != models.AgentStatusWorking {
		t.Errorf("expected agent working, got %s", reloaded.Status)
	}

	stats := env.d.Stats()
	if stats.Dispatched != 1 {
		t.Errorf("expected 1 dispatched, got %d", stats.Dispatched)
	}
	if stats.MaxConcurrent != 32 {
		t.Errorf("expected default max_concurrent 32, got %d", stats.MaxConcurrent)
	}
}

func TestDispatchAttachesInProgressTask(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, &models.Task{TeamID: team.ID, Title: "Implement filters"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if _, err := env.svc.AssignTask(ctx, task.ID, agent.ID); err != nil {
		t.Fatalf("failed to assign task: %v", err)
	}
	if _, err := env.svc.ChangeTaskStatus(ctx, task.ID, models.TaskStatusInProgress, ""); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}

	env.d.Dispatch(ctx, agent.ID, team.ID, "test")

	req := waitRun(t, env.runner)
	if req.TaskID == nil || *req.TaskID != task.ID {
		t.Fatalf("expected run bound to task %d, got %v", task.ID, req.TaskID)
	}
}

func TestDispatchSkipsBusyAgent(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	if err := env.svc.Repository().UpdateAgentStatus(ctx, agent.ID, models.AgentStatusWorking); err != nil {
		t.Fatalf("failed to mark agent working: %v", err)
	}

	env.d.Dispatch(ctx, agent.ID, team.ID, "test")

	assertNoRun(t, env.runner)
	stats := env.d.Stats()
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", stats.Skipped)
	}
	if stats.Dispatched != 0 {
		t.Errorf("expected 0 dispatched, got %d", stats.Dispatched)
	}
}

func TestDispatchSkipsInFlightAgent(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")

	env.d.flightMu.Lock()
	env.d.flight[agent.ID] = struct{}{}
	env.d.flightMu.Unlock()

	env.d.Dispatch(context.Background(), agent.ID, team.ID, "test")

	assertNoRun(t, env.runner)
	if stats := env.d.Stats(); stats.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", stats.Skipped)
	}
}

func TestRunErrorResetsAgent(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")

	env.runner.fail(errors.New("adapter exploded"))
	env.d.Dispatch(context.Background(), agent.ID, team.ID, "test")

	waitRun(t, env.runner)
	waitAgentStatus(t, env.svc, agent.ID, models.AgentStatusIdle)

	if stats := env.d.Stats(); stats.Errors == 0 {
		t.Error("expected an error to be counted")
	}
}

func TestNewMessageDispatchesRecipient(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	defer func() { _ = env.d.Stop() }()

	_, err := env.svc.SendMessage(ctx, &models.Message{
		TeamID:        team.ID,
		SenderID:      "user-1",
		SenderType:    models.ActorUser,
		RecipientID:   agent.ID,
		RecipientType: models.ActorAgent,
		Content:       "please pick up the filters task",
	})
	if err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	req := waitRun(t, env.runner)
	if req.AgentID != agent.ID {
		t.Errorf("expected run for agent %s, got %s", agent.ID, req.AgentID)
	}
}

func TestMessageToHumanDoesNotDispatch(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	defer func() { _ = env.d.Stop() }()

	_, err := env.svc.SendMessage(ctx, &models.Message{
		TeamID:        team.ID,
		SenderID:      agent.ID,
		SenderType:    models.ActorAgent,
		RecipientID:   "user-1",
		RecipientType: models.ActorUser,
		Content:       "done, please review",
	})
	if err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	assertNoRun(t, env.runner)
}

func TestResolvedRequestDispatchesAgent(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	req, err := env.svc.CreateHumanRequest(ctx, service.HumanRequestDraft{
		TeamID:   team.ID,
		AgentID:  agent.ID,
		Question: "which auth provider?",
	})
	if err != nil {
		t.Fatalf("failed to create human request: %v", err)
	}

	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	defer func() { _ = env.d.Stop() }()

	if _, err := env.svc.RespondToRequest(ctx, req.ID, "oauth", "user-1"); err != nil {
		t.Fatalf("failed to respond: %v", err)
	}

	got := waitRun(t, env.runner)
	if got.AgentID != agent.ID {
		t.Errorf("expected run for agent %s, got %s", agent.ID, got.AgentID)
	}
}

func TestStatusChangeDoesNotDispatch(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	defer func() { _ = env.d.Stop() }()

	task, err := env.svc.CreateTask(ctx, &models.Task{TeamID: team.ID, Title: "Quiet change"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if _, err := env.svc.ChangeTaskStatus(ctx, task.ID, models.TaskStatusInProgress, ""); err != nil {
		t.Fatalf("failed to change status: %v", err)
	}

	assertNoRun(t, env.runner)
}

func TestPollOnceDispatchesPendingInbox(t *testing.T) {
	env := newTestEnv(t, Config{})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	// No listeners running; the message notification goes nowhere and
	// only the poller can pick the agent up.
	_, err := env.svc.SendMessage(ctx, &models.Message{
		TeamID:        team.ID,
		SenderID:      "user-1",
		SenderType:    models.ActorUser,
		RecipientID:   agent.ID,
		RecipientType: models.ActorAgent,
		Content:       "lost notification",
	})
	if err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	env.d.pollOnce(ctx)

	req := waitRun(t, env.runner)
	if req.AgentID != agent.ID {
		t.Errorf("expected run for agent %s, got %s", agent.ID, req.AgentID)
	}
}

func TestReconcileSweepsExpiredAndStuck(t *testing.T) {
	env := newTestEnv(t, Config{StuckAgentTimeout: time.Millisecond})
	team := seedTeam(t, env.svc)
	agent := seedAgent(t, env.svc, team.ID, "dev-1")
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	stale := &models.HumanRequest{
		TeamID:    team.ID,
		AgentID:   agent.ID,
		Question:  "anyone there?",
		TimeoutAt: &past,
	}
	if err := env.svc.Repository().CreateHumanRequest(ctx, stale); err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	if err := env.svc.Repository().UpdateAgentStatus(ctx, agent.ID, models.AgentStatusWorking); err != nil {
		t.Fatalf("failed to mark agent working: %v", err)
	}

	// Let the working flip age past the 1 ms stuck cutoff.
	time.Sleep(20 * time.Millisecond)
	env.d.reconcile(ctx)

	req, err := env.svc.GetHumanRequest(ctx, stale.ID)
	if err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if req.Status != models.RequestStatusExpired {
		t.Errorf("expected request expired, got %s", req.Status)
	}

	reloaded, err := env.svc.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("failed to reload agent: %v", err)
	}
	if reloaded.Status != models.AgentStatusIdle {
		t.Errorf("expected agent reset to idle, got %s", reloaded.Status)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{MaxConcurrent: 4})
	ctx := context.Background()

	if env.d.IsRunning() {
		t.Fatal("dispatcher should not be running before Start")
	}
	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !env.d.IsRunning() {
		t.Error("dispatcher should be running after Start")
	}
	if err := env.d.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	stats := env.d.Stats()
	if stats.StartedAt.IsZero() {
		t.Error("expected started_at to be stamped")
	}
	if stats.MaxConcurrent != 4 {
		t.Errorf("expected max_concurrent 4, got %d", stats.MaxConcurrent)
	}

	if err := env.d.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	if env.d.IsRunning() {
		t.Error("dispatcher should not be running after Stop")
	}
	if err := env.d.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}
