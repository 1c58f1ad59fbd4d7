package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/db"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
	"github.com/openclaw/openclaw/internal/runner"

	ctrlsqlite "github.com/openclaw/openclaw/internal/control/repository/sqlite"
)

// fakeGit satisfies GitInspector with canned output.
type fakeGit struct {
	diff    string
	files   []gitops.DiffFile
	content map[string]string
}

func (f *fakeGit) Diff(ctx context.Context, repo *models.Repository, branch string) (string, error) {
	return f.diff, nil
}

func (f *fakeGit) ChangedFiles(ctx context.Context, repo *models.Repository, branch string) ([]gitops.DiffFile, error) {
	return f.files, nil
}

func (f *fakeGit) FileContent(ctx context.Context, repo *models.Repository, branch, path string) (string, error) {
	if content, ok := f.content[path]; ok {
		return content, nil
	}
	return "", fmt.Errorf("%w: file %s", models.ErrNotFound, path)
}

// fakePublisher satisfies service.GitPublisher so push and PR endpoints
// can be exercised without a real remote.
type fakePublisher struct {
	mu     sync.Mutex
	pushed []string
	prs    int
}

func (f *fakePublisher) Push(ctx context.Context, repo *models.Repository, branch string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, branch)
	return nil
}

func (f *fakePublisher) CreatePullRequest(ctx context.Context, repo *models.Repository, task *models.Task) (*service.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs++
	return &service.PullRequest{URL: fmt.Sprintf("https://example.test/pr/%d", f.prs), Number: f.prs}, nil
}

// fakeRunner records run requests and signals delivery, since the run
// endpoint fires it on a background goroutine.
type fakeRunner struct {
	got chan runner.RunRequest
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{got: make(chan runner.RunRequest, 8)}
}

func (f *fakeRunner) Run(ctx context.Context, req runner.RunRequest) (*runner.RunResult, error) {
	f.got <- req
	return &runner.RunResult{SessionID: "sess-fake", Adapter: "mock", Classification: "end_turn"}, nil
}

type testAPI struct {
	router *gin.Engine
	svc    *service.Service
	bus    *bus.MemoryEventBus
	runner *fakeRunner
	git    *fakePublisher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	publisher := &fakePublisher{}
	svc.SetGitPublisher(publisher)

	fr := newFakeRunner()
	h := New(Options{
		Service: svc,
		Git: &fakeGit{
			diff:    "diff --git a/main.go b/main.go\n+package main\n",
			files:   []gitops.DiffFile{{Path: "main.go", Status: "M", Additions: 12, Deletions: 3}},
			content: map[string]string{"main.go": "package main\n"},
		},
		Runner:   fr,
		Adapters: []string{"claude", "codex"},
		Bus:      eventBus,
		Logger:   log,
	})
	router := gin.New()
	h.Register(router)

	return &testAPI{router: router, svc: svc, bus: eventBus, runner: fr, git: publisher}
}

// newBareAPI builds a handler set without git, runner or bus, the way a
// minimal server process would run.
func newBareAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	svc := service.New(repo, nil, log)

	h := New(Options{Service: svc, Logger: log})
	router := gin.New()
	h.Register(router)
	return &testAPI{router: router, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func (a *testAPI) seedTeam(t *testing.T) dto.TeamDTO {
	t.Helper()
	w := a.do(t, http.MethodPost, "/orgs", dto.CreateOrgRequest{Name: "Acme", Slug: "acme"})
	wantStatus(t, w, http.StatusCreated)
	var org dto.OrgDTO
	decode(t, w, &org)

	w = a.do(t, http.MethodPost, "/orgs/"+org.ID+"/teams", dto.CreateTeamRequest{Name: "Platform", Slug: "platform"})
	wantStatus(t, w, http.StatusCreated)
	var team dto.TeamDTO
	decode(t, w, &team)
	return team
}

func (a *testAPI) seedAgent(t *testing.T, teamID, name string, role models.AgentRole) dto.AgentDTO {
	t.Helper()
	w := a.do(t, http.MethodPost, "/teams/"+teamID+"/agents", dto.CreateAgentRequest{Name: name, Role: role})
	wantStatus(t, w, http.StatusCreated)
	var agent dto.AgentDTO
	decode(t, w, &agent)
	return agent
}

func (a *testAPI) seedRepo(t *testing.T, teamID string) dto.RepositoryDTO {
	t.Helper()
	w := a.do(t, http.MethodPost, "/teams/"+teamID+"/repos", dto.CreateRepoRequest{
		Name:      "api",
		LocalPath: t.TempDir(),
	})
	wantStatus(t, w, http.StatusCreated)
	var repo dto.RepositoryDTO
	decode(t, w, &repo)
	return repo
}

func (a *testAPI) seedTask(t *testing.T, teamID string, req dto.CreateTaskRequest) dto.TaskDTO {
	t.Helper()
	w := a.do(t, http.MethodPost, "/teams/"+teamID+"/tasks", req)
	wantStatus(t, w, http.StatusCreated)
	var task dto.TaskDTO
	decode(t, w, &task)
	return task
}

// advance walks a task through status transitions over the API.
func (a *testAPI) advance(t *testing.T, taskID int64, statuses ...models.TaskStatus) {
	t.Helper()
	for _, status := range statuses {
		w := a.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", taskID),
			dto.ChangeTaskStatusRequest{Status: status})
		wantStatus(t, w, http.StatusOK)
	}
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	wantStatus(t, w, http.StatusOK)

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestAdaptersEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/adapters", nil)
	wantStatus(t, w, http.StatusOK)

	var body dto.ListAdaptersResponse
	decode(t, w, &body)
	if len(body.Adapters) != 2 || body.Adapters[0] != "claude" {
		t.Errorf("unexpected adapters %v", body.Adapters)
	}
}

func TestOrgAndTeamEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/orgs", dto.CreateOrgRequest{Name: "Acme", Slug: "acme"})
	wantStatus(t, w, http.StatusCreated)
	var org dto.OrgDTO
	decode(t, w, &org)
	if org.ID == "" || org.Slug != "acme" {
		t.Fatalf("unexpected org %+v", org)
	}

	w = api.do(t, http.MethodGet, "/orgs/"+org.ID, nil)
	wantStatus(t, w, http.StatusOK)

	w = api.do(t, http.MethodGet, "/orgs/missing", nil)
	wantStatus(t, w, http.StatusNotFound)

	// Missing name fails validation.
	w = api.do(t, http.MethodPost, "/orgs", dto.CreateOrgRequest{Slug: "acme2"})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	w = api.do(t, http.MethodPost, "/orgs/"+org.ID+"/teams", dto.CreateTeamRequest{Name: "Platform"})
	wantStatus(t, w, http.StatusCreated)
	var team dto.TeamDTO
	decode(t, w, &team)
	if team.OrgID != org.ID {
		t.Errorf("expected team org %s, got %s", org.ID, team.OrgID)
	}

	w = api.do(t, http.MethodGet, "/teams/"+team.ID, nil)
	wantStatus(t, w, http.StatusOK)

	// Teams require an existing org.
	w = api.do(t, http.MethodPost, "/orgs/missing/teams", dto.CreateTeamRequest{Name: "Ghost"})
	wantStatus(t, w, http.StatusNotFound)
}

func TestAgentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	agent := api.seedAgent(t, team.ID, "dev-1", models.RoleEngineer)
	if agent.Status != models.AgentStatusIdle {
		t.Errorf("expected new agent idle, got %s", agent.Status)
	}
	if agent.Model == "" {
		t.Error("expected default model to be filled in")
	}

	w := api.do(t, http.MethodPost, "/teams/"+team.ID+"/agents", dto.CreateAgentRequest{Name: "bad", Role: "wizard"})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	api.seedAgent(t, team.ID, "rev-1", models.RoleReviewer)
	w = api.do(t, http.MethodGet, "/teams/"+team.ID+"/agents", nil)
	wantStatus(t, w, http.StatusOK)
	var list dto.ListAgentsResponse
	decode(t, w, &list)
	if list.Total != 2 {
		t.Errorf("expected 2 agents, got %d", list.Total)
	}
}

func TestRepoEndpoints(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	repo := api.seedRepo(t, team.ID)
	if repo.DefaultBranch != "main" {
		t.Errorf("expected default branch main, got %s", repo.DefaultBranch)
	}

	w := api.do(t, http.MethodGet, "/teams/"+team.ID+"/repos", nil)
	wantStatus(t, w, http.StatusOK)
	var list struct {
		Repos []dto.RepositoryDTO `json:"repos"`
		Total int                 `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 1 || list.Repos[0].ID != repo.ID {
		t.Errorf("unexpected repo list %+v", list)
	}
}

func TestConventionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	w := api.do(t, http.MethodPost, "/teams/"+team.ID+"/conventions",
		dto.AddConventionRequest{Key: "commit-style", Content: "imperative mood, 72 cols"})
	wantStatus(t, w, http.StatusCreated)

	// Duplicate keys are rejected.
	w = api.do(t, http.MethodPost, "/teams/"+team.ID+"/conventions",
		dto.AddConventionRequest{Key: "commit-style", Content: "something else"})
	wantStatus(t, w, http.StatusConflict)

	w = api.do(t, http.MethodGet, "/teams/"+team.ID+"/conventions", nil)
	wantStatus(t, w, http.StatusOK)
	var list struct {
		Conventions []models.Convention `json:"conventions"`
		Total       int                 `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 1 || list.Conventions[0].Key != "commit-style" {
		t.Errorf("unexpected conventions %+v", list)
	}
}

func TestCreateTaskEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{
		Title:    "Add rate limiting",
		Priority: models.PriorityHigh,
		Tags:     []string{"api"},
	})
	if task.Status != models.TaskStatusTodo {
		t.Errorf("expected new task todo, got %s", task.Status)
	}
	if task.Branch == "" {
		t.Error("expected a derived branch name")
	}

	// Title is required; unknown priorities are rejected.
	w := api.do(t, http.MethodPost, "/teams/"+team.ID+"/tasks", dto.CreateTaskRequest{})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	w = api.do(t, http.MethodPost, "/teams/"+team.ID+"/tasks",
		dto.CreateTaskRequest{Title: "x", Priority: "urgent"})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	// Garbage payloads fail fast.
	req := httptest.NewRequest(http.MethodPost, "/teams/"+team.ID+"/tasks", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	wantStatus(t, w, http.StatusBadRequest)
}

func TestGetTaskEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Fix login"})

	w := api.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil)
	wantStatus(t, w, http.StatusOK)

	w = api.do(t, http.MethodGet, "/tasks/99999", nil)
	wantStatus(t, w, http.StatusNotFound)

	// Non-numeric ids look like missing resources, not bad requests.
	w = api.do(t, http.MethodGet, "/tasks/abc", nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestListTasksEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	agent := api.seedAgent(t, team.ID, "dev-1", models.RoleEngineer)

	api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "one", AssigneeID: &agent.ID})
	api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "two"})

	w := api.do(t, http.MethodGet, "/teams/"+team.ID+"/tasks", nil)
	wantStatus(t, w, http.StatusOK)
	var list dto.ListTasksResponse
	decode(t, w, &list)
	if list.Total != 2 {
		t.Fatalf("expected 2 tasks, got %d", list.Total)
	}

	w = api.do(t, http.MethodGet, "/teams/"+team.ID+"/tasks?assignee_id="+agent.ID, nil)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &list)
	if list.Total != 1 || list.Tasks[0].Title != "one" {
		t.Errorf("unexpected filtered list %+v", list)
	}

	w = api.do(t, http.MethodGet, "/teams/"+team.ID+"/tasks?status=done", nil)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &list)
	if list.Total != 0 {
		t.Errorf("expected no done tasks, got %d", list.Total)
	}

	w = api.do(t, http.MethodGet, "/teams/"+team.ID+"/tasks?limit=1", nil)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &list)
	if list.Total != 1 {
		t.Errorf("expected limit to apply, got %d tasks", list.Total)
	}
}

func TestUpdateTaskEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Old title"})

	newTitle := "New title"
	w := api.do(t, http.MethodPatch, fmt.Sprintf("/tasks/%d", task.ID), dto.UpdateTaskRequest{
		Title:    &newTitle,
		Tags:     []string{"backend"},
		Metadata: map[string]interface{}{"size": "M"},
	})
	wantStatus(t, w, http.StatusOK)
	var updated dto.TaskDTO
	decode(t, w, &updated)
	if updated.Title != newTitle {
		t.Errorf("expected title updated, got %q", updated.Title)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "backend" {
		t.Errorf("expected tags replaced, got %v", updated.Tags)
	}
	if updated.Metadata["size"] != "M" {
		t.Errorf("expected metadata merged, got %v", updated.Metadata)
	}

	bad := models.TaskPriority("urgent")
	w = api.do(t, http.MethodPatch, fmt.Sprintf("/tasks/%d", task.ID), dto.UpdateTaskRequest{Priority: &bad})
	wantStatus(t, w, http.StatusUnprocessableEntity)
}

func TestTaskStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Ship it"})

	w := api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", task.ID),
		dto.ChangeTaskStatusRequest{Status: models.TaskStatusInProgress, ActorID: "operator"})
	wantStatus(t, w, http.StatusOK)
	var moved dto.TaskDTO
	decode(t, w, &moved)
	if moved.Status != models.TaskStatusInProgress {
		t.Errorf("expected in_progress, got %s", moved.Status)
	}

	// Skipping review is not a legal edge.
	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", task.ID),
		dto.ChangeTaskStatusRequest{Status: models.TaskStatusDone})
	wantStatus(t, w, http.StatusConflict)

	// Unknown statuses are a validation error, not a conflict.
	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", task.ID),
		dto.ChangeTaskStatusRequest{Status: "parked"})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	w = api.do(t, http.MethodPost, "/tasks/99999/status",
		dto.ChangeTaskStatusRequest{Status: models.TaskStatusInProgress})
	wantStatus(t, w, http.StatusNotFound)
}

func TestTaskDependenciesOverAPI(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	first := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "schema"})
	second := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "endpoints", DependsOn: []int64{first.ID}})

	// Blocked while the dependency is open.
	w := api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", second.ID),
		dto.ChangeTaskStatusRequest{Status: models.TaskStatusInProgress})
	wantStatus(t, w, http.StatusConflict)

	api.advance(t, first.ID,
		models.TaskStatusInProgress,
		models.TaskStatusInReview,
		models.TaskStatusInApproval,
		models.TaskStatusMerging,
		models.TaskStatusDone)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/status", second.ID),
		dto.ChangeTaskStatusRequest{Status: models.TaskStatusInProgress})
	wantStatus(t, w, http.StatusOK)
}

func TestAssignTaskEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	agent := api.seedAgent(t, team.ID, "dev-1", models.RoleEngineer)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Assign me"})

	w := api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/assign", task.ID),
		dto.AssignTaskRequest{AssigneeID: agent.ID})
	wantStatus(t, w, http.StatusOK)
	var assigned dto.TaskDTO
	decode(t, w, &assigned)
	if assigned.AssigneeID == nil || *assigned.AssigneeID != agent.ID {
		t.Errorf("expected assignee %s, got %v", agent.ID, assigned.AssigneeID)
	}

	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/assign", task.ID), dto.AssignTaskRequest{})
	wantStatus(t, w, http.StatusBadRequest)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/assign", task.ID),
		dto.AssignTaskRequest{AssigneeID: "missing"})
	wantStatus(t, w, http.StatusNotFound)
}

func TestBatchCreateEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)

	w := api.do(t, http.MethodPost, "/teams/"+team.ID+"/tasks/batch", dto.CreateTasksBatchRequest{
		Tasks: []service.TaskDraft{
			{Title: "schema"},
			{Title: "endpoints", DependsOnIndices: []int{0}},
			{Title: "docs", DependsOnIndices: []int{0, 1}},
		},
	})
	wantStatus(t, w, http.StatusCreated)
	var created dto.ListTasksResponse
	decode(t, w, &created)
	if created.Total != 3 {
		t.Fatalf("expected 3 tasks, got %d", created.Total)
	}
	if len(created.Tasks[1].DependsOn) != 1 || created.Tasks[1].DependsOn[0] != created.Tasks[0].ID {
		t.Errorf("expected second task to depend on first, got %v", created.Tasks[1].DependsOn)
	}

	// Forward references poison the whole batch.
	w = api.do(t, http.MethodPost, "/teams/"+team.ID+"/tasks/batch", dto.CreateTasksBatchRequest{
		Tasks: []service.TaskDraft{
			{Title: "a", DependsOnIndices: []int{1}},
			{Title: "b"},
		},
	})
	wantStatus(t, w, http.StatusUnprocessableEntity)

	w = api.do(t, http.MethodPost, "/teams/"+team.ID+"/tasks/batch", dto.CreateTasksBatchRequest{})
	wantStatus(t, w, http.StatusBadRequest)
}

func TestTaskContextEndpoints(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Contextual"})

	w := api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/context", task.ID),
		dto.SaveContextRequest{Key: "plan", Value: "start with the parser"})
	wantStatus(t, w, http.StatusOK)
	var ok dto.SuccessResponse
	decode(t, w, &ok)
	if !ok.Success {
		t.Error("expected success response")
	}

	w = api.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/context", task.ID),
		dto.SaveContextRequest{Value: "no key"})
	wantStatus(t, w, http.StatusBadRequest)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d/context", task.ID), nil)
	wantStatus(t, w, http.StatusOK)
	var ctxResp dto.TaskContextResponse
	decode(t, w, &ctxResp)
	if ctxResp.Context["plan"] != "start with the parser" {
		t.Errorf("unexpected context %v", ctxResp.Context)
	}

	w = api.do(t, http.MethodGet, "/tasks/99999/context", nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestTaskEventsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	task := api.seedTask(t, team.ID, dto.CreateTaskRequest{Title: "Audited"})
	api.advance(t, task.ID, models.TaskStatusInProgress)

	w := api.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d/events", task.ID), nil)
	wantStatus(t, w, http.StatusOK)
	var list dto.ListEventsResponse
	decode(t, w, &list)
	if list.Total < 2 {
		t.Fatalf("expected at least 2 events, got %d", list.Total)
	}
	if list.Events[0].Type != "task.created" {
		t.Errorf("expected first event task.created, got %s", list.Events[0].Type)
	}

	afterID := list.Events[0].ID
	w = api.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d/events?after_id=%d", task.ID, afterID), nil)
	wantStatus(t, w, http.StatusOK)
	var tail dto.ListEventsResponse
	decode(t, w, &tail)
	if tail.Total != list.Total-1 {
		t.Errorf("expected after_id to drop one event, got %d of %d", tail.Total, list.Total)
	}
}

func TestMessageEndpoints(t *testing.T) {
	api := newTestAPI(t)
	team := api.seedTeam(t)
	sender := api.seedAgent(t, team.ID, "dev-1", models.RoleEngineer)
	recipient := api.seedAgent(t, team.ID, "dev-2", models.RoleEngineer)

	w := api.do(t, http.MethodPost, "/teams/"+team.ID+"/messages", dto.SendMessageRequest{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Content:     "please pick up the parser task",
	})
	wantStatus(t, w, http.StatusCreated)
	var msg dto.MessageDTO
	decode(t, w, &msg)
	if msg.ID == "" || msg.ProcessedAt != nil {
		t.Fatalf("unexpected message %+v", msg)
	}

	w = api.do(t, http.MethodGet, "/agents/"+recipient.ID+"/inbox", nil)
	wantStatus(t, w, http.StatusOK)
	var inbox dto.ListMessagesResponse
	decode(t, w, &inbox)
	if inbox.Total != 1 || inbox.Messages[0].ID != msg.ID {
		t.Fatalf("unexpected inbox %+v", inbox)
	}

	w = api.do(t, http.MethodPost, "/messages/"+msg.ID+"/processed", nil)
	wantStatus(t, w, http.StatusOK)

	w = api.do(t, http.MethodGet, "/agents/"+recipient.ID+"/inbox", nil)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &inbox)
	if inbox.Total != 0 {
		t.Errorf("expected empty unprocessed inbox, got %d", inbox.Total)
	}

	w = api.do(t, http.MethodGet, "/agents/"+recipient.ID+"/inbox?unprocessed_only=false", nil)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &inbox)
	if inbox.Total != 1 {
		t.Errorf("expected full history to keep the message, got %d", inbox.Total)
	}

	w = api.do(t, http.MethodPost, "/messages/missing/processed", nil)
	wantStatus(t, w, http.StatusNotFound)

	// Content is required.
	w = api.do(t, http.MethodPost, "/teams/"+team.ID+"/messages", dto.SendMessageRequest{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
	})
	wantStatus(t, w, http.StatusUnprocessableEntity)
}
