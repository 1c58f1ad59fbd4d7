// Package handlers exposes the control plane over HTTP: the REST
// surface, the WebSocket team feed and the error→status mapping.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/gitops"
	"github.com/openclaw/openclaw/internal/runner"
)

// AgentRunner starts one agent turn. The run endpoint spawns it in the
// background; the runner owns session and status lifecycle.
type AgentRunner interface {
	Run(ctx context.Context, req runner.RunRequest) (*runner.RunResult, error)
}

// GitInspector is the read-only slice of the git service the task
// inspection endpoints need.
type GitInspector interface {
	Diff(ctx context.Context, repo *models.Repository, branch string) (string, error)
	ChangedFiles(ctx context.Context, repo *models.Repository, branch string) ([]gitops.DiffFile, error)
	FileContent(ctx context.Context, repo *models.Repository, branch, path string) (string, error)
}

// Handlers is the HTTP boundary of the control plane.
type Handlers struct {
	svc      *service.Service
	git      GitInspector
	runner   AgentRunner
	adapters []string
	bus      bus.EventBus
	logger   *logger.Logger
}

// Options wires the collaborators a server process provides. Git,
// Runner and Bus may be nil; the affected endpoints then report the
// capability as unconfigured.
type Options struct {
	Service  *service.Service
	Git      GitInspector
	Runner   AgentRunner
	Adapters []string
	Bus      bus.EventBus
	Logger   *logger.Logger
}

// New creates the HTTP handler set.
func New(opts Options) *Handlers {
	return &Handlers{
		svc:      opts.Service,
		git:      opts.Git,
		runner:   opts.Runner,
		adapters: opts.Adapters,
		bus:      opts.Bus,
		logger:   opts.Logger.WithFields(zap.String("component", "api-handlers")),
	}
}

// Register mounts every route on the router.
func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/health", h.health)

	router.POST("/orgs", h.createOrg)
	router.GET("/orgs/:id", h.getOrg)
	router.POST("/orgs/:id/teams", h.createTeam)
	router.GET("/teams/:id", h.getTeam)
	router.POST("/teams/:id/agents", h.createAgent)
	router.GET("/teams/:id/agents", h.listAgents)
	router.POST("/teams/:id/repos", h.createRepo)
	router.GET("/teams/:id/repos", h.listRepos)
	router.POST("/teams/:id/conventions", h.addConvention)
	router.GET("/teams/:id/conventions", h.listConventions)

	router.POST("/teams/:id/tasks", h.createTask)
	router.POST("/teams/:id/tasks/batch", h.createTasksBatch)
	router.GET("/teams/:id/tasks", h.listTasks)
	router.GET("/tasks/:id", h.getTask)
	router.PATCH("/tasks/:id", h.updateTask)
	router.POST("/tasks/:id/status", h.changeTaskStatus)
	router.POST("/tasks/:id/assign", h.assignTask)
	router.GET("/tasks/:id/events", h.listTaskEvents)
	router.POST("/tasks/:id/comments", h.addTaskComment)
	router.POST("/tasks/:id/context", h.saveTaskContext)
	router.GET("/tasks/:id/context", h.getTaskContext)

	router.POST("/teams/:id/messages", h.sendMessage)
	router.GET("/agents/:id/inbox", h.inbox)
	router.POST("/messages/:id/processed", h.markMessageProcessed)

	router.POST("/sessions/start", h.startSession)
	router.POST("/sessions/:id/usage", h.recordUsage)
	router.POST("/sessions/:id/end", h.endSession)
	router.GET("/agents/:id/budget", h.agentBudget)
	router.GET("/teams/:id/costs", h.teamCosts)

	router.POST("/human-requests", h.createHumanRequest)
	router.GET("/human-requests/:id", h.getHumanRequest)
	router.POST("/human-requests/:id/respond", h.respondHumanRequest)
	router.GET("/teams/:id/human-requests", h.listHumanRequests)

	router.POST("/tasks/:id/reviews", h.requestReview)
	router.GET("/tasks/:id/reviews", h.listReviews)
	router.POST("/reviews/:id/comments", h.addReviewComment)
	router.POST("/reviews/:id/verdict", h.submitVerdict)
	router.POST("/tasks/:id/approve", h.approveTask)
	router.POST("/tasks/:id/reject", h.rejectTask)
	router.GET("/tasks/:id/merge-status", h.mergeStatus)
	router.POST("/tasks/:id/merge", h.queueMerge)

	router.POST("/tasks/:id/push", h.pushBranch)
	router.POST("/tasks/:id/pr", h.createPR)
	router.GET("/tasks/:id/diff", h.taskDiff)
	router.GET("/tasks/:id/files", h.taskFiles)
	router.GET("/repos/:id/file", h.repoFile)

	router.POST("/agents/:id/run", h.runAgent)
	router.GET("/adapters", h.listAdapters)

	router.GET("/ws", h.teamFeed)
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) listAdapters(c *gin.Context) {
	adapters := h.adapters
	if adapters == nil {
		adapters = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"adapters": adapters})
}
