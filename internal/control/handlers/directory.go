package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/control/dto"
	"github.com/openclaw/openclaw/internal/control/models"
)

func (h *Handlers) createOrg(c *gin.Context) {
	var body dto.CreateOrgRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	org, err := h.svc.CreateOrg(c.Request.Context(), &models.Organization{
		Name: body.Name,
		Slug: body.Slug,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromOrg(org))
}

func (h *Handlers) getOrg(c *gin.Context) {
	org, err := h.svc.GetOrg(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrg(org))
}

func (h *Handlers) createTeam(c *gin.Context) {
	var body dto.CreateTeamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	team, err := h.svc.CreateTeam(c.Request.Context(), &models.Team{
		OrgID:  c.Param("id"),
		Name:   body.Name,
		Slug:   body.Slug,
		Config: body.Config,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromTeam(team))
}

func (h *Handlers) getTeam(c *gin.Context) {
	team, err := h.svc.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTeam(team))
}

func (h *Handlers) createAgent(c *gin.Context) {
	var body dto.CreateAgentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	agent, err := h.svc.CreateAgent(c.Request.Context(), &models.Agent{
		TeamID: c.Param("id"),
		Name:   body.Name,
		Role:   body.Role,
		Model:  body.Model,
		Config: body.Config,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromAgent(agent))
}

func (h *Handlers) listAgents(c *gin.Context) {
	agents, err := h.svc.ListAgents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	agentDTOs := make([]dto.AgentDTO, 0, len(agents))
	for _, a := range agents {
		agentDTOs = append(agentDTOs, dto.FromAgent(a))
	}
	c.JSON(http.StatusOK, dto.ListAgentsResponse{Agents: agentDTOs, Total: len(agentDTOs)})
}

func (h *Handlers) createRepo(c *gin.Context) {
	var body dto.CreateRepoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	repo, err := h.svc.CreateRepo(c.Request.Context(), &models.Repository{
		TeamID:        c.Param("id"),
		Name:          body.Name,
		LocalPath:     body.LocalPath,
		DefaultBranch: body.DefaultBranch,
		Config:        body.Config,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromRepository(repo))
}

func (h *Handlers) listRepos(c *gin.Context) {
	repos, err := h.svc.ListRepos(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	repoDTOs := make([]dto.RepositoryDTO, 0, len(repos))
	for _, r := range repos {
		repoDTOs = append(repoDTOs, dto.FromRepository(r))
	}
	c.JSON(http.StatusOK, gin.H{"repos": repoDTOs, "total": len(repoDTOs)})
}

func (h *Handlers) addConvention(c *gin.Context) {
	var body dto.AddConventionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	team, err := h.svc.AddConvention(c.Request.Context(), c.Param("id"), body.Key, body.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromTeam(team))
}

func (h *Handlers) listConventions(c *gin.Context) {
	conventions, err := h.svc.Conventions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if conventions == nil {
		conventions = []models.Convention{}
	}
	c.JSON(http.StatusOK, gin.H{"conventions": conventions, "total": len(conventions)})
}
