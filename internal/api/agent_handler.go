package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/internal/agent"
)

// AgentHandler handles agent listing requests
type AgentHandler struct {
	orchestrator *agent.Orchestrator
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(orchestrator *agent.Orchestrator) *AgentHandler {
	return &AgentHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers agent routes
func (h *AgentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/agents", h.List)
}

// List returns all registered agents
func (h *AgentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": h.orchestrator.List()})
}
