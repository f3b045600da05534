package api

import (
	"github.com/gin-gonic/gin"

	"agentchat/internal/agent"
	"agentchat/internal/api/middleware"
	"agentchat/internal/rag"
	"agentchat/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	chatService *service.ChatService,
	sessionService *service.SessionService,
	engine *rag.Engine,
	orchestrator *agent.Orchestrator,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.APIKey))

	NewChatHandler(chatService).RegisterRoutes(v1)
	NewSessionHandler(sessionService).RegisterRoutes(v1)
	NewDocumentHandler(engine).RegisterRoutes(v1)
	NewAgentHandler(orchestrator).RegisterRoutes(v1)

	return r
}
