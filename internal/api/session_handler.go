package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/internal/domain"
	"agentchat/internal/service"
)

// SessionHandler handles session management requests
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions", h.List)
	r.GET("/sessions/:session_id", h.Get)
	r.GET("/sessions/:session_id/messages", h.Messages)
	r.DELETE("/sessions/:session_id", h.Delete)
}

// List returns all conversations
func (h *SessionHandler) List(c *gin.Context) {
	conversations, err := h.sessionService.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": conversations})
}

// Get returns one conversation
func (h *SessionHandler) Get(c *gin.Context) {
	conv, err := h.sessionService.Get(c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Messages returns a conversation's message history
func (h *SessionHandler) Messages(c *gin.Context) {
	messages, err := h.sessionService.Messages(c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Delete removes a conversation and its messages
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessionService.Delete(c.Param("session_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
