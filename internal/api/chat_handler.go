package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/internal/domain"
	"agentchat/internal/service"
)

// doneSentinel terminates every SSE stream after the final event.
const doneSentinel = "[DONE]"

// ChatHandler handles chat API requests
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.POST("/chat/stream", h.ChatStream)
}

// Chat handles a blocking chat message
func (h *ChatHandler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatStream handles a streaming chat message over SSE. Each event is one
// JSON object on a data line; the stream always ends with a [DONE] line.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events := h.chatService.ChatStream(c.Request.Context(), req)

	// A failed turn ends on its error event; the terminator only follows a
	// completed stream.
	failed := false
	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			if !failed {
				fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
			}
			return false
		}
		if event.Type == domain.StreamError {
			failed = true
		}
		data, err := json.Marshal(event)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	})
}
