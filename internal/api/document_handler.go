package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/internal/domain"
	"agentchat/internal/rag"
)

// DocumentHandler handles knowledge base management requests
type DocumentHandler struct {
	engine *rag.Engine
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(engine *rag.Engine) *DocumentHandler {
	return &DocumentHandler{engine: engine}
}

// RegisterRoutes registers document routes
func (h *DocumentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/documents", h.Ingest)
	r.GET("/documents/stats", h.Stats)
	r.DELETE("/documents", h.Clear)
}

// Ingest chunks, embeds, and indexes documents
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req domain.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.engine.AddDocuments(c.Request.Context(), req.Documents)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats reports the vector collection state
func (h *DocumentHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// Clear drops all indexed documents
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.engine.Clear(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
