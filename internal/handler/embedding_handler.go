package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/attrebi/kbase/internal/pkg/response"
	"github.com/attrebi/kbase/internal/service"
)

type EmbeddingHandler struct {
	documents  *service.DocumentService
	embeddings *service.EmbeddingService
}

func NewEmbeddingHandler(documents *service.DocumentService, embeddings *service.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{documents: documents, embeddings: embeddings}
}

// Generate runs embedding generation for one document synchronously and
// reports how many vectors were produced.
func (h *EmbeddingHandler) Generate(c *gin.Context) {
	userID := getUserID(c)
	docID := c.Param("id")
	if _, err := h.documents.Get(c.Request.Context(), userID, docID); err != nil {
		handleError(c, err)
		return
	}
	generated, err := h.embeddings.GenerateForDocument(c.Request.Context(), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"generated": generated})
}

func (h *EmbeddingHandler) Stats(c *gin.Context) {
	stats, err := h.documents.EmbeddingStats(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
