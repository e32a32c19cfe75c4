package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/pkg/errcode"
	"github.com/attrebi/kbase/internal/pkg/response"
	"github.com/attrebi/kbase/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) List(c *gin.Context) {
	filter := model.DocumentFilter{
		SourceType: c.Query("source_type"),
		Status:     c.Query("status"),
		Limit:      parseUint(c.Query("limit"), 50),
		Offset:     parseUint(c.Query("offset"), 0),
	}
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type updateMetaRequest struct {
	Title    *string            `json:"title"`
	Metadata *map[string]string `json:"metadata"`
}

func (h *DocumentHandler) UpdateMeta(c *gin.Context) {
	var req updateMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	var metadata map[string]string
	if req.Metadata != nil {
		metadata = *req.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
	}
	err := h.documents.UpdateMeta(c.Request.Context(), getUserID(c), c.Param("id"), req.Title, metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.documents.GetChunks(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunks)
}

func (h *DocumentHandler) Chunk(c *gin.Context) {
	chunk, err := h.documents.GetChunk(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunk)
}

type chatLinkRequest struct {
	ChatID string `json:"chat_id"`
}

func (h *DocumentHandler) Link(c *gin.Context) {
	var req chatLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	err := h.documents.LinkToChat(c.Request.Context(), getUserID(c), c.Param("id"), req.ChatID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Unlink(c *gin.Context) {
	err := h.documents.UnlinkFromChat(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("chat_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) LinkedDocs(c *gin.Context) {
	docs, err := h.documents.GetLinkedDocs(c.Request.Context(), getUserID(c), c.Param("chat_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.UserStats(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
