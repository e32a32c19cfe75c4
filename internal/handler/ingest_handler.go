package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/attrebi/kbase/internal/pkg/errcode"
	"github.com/attrebi/kbase/internal/pkg/response"
	"github.com/attrebi/kbase/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestTextRequest struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (h *IngestHandler) IngestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.ingest.IngestText(c.Request.Context(), getUserID(c), req.Title, req.Content, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type ingestURLRequest struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (h *IngestHandler) IngestURL(c *gin.Context) {
	var req ingestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.ingest.IngestURL(c.Request.Context(), getUserID(c), req.Title, req.URL, req.Content, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// IngestFile accepts a multipart upload: the file under "file", plus
// optional "title" and "metadata" (a JSON object) form fields.
func (h *IngestHandler) IngestFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if fileHeader.Size > service.MaxFileSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to open upload")
		return
	}
	defer file.Close()

	var metadata map[string]string
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid metadata")
			return
		}
	}
	doc, err := h.ingest.IngestFile(c.Request.Context(), getUserID(c),
		c.PostForm("title"), fileHeader.Filename, file, fileHeader.Size, metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}
