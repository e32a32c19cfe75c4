package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attrebi/kbase/internal/pkg/response"
	"github.com/attrebi/kbase/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

func (h *SearchHandler) Keyword(c *gin.Context) {
	results, err := h.search.KeywordSearch(c.Request.Context(), getUserID(c),
		c.Query("q"), parseUint(c.Query("limit"), 20))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"mode": "keyword", "results": results})
}

func (h *SearchHandler) Semantic(c *gin.Context) {
	results, err := h.search.SemanticSearch(c.Request.Context(), getUserID(c),
		c.Query("q"), parseUint(c.Query("limit"), 20))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"mode": "semantic", "results": results})
}

// Hybrid degrades to keyword-only ranking when no embedding provider is
// configured, so the endpoint keeps working on minimal deployments.
func (h *SearchHandler) Hybrid(c *gin.Context) {
	userID := getUserID(c)
	query := c.Query("q")
	limit := parseUint(c.Query("limit"), 20)
	if !h.search.Enabled() {
		results, err := h.search.KeywordSearch(c.Request.Context(), userID, query, limit)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"mode": "keyword", "results": results})
		return
	}
	weight := 0.0
	if value := c.Query("weight"); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			weight = parsed
		}
	}
	results, err := h.search.HybridSearch(c.Request.Context(), userID, query, limit, weight)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"mode": "hybrid", "results": results})
}

func (h *SearchHandler) Similar(c *gin.Context) {
	results, err := h.search.FindSimilar(c.Request.Context(), getUserID(c),
		c.Param("id"), parseUint(c.Query("limit"), 10))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, results)
}
