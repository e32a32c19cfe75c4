package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/attrebi/kbase/internal/middleware"
)

type RouterDeps struct {
	Ingest     *IngestHandler
	Documents  *DocumentHandler
	Search     *SearchHandler
	Embeddings *EmbeddingHandler
	JWTSecret  []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	kb := api.Group("/kb")
	kb.Use(middleware.JWTAuth(deps.JWTSecret))

	ingestLimit := middleware.RateLimit(time.Second)
	kb.POST("/documents", ingestLimit, deps.Ingest.IngestText)
	kb.POST("/documents/url", ingestLimit, deps.Ingest.IngestURL)
	kb.POST("/documents/file", ingestLimit, deps.Ingest.IngestFile)

	kb.GET("/documents", deps.Documents.List)
	kb.GET("/documents/:id", deps.Documents.Get)
	kb.PUT("/documents/:id", deps.Documents.UpdateMeta)
	kb.DELETE("/documents/:id", deps.Documents.Delete)
	kb.GET("/documents/:id/chunks", deps.Documents.Chunks)
	kb.GET("/chunks/:id", deps.Documents.Chunk)

	kb.POST("/documents/:id/embeddings", deps.Embeddings.Generate)
	kb.GET("/documents/:id/similar", deps.Search.Similar)

	kb.POST("/documents/:id/links", deps.Documents.Link)
	kb.DELETE("/documents/:id/links/:chat_id", deps.Documents.Unlink)
	kb.GET("/chats/:chat_id/documents", deps.Documents.LinkedDocs)

	kb.GET("/search/keyword", deps.Search.Keyword)
	kb.GET("/search/semantic", deps.Search.Semantic)
	kb.GET("/search/hybrid", deps.Search.Hybrid)

	kb.GET("/stats", deps.Documents.Stats)
	kb.GET("/stats/embeddings", deps.Embeddings.Stats)
}
