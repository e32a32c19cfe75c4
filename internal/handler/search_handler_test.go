package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/attrebi/kbase/internal/handler"
	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/pkg/errcode"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
	"github.com/attrebi/kbase/internal/pkg/jwt"
	"github.com/attrebi/kbase/internal/service"
)

type stubDocStore struct {
	docs []model.Document
}

func (s *stubDocStore) Create(ctx context.Context, doc *model.Document) error { return nil }

func (s *stubDocStore) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	for i := range s.docs {
		if s.docs[i].ID == docID && s.docs[i].UserID == userID {
			return &s.docs[i], nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *stubDocStore) List(ctx context.Context, userID string, filter model.DocumentFilter) ([]model.Document, error) {
	return nil, nil
}

func (s *stubDocStore) UpdateMeta(ctx context.Context, userID, docID string, title *string, metadata map[string]string, mtime int64) error {
	return nil
}

func (s *stubDocStore) UpdateStatus(ctx context.Context, docID, status string, chunkCount int, mtime int64) error {
	return nil
}

func (s *stubDocStore) Delete(ctx context.Context, userID, docID string) error { return nil }

func (s *stubDocStore) KeywordCandidates(ctx context.Context, userID string, tokens []string, limit uint) ([]model.Document, error) {
	matched := make([]model.Document, 0)
	for _, doc := range s.docs {
		if doc.UserID != userID || doc.Status != model.DocumentStatusReady {
			continue
		}
		haystack := strings.ToLower(doc.Title + " " + doc.Content)
		hit := true
		for _, token := range tokens {
			if !strings.Contains(haystack, token) {
				hit = false
				break
			}
		}
		if hit {
			matched = append(matched, doc)
		}
		if limit > 0 && uint(len(matched)) == limit {
			break
		}
	}
	return matched, nil
}

func (s *stubDocStore) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	return &model.UserStats{}, nil
}

type stubEmbStore struct{}

func (stubEmbStore) Upsert(ctx context.Context, emb *model.ChunkEmbedding) error { return nil }

func (stubEmbStore) ListCandidates(ctx context.Context, userID, excludeDocID string) ([]model.EmbeddingCandidate, error) {
	return nil, nil
}

func (stubEmbStore) FirstChunkEmbedding(ctx context.Context, userID, docID string) (*model.ChunkEmbedding, error) {
	return nil, appErr.ErrNotFound
}

func (stubEmbStore) ListPendingDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	return nil, nil
}

func (stubEmbStore) Stats(ctx context.Context, userID string) (*model.EmbeddingStats, error) {
	return &model.EmbeddingStats{}, nil
}

// newSearchRouter wires the real routes around a search service that has no
// embedding client configured.
func newSearchRouter(t *testing.T, docs *stubDocStore, secret []byte) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	search := service.NewSearchService(docs, stubEmbStore{}, nil)
	deps := handler.RouterDeps{
		Ingest:     handler.NewIngestHandler(nil),
		Documents:  handler.NewDocumentHandler(nil),
		Search:     handler.NewSearchHandler(search),
		Embeddings: handler.NewEmbeddingHandler(nil, nil),
		JWTSecret:  secret,
	}
	engine := gin.New()
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)
	return engine
}

func doSearch(t *testing.T, router http.Handler, token, path string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, 0, result.Code)
	return result.Data
}

func TestHybridFallsBackToKeywordWhenDisabled(t *testing.T) {
	docs := &stubDocStore{docs: []model.Document{
		{ID: "d1", UserID: "u1", Title: "Golang tips", Content: "notes about golang", SourceType: model.SourceTypeText, Status: model.DocumentStatusReady, Mtime: 30},
		{ID: "d2", UserID: "u1", Title: "Other", Content: "golang again", SourceType: model.SourceTypeText, Status: model.DocumentStatusReady, Mtime: 20},
		{ID: "d3", UserID: "u2", Title: "Golang", Content: "wrong owner", SourceType: model.SourceTypeText, Status: model.DocumentStatusReady, Mtime: 10},
	}}
	secret := []byte("test-secret")
	router := newSearchRouter(t, docs, secret)
	token, err := jwt.GenerateToken("u1", secret, time.Hour)
	require.NoError(t, err)

	hybrid := doSearch(t, router, token, "/api/v1/kb/search/hybrid?q=golang&limit=5")
	keyword := doSearch(t, router, token, "/api/v1/kb/search/keyword?q=golang&limit=5")

	// Without an embedding client the hybrid endpoint serves plain keyword
	// results, identical to the keyword endpoint for the same query.
	require.Equal(t, "keyword", hybrid["mode"])
	require.Equal(t, keyword["results"], hybrid["results"])
	results, ok := hybrid["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
}

func TestSearchRequiresToken(t *testing.T) {
	router := newSearchRouter(t, &stubDocStore{}, []byte("test-secret"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/kb/search/hybrid?q=golang", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, errcode.ErrUnauthorized, result.Code)
}
