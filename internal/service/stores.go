package service

import (
	"context"

	"github.com/attrebi/kbase/internal/model"
)

// Storage interfaces consumed by the services. The repo package provides the
// production implementations; tests substitute in-memory fakes.

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	List(ctx context.Context, userID string, filter model.DocumentFilter) ([]model.Document, error)
	UpdateMeta(ctx context.Context, userID, docID string, title *string, metadata map[string]string, mtime int64) error
	UpdateStatus(ctx context.Context, docID, status string, chunkCount int, mtime int64) error
	Delete(ctx context.Context, userID, docID string) error
	KeywordCandidates(ctx context.Context, userID string, tokens []string, limit uint) ([]model.Document, error)
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
}

type ChunkStore interface {
	BatchCreate(ctx context.Context, chunks []*model.Chunk) error
	ListByDoc(ctx context.Context, userID, docID string) ([]model.Chunk, error)
	GetByID(ctx context.Context, userID, chunkID string) (*model.Chunk, error)
	ListMissingEmbeddings(ctx context.Context, docID string) ([]model.Chunk, error)
}

type EmbeddingStore interface {
	Upsert(ctx context.Context, emb *model.ChunkEmbedding) error
	ListCandidates(ctx context.Context, userID, excludeDocID string) ([]model.EmbeddingCandidate, error)
	FirstChunkEmbedding(ctx context.Context, userID, docID string) (*model.ChunkEmbedding, error)
	ListPendingDocuments(ctx context.Context, limit int) ([]model.Document, error)
	Stats(ctx context.Context, userID string) (*model.EmbeddingStats, error)
}

type ChatLinkStore interface {
	Link(ctx context.Context, link *model.ChatLink) error
	Unlink(ctx context.Context, userID, docID, chatID string) error
	ListDocsByChat(ctx context.Context, userID, chatID string) ([]model.Document, error)
}

// EmbeddingClient is the slice of ai.Client the services need.
type EmbeddingClient interface {
	Enabled() bool
	ModelName() string
	Dimension() int
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}
