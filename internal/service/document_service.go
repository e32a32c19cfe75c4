package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
	"github.com/attrebi/kbase/internal/pkg/timeutil"
)

type DocumentService struct {
	docs       DocumentStore
	chunks     ChunkStore
	embStore   EmbeddingStore
	links      ChatLinkStore
	embeddings *EmbeddingService
}

func NewDocumentService(docs DocumentStore, chunks ChunkStore, embStore EmbeddingStore, links ChatLinkStore, embeddings *EmbeddingService) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks, embStore: embStore, links: links, embeddings: embeddings}
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

func (s *DocumentService) List(ctx context.Context, userID string, filter model.DocumentFilter) ([]model.Document, error) {
	return s.docs.List(ctx, userID, filter)
}

// UpdateMeta changes the title and/or replaces the metadata map. Content is
// immutable after ingestion; changing it would invalidate chunks and
// embeddings, so re-ingest instead.
func (s *DocumentService) UpdateMeta(ctx context.Context, userID, docID string, title *string, metadata map[string]string) error {
	if title == nil && metadata == nil {
		return appErr.ErrInvalid
	}
	if title != nil && strings.TrimSpace(*title) == "" {
		return appErr.ErrInvalid
	}
	return s.docs.UpdateMeta(ctx, userID, docID, title, metadata, timeutil.NowMillis())
}

// Delete removes the document and everything hanging off it. Any in-flight
// embedding generation for the document is aborted first.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	if s.embeddings != nil {
		s.embeddings.Cancel(docID)
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("document deleted",
		zap.String("user_id", userID), zap.String("doc_id", docID))
	return nil
}

func (s *DocumentService) GetChunks(ctx context.Context, userID, docID string) ([]model.Chunk, error) {
	if _, err := s.docs.GetByID(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDoc(ctx, userID, docID)
}

func (s *DocumentService) GetChunk(ctx context.Context, userID, chunkID string) (*model.Chunk, error) {
	return s.chunks.GetByID(ctx, userID, chunkID)
}

// LinkToChat attaches a document to a chat as retrieval context. Ownership
// is checked so users cannot link documents they cannot read.
func (s *DocumentService) LinkToChat(ctx context.Context, userID, docID, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return appErr.ErrInvalid
	}
	if _, err := s.docs.GetByID(ctx, userID, docID); err != nil {
		return err
	}
	return s.links.Link(ctx, &model.ChatLink{
		DocumentID: docID,
		ChatID:     chatID,
		UserID:     userID,
		Ctime:      timeutil.NowMillis(),
	})
}

func (s *DocumentService) UnlinkFromChat(ctx context.Context, userID, docID, chatID string) error {
	return s.links.Unlink(ctx, userID, docID, chatID)
}

func (s *DocumentService) GetLinkedDocs(ctx context.Context, userID, chatID string) ([]model.Document, error) {
	return s.links.ListDocsByChat(ctx, userID, chatID)
}

func (s *DocumentService) UserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	return s.docs.Stats(ctx, userID)
}

func (s *DocumentService) EmbeddingStats(ctx context.Context, userID string) (*model.EmbeddingStats, error) {
	return s.embStore.Stats(ctx, userID)
}
