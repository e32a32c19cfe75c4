package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
)

// fakeStore is an in-memory implementation of all four storage interfaces,
// close enough to the postgres semantics for service tests.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string]*model.Document
	chunks     map[string]*model.Chunk
	embeddings map[string]*model.ChunkEmbedding
	links      map[string]*model.ChatLink
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:       make(map[string]*model.Document),
		chunks:     make(map[string]*model.Chunk),
		embeddings: make(map[string]*model.ChunkEmbedding),
		links:      make(map[string]*model.ChatLink),
	}
}

func (f *fakeStore) Create(ctx context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *doc
	f.docs[doc.ID] = &clone
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (f *fakeStore) List(ctx context.Context, userID string, filter model.DocumentFilter) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Document, 0)
	for _, doc := range f.docs {
		if doc.UserID != userID {
			continue
		}
		if filter.SourceType != "" && doc.SourceType != filter.SourceType {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		result = append(result, *doc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Mtime > result[j].Mtime })
	return result, nil
}

func (f *fakeStore) UpdateMeta(ctx context.Context, userID, docID string, title *string, metadata map[string]string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return appErr.ErrNotFound
	}
	if title != nil {
		doc.Title = *title
	}
	if metadata != nil {
		doc.Metadata = metadata
	}
	doc.Mtime = mtime
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, docID, status string, chunkCount int, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return appErr.ErrNotFound
	}
	doc.Status = status
	doc.ChunkCount = chunkCount
	doc.Mtime = mtime
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, userID, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(f.docs, docID)
	for id, chunk := range f.chunks {
		if chunk.DocumentID == docID {
			delete(f.chunks, id)
			delete(f.embeddings, id)
		}
	}
	for key, link := range f.links {
		if link.DocumentID == docID {
			delete(f.links, key)
		}
	}
	return nil
}

func (f *fakeStore) KeywordCandidates(ctx context.Context, userID string, tokens []string, limit uint) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Document, 0)
	for _, doc := range f.docs {
		if doc.UserID != userID || doc.Status != model.DocumentStatusReady {
			continue
		}
		haystack := strings.ToLower(doc.Title) + "\n" + strings.ToLower(doc.Content)
		all := true
		for _, token := range tokens {
			if !strings.Contains(haystack, token) {
				all = false
				break
			}
		}
		if all {
			result = append(result, *doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Mtime > result[j].Mtime })
	if limit > 0 && uint(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeStore) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.UserStats{
		BySourceType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}
	for _, doc := range f.docs {
		if doc.UserID != userID {
			continue
		}
		stats.DocumentCount++
		stats.BySourceType[doc.SourceType]++
		stats.ByStatus[doc.Status]++
	}
	for _, chunk := range f.chunks {
		if chunk.UserID == userID {
			stats.ChunkCount++
		}
	}
	return stats, nil
}

func (f *fakeStore) BatchCreate(ctx context.Context, chunks []*model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunk := range chunks {
		clone := *chunk
		f.chunks[chunk.ID] = &clone
	}
	return nil
}

func (f *fakeStore) ListByDoc(ctx context.Context, userID, docID string) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Chunk, 0)
	for _, chunk := range f.chunks {
		if chunk.DocumentID == docID && chunk.UserID == userID {
			result = append(result, *chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChunkIndex < result[j].ChunkIndex })
	return result, nil
}

func (f *fakeStore) GetChunkByID(ctx context.Context, userID, chunkID string) (*model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[chunkID]
	if !ok || chunk.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	clone := *chunk
	return &clone, nil
}

func (f *fakeStore) ListMissingEmbeddings(ctx context.Context, docID string) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Chunk, 0)
	for _, chunk := range f.chunks {
		if chunk.DocumentID != docID {
			continue
		}
		if _, ok := f.embeddings[chunk.ID]; ok {
			continue
		}
		result = append(result, *chunk)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChunkIndex < result[j].ChunkIndex })
	return result, nil
}

func (f *fakeStore) Upsert(ctx context.Context, emb *model.ChunkEmbedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *emb
	f.embeddings[emb.ChunkID] = &clone
	return nil
}

func (f *fakeStore) ListCandidates(ctx context.Context, userID, excludeDocID string) ([]model.EmbeddingCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.EmbeddingCandidate, 0)
	for _, emb := range f.embeddings {
		if emb.UserID != userID {
			continue
		}
		if excludeDocID != "" && emb.DocumentID == excludeDocID {
			continue
		}
		doc, ok := f.docs[emb.DocumentID]
		if !ok || doc.Status != model.DocumentStatusReady {
			continue
		}
		chunk := f.chunks[emb.ChunkID]
		if chunk == nil {
			continue
		}
		result = append(result, model.EmbeddingCandidate{
			ChunkID:    emb.ChunkID,
			DocumentID: emb.DocumentID,
			ChunkIndex: chunk.ChunkIndex,
			Content:    chunk.Content,
			DocTitle:   doc.Title,
			SourceType: doc.SourceType,
			Embedding:  emb.Embedding,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DocumentID != result[j].DocumentID {
			return result[i].DocumentID < result[j].DocumentID
		}
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	return result, nil
}

func (f *fakeStore) FirstChunkEmbedding(ctx context.Context, userID, docID string) (*model.ChunkEmbedding, error) {
	chunks, err := f.ListByDoc(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(chunks) == 0 {
		return nil, appErr.ErrNotFound
	}
	emb, ok := f.embeddings[chunks[0].ID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *emb
	return &clone, nil
}

func (f *fakeStore) ListPendingDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := make(map[string]bool)
	for _, chunk := range f.chunks {
		if _, ok := f.embeddings[chunk.ID]; !ok {
			pending[chunk.DocumentID] = true
		}
	}
	result := make([]model.Document, 0)
	for docID := range pending {
		doc, ok := f.docs[docID]
		if !ok || doc.Status != model.DocumentStatusReady {
			continue
		}
		result = append(result, *doc)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (f *fakeStore) EmbeddingStats(ctx context.Context, userID string) (*model.EmbeddingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.EmbeddingStats{ByModel: make(map[string]int)}
	for _, chunk := range f.chunks {
		if chunk.UserID == userID {
			stats.TotalChunks++
		}
	}
	for _, emb := range f.embeddings {
		if emb.UserID != userID {
			continue
		}
		stats.EmbeddedChunks++
		stats.ByModel[emb.ModelName]++
	}
	if stats.TotalChunks > 0 {
		stats.Coverage = float64(stats.EmbeddedChunks) / float64(stats.TotalChunks)
	}
	return stats, nil
}

func (f *fakeStore) Link(ctx context.Context, link *model.ChatLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := link.DocumentID + "|" + link.ChatID
	if _, ok := f.links[key]; ok {
		return nil
	}
	clone := *link
	f.links[key] = &clone
	return nil
}

func (f *fakeStore) Unlink(ctx context.Context, userID, docID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := docID + "|" + chatID
	link, ok := f.links[key]
	if !ok || link.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(f.links, key)
	return nil
}

func (f *fakeStore) ListDocsByChat(ctx context.Context, userID, chatID string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Document, 0)
	for _, link := range f.links {
		if link.UserID != userID || link.ChatID != chatID {
			continue
		}
		if doc, ok := f.docs[link.DocumentID]; ok {
			result = append(result, *doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// chunkStoreAdapter renames GetChunkByID to satisfy ChunkStore without
// clashing with the document GetByID on fakeStore.
type chunkStoreAdapter struct {
	*fakeStore
}

func (a chunkStoreAdapter) GetByID(ctx context.Context, userID, chunkID string) (*model.Chunk, error) {
	return a.GetChunkByID(ctx, userID, chunkID)
}

// embStoreAdapter maps the EmbeddingStore Stats method onto the fake.
type embStoreAdapter struct {
	*fakeStore
}

func (a embStoreAdapter) Stats(ctx context.Context, userID string) (*model.EmbeddingStats, error) {
	return a.EmbeddingStats(ctx, userID)
}

type fakeClient struct {
	mu        sync.Mutex
	enabled   bool
	model     string
	dimension int
	embedFunc func(text, taskType string) ([]float32, error)
	calls     []string
}

func (f *fakeClient) Enabled() bool {
	return f.enabled
}

func (f *fakeClient) ModelName() string {
	return f.model
}

func (f *fakeClient) Dimension() int {
	return f.dimension
}

func (f *fakeClient) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return f.embedFunc(text, taskType)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
