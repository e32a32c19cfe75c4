package service

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/attrebi/kbase/internal/ai"
	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/pkg/timeutil"
	"github.com/attrebi/kbase/internal/worker"
)

// EmbeddingService drives embedding generation for document chunks. Work
// runs on a shared worker pool; one in-flight generation per document, with
// a cancel handle so deleting a document can abort its pending work.
type EmbeddingService struct {
	chunks     ChunkStore
	embeddings EmbeddingStore
	client     EmbeddingClient
	pool       *worker.Pool
	delay      time.Duration

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewEmbeddingService(chunks ChunkStore, embeddings EmbeddingStore, client EmbeddingClient, pool *worker.Pool, delay time.Duration) *EmbeddingService {
	return &EmbeddingService{
		chunks:     chunks,
		embeddings: embeddings,
		client:     client,
		pool:       pool,
		delay:      delay,
		inflight:   make(map[string]context.CancelFunc),
	}
}

func (s *EmbeddingService) Enabled() bool {
	return s.client != nil && s.client.Enabled()
}

// GenerateForDocument embeds every chunk of the document that has no stored
// vector yet and reports how many it produced. A chunk that fails to embed
// is logged and skipped so one bad chunk cannot wedge the document; the next
// run picks it up again. Requests are paced by the configured delay.
func (s *EmbeddingService) GenerateForDocument(ctx context.Context, docID string) (int, error) {
	if !s.Enabled() {
		return 0, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	missing, err := s.chunks.ListMissingEmbeddings(ctx, docID)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	generated := 0
	for i, chunk := range missing {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return generated, ctx.Err()
			case <-time.After(s.delay):
			}
		}
		values, err := s.client.Embed(ctx, chunk.Content, ai.TaskTypeDocument)
		if err != nil {
			if ctx.Err() != nil {
				return generated, ctx.Err()
			}
			logger.Error("failed to embed chunk",
				zap.Int("chunk_index", chunk.ChunkIndex), zap.Error(err))
			continue
		}
		if err := s.embeddings.Upsert(ctx, &model.ChunkEmbedding{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			UserID:     chunk.UserID,
			ModelName:  s.client.ModelName(),
			Dimension:  len(values),
			Embedding:  values,
			Ctime:      timeutil.NowMillis(),
		}); err != nil {
			logger.Error("failed to store embedding",
				zap.Int("chunk_index", chunk.ChunkIndex), zap.Error(err))
			continue
		}
		generated++
	}
	logger.Info("embedding generation finished",
		zap.Int("missing", len(missing)), zap.Int("generated", generated))
	return generated, nil
}

// Enqueue schedules background generation for the document. Only one
// generation per document may be in flight; a duplicate enqueue while one is
// pending is dropped, as is work the pool has no room for (the sweep job
// retries it later).
func (s *EmbeddingService) Enqueue(docID string) bool {
	if !s.Enabled() || s.pool == nil {
		return false
	}
	genCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if _, ok := s.inflight[docID]; ok {
		s.mu.Unlock()
		cancel()
		return false
	}
	s.inflight[docID] = cancel
	s.mu.Unlock()

	ok := s.pool.Submit(func(poolCtx context.Context) {
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		defer s.finish(docID)
		if _, err := s.GenerateForDocument(genCtx, docID); err != nil {
			logutil.GetLogger(poolCtx).Error("background embedding generation failed",
				zap.String("doc_id", docID), zap.Error(err))
		}
	})
	if !ok {
		s.finish(docID)
		logutil.GetLogger(context.Background()).Warn("embedding queue full, dropping request",
			zap.String("doc_id", docID))
	}
	return ok
}

// Cancel aborts a pending or running generation for the document, if any.
func (s *EmbeddingService) Cancel(docID string) {
	s.mu.Lock()
	cancel, ok := s.inflight[docID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown aborts everything in flight. Called once on process exit, before
// stopping the worker pool.
func (s *EmbeddingService) Shutdown() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for _, cancel := range s.inflight {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Sweep enqueues generation for ready documents that still miss vectors.
// This catches work lost to queue overflow, crashes, or provider outages.
func (s *EmbeddingService) Sweep(ctx context.Context, limit int) error {
	if !s.Enabled() {
		return nil
	}
	pending, err := s.embeddings.ListPendingDocuments(ctx, limit)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, doc := range pending {
		if s.Enqueue(doc.ID) {
			enqueued++
		}
	}
	if len(pending) > 0 {
		logutil.GetLogger(ctx).Info("embedding sweep",
			zap.Int("pending", len(pending)), zap.Int("enqueued", enqueued))
	}
	return nil
}

// ResyncAll generates embeddings for every pending document inline, batch by
// batch, until nothing is left or a full pass makes no progress.
func (s *EmbeddingService) ResyncAll(ctx context.Context, batch int) error {
	if !s.Enabled() {
		return ai.ErrUnavailable
	}
	if batch <= 0 {
		batch = 20
	}
	for {
		pending, err := s.embeddings.ListPendingDocuments(ctx, batch)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		progress := 0
		for _, doc := range pending {
			n, err := s.GenerateForDocument(ctx, doc.ID)
			if err != nil {
				return err
			}
			progress += n
		}
		// Chunks that keep failing stay pending; without progress another
		// pass would loop over the same set forever.
		if progress == 0 {
			return nil
		}
	}
}

func (s *EmbeddingService) finish(docID string) {
	s.mu.Lock()
	cancel, ok := s.inflight[docID]
	delete(s.inflight, docID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}
