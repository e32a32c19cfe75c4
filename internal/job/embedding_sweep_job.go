package job

import (
	"context"

	"github.com/attrebi/kbase/internal/service"
)

// EmbeddingSweepJob re-enqueues embedding generation for documents whose
// chunks are still missing vectors, picking up work dropped by queue
// overflow or provider outages.
type EmbeddingSweepJob struct {
	embeddings *service.EmbeddingService
	limit      int
}

func NewEmbeddingSweepJob(embeddings *service.EmbeddingService, limit int) *EmbeddingSweepJob {
	return &EmbeddingSweepJob{embeddings: embeddings, limit: limit}
}

func (j *EmbeddingSweepJob) Name() string {
	return "embedding_sweep"
}

func (j *EmbeddingSweepJob) Run(ctx context.Context) error {
	if j.embeddings == nil {
		return nil
	}
	limit := j.limit
	if limit <= 0 {
		limit = 20
	}
	return j.embeddings.Sweep(ctx, limit)
}
