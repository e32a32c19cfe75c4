package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attrebi/kbase/internal/ai"
	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/worker"
)

func addPlainChunk(store *fakeStore, chunkID, docID, userID string, index int, content string) {
	store.chunks[chunkID] = &model.Chunk{
		ID: chunkID, DocumentID: docID, UserID: userID,
		ChunkIndex: index, Content: content,
	}
}

func newEmbeddingFixture(t *testing.T, client EmbeddingClient, pool *worker.Pool) (*EmbeddingService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewEmbeddingService(chunkStoreAdapter{store}, embStoreAdapter{store}, client, pool, 0), store
}

func TestGenerateForDocumentDisabled(t *testing.T) {
	svc, _ := newEmbeddingFixture(t, &fakeClient{enabled: false}, nil)
	_, err := svc.GenerateForDocument(context.Background(), "doc")
	require.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestGenerateForDocumentIdempotent(t *testing.T) {
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			require.Equal(t, ai.TaskTypeDocument, taskType)
			return []float32{1, 2, 3}, nil
		},
	}
	svc, store := newEmbeddingFixture(t, client, nil)
	addDoc(store, "doc", "u1", "Doc", "content", 1)
	addPlainChunk(store, "c1", "doc", "u1", 0, "first")
	addPlainChunk(store, "c2", "doc", "u1", 1, "second")

	generated, err := svc.GenerateForDocument(context.Background(), "doc")
	require.NoError(t, err)
	require.Equal(t, 2, generated)
	require.Len(t, store.embeddings, 2)
	require.Equal(t, "test-model", store.embeddings["c1"].ModelName)
	require.Equal(t, 3, store.embeddings["c1"].Dimension)

	// A second run finds nothing missing and calls the provider no further.
	generated, err = svc.GenerateForDocument(context.Background(), "doc")
	require.NoError(t, err)
	require.Zero(t, generated)
	require.Equal(t, 2, client.callCount())
}

func TestGenerateForDocumentSkipsFailedChunks(t *testing.T) {
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			if text == "poison" {
				return nil, errors.New("provider hiccup")
			}
			return []float32{1}, nil
		},
	}
	svc, store := newEmbeddingFixture(t, client, nil)
	addDoc(store, "doc", "u1", "Doc", "content", 1)
	addPlainChunk(store, "c1", "doc", "u1", 0, "fine")
	addPlainChunk(store, "c2", "doc", "u1", 1, "poison")
	addPlainChunk(store, "c3", "doc", "u1", 2, "also fine")

	generated, err := svc.GenerateForDocument(context.Background(), "doc")
	require.NoError(t, err)
	require.Equal(t, 2, generated)
	require.Len(t, store.embeddings, 2)
	require.NotContains(t, store.embeddings, "c2")
}

func TestGenerateForDocumentCancelled(t *testing.T) {
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			return []float32{1}, nil
		},
	}
	svc, store := newEmbeddingFixture(t, client, nil)
	addDoc(store, "doc", "u1", "Doc", "content", 1)
	addPlainChunk(store, "c1", "doc", "u1", 0, "first")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	generated, err := svc.GenerateForDocument(ctx, "doc")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, generated)
	require.Empty(t, store.embeddings)
}

func TestEnqueueSingleFlight(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			<-release
			return []float32{1}, nil
		},
	}
	pool := worker.NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	svc, store := newEmbeddingFixture(t, client, pool)
	addDoc(store, "doc", "u1", "Doc", "content", 1)
	addPlainChunk(store, "c1", "doc", "u1", 0, "first")

	require.True(t, svc.Enqueue("doc"))
	require.False(t, svc.Enqueue("doc"))
	close(release)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.embeddings) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Once the run finishes the document can be enqueued again.
	require.Eventually(t, func() bool {
		return svc.Enqueue("doc")
	}, 2*time.Second, 10*time.Millisecond)
	svc.Shutdown()
}

func TestEnqueueDisabled(t *testing.T) {
	svc, _ := newEmbeddingFixture(t, &fakeClient{enabled: false}, nil)
	require.False(t, svc.Enqueue("doc"))
}

func TestSweepEnqueuesPendingDocuments(t *testing.T) {
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			return []float32{1}, nil
		},
	}
	pool := worker.NewPool(2, 8)
	pool.Start(context.Background())
	defer pool.Stop()

	svc, store := newEmbeddingFixture(t, client, pool)
	addDoc(store, "d1", "u1", "One", "content", 1)
	addDoc(store, "d2", "u1", "Two", "content", 2)
	addPlainChunk(store, "c1", "d1", "u1", 0, "first")
	addPlainChunk(store, "c2", "d2", "u1", 0, "second")

	require.NoError(t, svc.Sweep(context.Background(), 10))
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.embeddings) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResyncAll(t *testing.T) {
	client := &fakeClient{
		enabled: true, model: "test-model",
		embedFunc: func(text, taskType string) ([]float32, error) {
			if text == "poison" {
				return nil, errors.New("provider hiccup")
			}
			return []float32{1}, nil
		},
	}
	svc, store := newEmbeddingFixture(t, client, nil)
	addDoc(store, "d1", "u1", "One", "content", 1)
	addDoc(store, "d2", "u1", "Two", "content", 2)
	addPlainChunk(store, "c1", "d1", "u1", 0, "first")
	addPlainChunk(store, "c2", "d2", "u1", 0, "poison")

	require.NoError(t, svc.ResyncAll(context.Background(), 10))
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Contains(t, store.embeddings, "c1")
	require.NotContains(t, store.embeddings, "c2")
}
