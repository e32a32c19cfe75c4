package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
	"github.com/attrebi/kbase/internal/repo"
	"github.com/attrebi/kbase/internal/testutil"
)

func TestChunkRepoBatchAndCascade(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	userID := "chunkrepo-user-1"
	docID := "chunkrepo-doc-1"
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID: docID, UserID: userID, Title: "doc", Content: "doc content",
		SourceType: model.SourceTypeText, Status: model.DocumentStatusReady,
		Ctime: 1, Mtime: 1,
	}))
	defer func() {
		_ = docs.Delete(context.Background(), userID, docID)
	}()

	require.NoError(t, chunks.BatchCreate(context.Background(), []*model.Chunk{
		{ID: "chunkrepo-c2", DocumentID: docID, UserID: userID, ChunkIndex: 1, Content: "second", TokenCount: 1, StartOffset: 10, EndOffset: 20, Ctime: 1},
		{ID: "chunkrepo-c1", DocumentID: docID, UserID: userID, ChunkIndex: 0, Content: "first", TokenCount: 1, StartOffset: 0, EndOffset: 10, Ctime: 1},
	}))
	require.NoError(t, chunks.BatchCreate(context.Background(), nil))

	listed, err := chunks.ListByDoc(context.Background(), userID, docID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "first", listed[0].Content)
	require.Equal(t, "second", listed[1].Content)

	chunk, err := chunks.GetByID(context.Background(), userID, "chunkrepo-c1")
	require.NoError(t, err)
	require.Equal(t, 0, chunk.ChunkIndex)
	_, err = chunks.GetByID(context.Background(), "chunkrepo-other", "chunkrepo-c1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// Deleting the document cascades to its chunks.
	require.NoError(t, docs.Delete(context.Background(), userID, docID))
	listed, err = chunks.ListByDoc(context.Background(), userID, docID)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestChunkRepoListMissingEmbeddings(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	userID := "missrepo-user-1"
	docID := "missrepo-doc-1"
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID: docID, UserID: userID, Title: "doc", Content: "doc content",
		SourceType: model.SourceTypeText, Status: model.DocumentStatusReady,
		Ctime: 1, Mtime: 1,
	}))
	defer func() {
		_ = docs.Delete(context.Background(), userID, docID)
	}()
	require.NoError(t, chunks.BatchCreate(context.Background(), []*model.Chunk{
		{ID: "missrepo-c1", DocumentID: docID, UserID: userID, ChunkIndex: 0, Content: "first", Ctime: 1},
		{ID: "missrepo-c2", DocumentID: docID, UserID: userID, ChunkIndex: 1, Content: "second", Ctime: 1},
	}))

	missing, err := chunks.ListMissingEmbeddings(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, missing, 2)

	require.NoError(t, embeddings.Upsert(context.Background(), &model.ChunkEmbedding{
		ChunkID: "missrepo-c1", DocumentID: docID, UserID: userID,
		ModelName: "test-model", Dimension: 768, Embedding: testVector(0.1),
		Ctime: 1,
	}))

	missing, err = chunks.ListMissingEmbeddings(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.Equal(t, "missrepo-c2", missing[0].ID)
}

func testVector(seed float32) []float32 {
	vec := make([]float32, 768)
	for i := range vec {
		vec[i] = seed
	}
	vec[0] = 1
	return vec
}
