package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// Upsert is keyed by chunk id: a re-generation replaces the previous vector
// instead of appending, which also makes concurrent generation races
// harmless.
func (r *EmbeddingRepo) Upsert(ctx context.Context, emb *model.ChunkEmbedding) error {
	const query = `
		INSERT INTO chunk_embeddings (chunk_id, document_id, user_id, model_name, dimension, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chunk_id) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			dimension = EXCLUDED.dimension,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ChunkID,
		emb.DocumentID,
		emb.UserID,
		emb.ModelName,
		emb.Dimension,
		pgvector.NewVector(emb.Embedding),
		emb.Ctime,
	)
	return err
}

// ListCandidates loads every stored vector of the owner's ready documents,
// joined with the chunk/document columns search results need. excludeDocID
// filters out the reference document for find-similar.
func (r *EmbeddingRepo) ListCandidates(ctx context.Context, userID, excludeDocID string) ([]model.EmbeddingCandidate, error) {
	query := `
		SELECT e.chunk_id, e.document_id, c.chunk_index, c.content, d.title, d.source_type, e.embedding
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = e.document_id
		WHERE e.user_id = $1 AND d.status = $2
	`
	args := []interface{}{userID, model.DocumentStatusReady}
	if excludeDocID != "" {
		query += " AND e.document_id != $3"
		args = append(args, excludeDocID)
	}
	query += " ORDER BY e.document_id, c.chunk_index"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates := make([]model.EmbeddingCandidate, 0)
	for rows.Next() {
		var item model.EmbeddingCandidate
		var embedding pgvector.Vector
		if err := rows.Scan(
			&item.ChunkID, &item.DocumentID, &item.ChunkIndex, &item.Content,
			&item.DocTitle, &item.SourceType, &embedding,
		); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		candidates = append(candidates, item)
	}
	return candidates, rows.Err()
}

// FirstChunkEmbedding returns the vector of the document's first chunk
// (index order), the document-level representative used by find-similar.
// ErrNotFound when the document has no chunks or the first chunk is not
// embedded yet.
func (r *EmbeddingRepo) FirstChunkEmbedding(ctx context.Context, userID, docID string) (*model.ChunkEmbedding, error) {
	const query = `
		SELECT c.id, e.chunk_id, e.model_name, e.dimension, e.embedding, e.ctime
		FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE c.document_id = $1 AND c.user_id = $2
		ORDER BY c.chunk_index ASC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, docID, userID)
	var chunkID string
	var embChunkID sql.NullString
	var modelName sql.NullString
	var dimension sql.NullInt64
	var embedding *pgvector.Vector
	var ctime sql.NullInt64
	if err := row.Scan(&chunkID, &embChunkID, &modelName, &dimension, &embedding, &ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if !embChunkID.Valid || embedding == nil {
		return nil, appErr.ErrNotFound
	}
	return &model.ChunkEmbedding{
		ChunkID:    chunkID,
		DocumentID: docID,
		UserID:     userID,
		ModelName:  modelName.String,
		Dimension:  int(dimension.Int64),
		Embedding:  embedding.Slice(),
		Ctime:      ctime.Int64,
	}, nil
}

// ListPendingDocuments finds ready documents that still have chunks without
// embeddings, the sweep job's work list.
func (r *EmbeddingRepo) ListPendingDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT DISTINCT d.id, d.user_id
		FROM documents d
		JOIN chunks c ON c.document_id = d.id
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL AND d.status = $1
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, model.DocumentStatusReady, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.UserID); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *EmbeddingRepo) Stats(ctx context.Context, userID string) (*model.EmbeddingStats, error) {
	stats := &model.EmbeddingStats{
		ByModel: make(map[string]int),
	}
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chunks WHERE user_id = $1", userID)
	if err := row.Scan(&stats.TotalChunks); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT model_name, COUNT(1) FROM chunk_embeddings WHERE user_id = $1 GROUP BY model_name", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var modelName string
		var count int
		if err := rows.Scan(&modelName, &count); err != nil {
			return nil, err
		}
		stats.EmbeddedChunks += count
		stats.ByModel[modelName] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalChunks > 0 {
		stats.Coverage = float64(stats.EmbeddedChunks) / float64(stats.TotalChunks)
	}
	return stats, nil
}
