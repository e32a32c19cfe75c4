package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/pkg/dbutil"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
)

var chunkColumns = []string{
	"id", "document_id", "user_id", "chunk_index", "content",
	"token_count", "start_offset", "end_offset", "ctime",
}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// BatchCreate persists all chunks of a document in one transaction so a
// failure never leaves a partially chunked document behind.
func (r *ChunkRepo) BatchCreate(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	datas := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		datas = append(datas, map[string]interface{}{
			"id":           chunk.ID,
			"document_id":  chunk.DocumentID,
			"user_id":      chunk.UserID,
			"chunk_index":  chunk.ChunkIndex,
			"content":      chunk.Content,
			"token_count":  chunk.TokenCount,
			"start_offset": chunk.StartOffset,
			"end_offset":   chunk.EndOffset,
			"ctime":        chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", datas)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *ChunkRepo) ListByDoc(ctx context.Context, userID, docID string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"user_id":     userID,
		"_orderby":    "chunk_index asc",
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := scanChunk(rows, &chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) GetByID(ctx context.Context, userID, chunkID string) (*model.Chunk, error) {
	where := map[string]interface{}{
		"id":      chunkID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var chunk model.Chunk
	if err := scanChunk(rows, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListMissingEmbeddings anti-joins chunks against their embeddings; the
// result is the work list for embedding generation, in chunk order.
func (r *ChunkRepo) ListMissingEmbeddings(ctx context.Context, docID string) ([]model.Chunk, error) {
	const query = `
		SELECT c.id, c.document_id, c.user_id, c.chunk_index, c.content,
			c.token_count, c.start_offset, c.end_offset, c.ctime
		FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE c.document_id = $1 AND e.chunk_id IS NULL
		ORDER BY c.chunk_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := scanChunk(rows, &chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows, chunk *model.Chunk) error {
	return rows.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.ChunkIndex, &chunk.Content,
		&chunk.TokenCount, &chunk.StartOffset, &chunk.EndOffset, &chunk.Ctime,
	)
}
