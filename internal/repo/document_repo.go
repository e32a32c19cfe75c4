package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/attrebi/kbase/internal/model"
	"github.com/attrebi/kbase/internal/pkg/dbutil"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "user_id", "title", "content", "source_type", "source_url",
	"file_name", "file_type", "file_size", "file_key", "metadata",
	"status", "chunk_count", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":          doc.ID,
		"user_id":     doc.UserID,
		"title":       doc.Title,
		"content":     doc.Content,
		"source_type": doc.SourceType,
		"source_url":  doc.SourceURL,
		"file_name":   doc.FileName,
		"file_type":   doc.FileType,
		"file_size":   doc.FileSize,
		"file_key":    doc.FileKey,
		"metadata":    metadata,
		"status":      doc.Status,
		"chunk_count": doc.ChunkCount,
		"ctime":       doc.Ctime,
		"mtime":       doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
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
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, userID string, filter model.DocumentFilter) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "mtime desc",
	}
	if filter.SourceType != "" {
		where["source_type"] = filter.SourceType
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	if filter.Limit > 0 {
		where["_limit"] = []uint{filter.Offset, filter.Limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateMeta changes title and/or metadata. Content and chunking are
// immutable after ingestion, so nothing else is updatable here.
func (r *DocumentRepo) UpdateMeta(ctx context.Context, userID, docID string, title *string, metadata map[string]string, mtime int64) error {
	update := map[string]interface{}{
		"mtime": mtime,
	}
	if title != nil {
		update["title"] = *title
	}
	if metadata != nil {
		encoded, err := encodeMetadata(metadata)
		if err != nil {
			return err
		}
		update["metadata"] = encoded
	}
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, docID, status string, chunkCount int, mtime int64) error {
	where := map[string]interface{}{
		"id": docID,
	}
	update := map[string]interface{}{
		"status":      status,
		"chunk_count": chunkCount,
		"mtime":       mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete removes the document row; chunks, embeddings and chat links go with
// it through the FK cascades.
func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// KeywordCandidates returns ready documents of the owner matching every
// token in title or content, most recently updated first.
func (r *DocumentRepo) KeywordCandidates(ctx context.Context, userID string, tokens []string, limit uint) ([]model.Document, error) {
	if len(tokens) == 0 {
		return []model.Document{}, nil
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(documentColumns, ", "))
	sb.WriteString(" FROM documents WHERE user_id = ? AND status = ?")
	args := []interface{}{userID, model.DocumentStatusReady}
	for _, token := range tokens {
		sb.WriteString(" AND (title ILIKE ? OR content ILIKE ?)")
		pattern := likePattern(token)
		args = append(args, pattern, pattern)
	}
	sb.WriteString(" ORDER BY mtime DESC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	query := sqlx.Rebind(sqlx.DOLLAR, sb.String())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a contains pattern from a raw token, escaping the LIKE
// metacharacters so user input matches literally.
func likePattern(token string) string {
	return "%" + likeEscaper.Replace(token) + "%"
}

func (r *DocumentRepo) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{
		BySourceType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT source_type, status, COUNT(1) FROM documents WHERE user_id = $1 GROUP BY source_type, status", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sourceType, status string
		var count int
		if err := rows.Scan(&sourceType, &status, &count); err != nil {
			return nil, err
		}
		stats.DocumentCount += count
		stats.BySourceType[sourceType] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chunks WHERE user_id = $1", userID)
	if err := row.Scan(&stats.ChunkCount); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var metadata string
	if err := rows.Scan(
		&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &doc.SourceType, &doc.SourceURL,
		&doc.FileName, &doc.FileType, &doc.FileSize, &doc.FileKey, &metadata,
		&doc.Status, &doc.ChunkCount, &doc.Ctime, &doc.Mtime,
	); err != nil {
		return nil, err
	}
	if err := decodeMetadata(metadata, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(raw string, doc *model.Document) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(raw), &doc.Metadata)
}
