package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/attrebi/kbase/internal/chunker"
	"github.com/attrebi/kbase/internal/filestore"
	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
	"github.com/attrebi/kbase/internal/pkg/timeutil"
)

const (
	maxTitleRunes = 80
	// MaxFileSize bounds uploads; the whole file is read into memory for
	// text extraction.
	MaxFileSize = 10 << 20
)

// IngestService turns raw input into a ready document: create the record,
// chunk the text, then hand the chunks to background embedding.
type IngestService struct {
	docs       DocumentStore
	chunks     ChunkStore
	embeddings *EmbeddingService
	files      filestore.Store
}

func NewIngestService(docs DocumentStore, chunks ChunkStore, embeddings *EmbeddingService, files filestore.Store) *IngestService {
	return &IngestService{docs: docs, chunks: chunks, embeddings: embeddings, files: files}
}

func (s *IngestService) IngestText(ctx context.Context, userID, title, content string, metadata map[string]string) (*model.Document, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	doc := &model.Document{
		UserID:     userID,
		Title:      deriveTitle(title, content, "Untitled"),
		Content:    content,
		SourceType: model.SourceTypeText,
		Metadata:   metadata,
	}
	return s.ingest(ctx, doc)
}

// IngestURL stores content already fetched and extracted by the caller; the
// URL itself is kept as provenance.
func (s *IngestService) IngestURL(ctx context.Context, userID, title, sourceURL, content string, metadata map[string]string) (*model.Document, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	content = strings.TrimSpace(content)
	if sourceURL == "" || content == "" {
		return nil, appErr.ErrInvalid
	}
	doc := &model.Document{
		UserID:     userID,
		Title:      deriveTitle(title, content, sourceURL),
		Content:    content,
		SourceType: model.SourceTypeURL,
		SourceURL:  sourceURL,
		Metadata:   metadata,
	}
	return s.ingest(ctx, doc)
}

// IngestFile extracts text from the upload, keeps the original bytes in the
// file store when one is configured, and ingests the text. Markdown files
// are flattened to plain text before chunking.
func (s *IngestService) IngestFile(ctx context.Context, userID, title, fileName string, file filestore.ReadSeekCloser, size int64, metadata map[string]string) (*model.Document, error) {
	if fileName == "" || size <= 0 {
		return nil, appErr.ErrInvalid
	}
	if size > MaxFileSize {
		return nil, fmt.Errorf("%w: file too large", appErr.ErrInvalid)
	}
	raw, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxFileSize {
		return nil, fmt.Errorf("%w: file too large", appErr.ErrInvalid)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	content := string(raw)
	if ext == "md" || ext == "markdown" {
		content = chunker.FlattenMarkdown(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}

	fileKey := ""
	if s.files != nil {
		fileKey = newID()
		if ext != "" {
			fileKey = fileKey + "." + ext
		}
		// Text extraction above left the reader at EOF.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		if err := s.files.Save(ctx, fileKey, file, size); err != nil {
			logutil.GetLogger(ctx).Error("failed to store uploaded file",
				zap.String("file_name", fileName), zap.Error(err))
			return nil, err
		}
	}

	doc := &model.Document{
		UserID:     userID,
		Title:      deriveTitle(title, content, fileName),
		Content:    content,
		SourceType: model.SourceTypeFile,
		FileName:   fileName,
		FileType:   ext,
		FileSize:   size,
		FileKey:    fileKey,
		Metadata:   metadata,
	}
	return s.ingest(ctx, doc)
}

func (s *IngestService) ingest(ctx context.Context, doc *model.Document) (*model.Document, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", doc.UserID), zap.String("source_type", doc.SourceType))
	now := timeutil.NowMillis()
	doc.ID = newID()
	doc.Status = model.DocumentStatusProcessing
	doc.Ctime = now
	doc.Mtime = now
	if err := s.docs.Create(ctx, doc); err != nil {
		logger.Error("failed to create document", zap.Error(err))
		return nil, err
	}

	pieces := chunker.Split(doc.Content)
	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &model.Chunk{
			ID:          newID(),
			DocumentID:  doc.ID,
			UserID:      doc.UserID,
			ChunkIndex:  i,
			Content:     piece.Content,
			TokenCount:  piece.TokenCount,
			StartOffset: piece.Start,
			EndOffset:   piece.End,
			Ctime:       now,
		})
	}
	if err := s.chunks.BatchCreate(ctx, chunks); err != nil {
		logger.Error("failed to store chunks", zap.String("doc_id", doc.ID), zap.Error(err))
		if serr := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusError, 0, timeutil.NowMillis()); serr != nil {
			logger.Error("failed to mark document errored", zap.String("doc_id", doc.ID), zap.Error(serr))
		}
		return nil, err
	}
	doc.Status = model.DocumentStatusReady
	doc.ChunkCount = len(chunks)
	doc.Mtime = timeutil.NowMillis()
	if err := s.docs.UpdateStatus(ctx, doc.ID, doc.Status, doc.ChunkCount, doc.Mtime); err != nil {
		logger.Error("failed to mark document ready", zap.String("doc_id", doc.ID), zap.Error(err))
		return nil, err
	}
	logger.Info("document ingested",
		zap.String("doc_id", doc.ID), zap.Int("chunks", doc.ChunkCount))

	if s.embeddings != nil {
		s.embeddings.Enqueue(doc.ID)
	}
	return doc, nil
}

func deriveTitle(title, content, fallback string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	runes := []rune(line)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return line
}
