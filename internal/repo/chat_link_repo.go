package repo

import (
	"context"
	"database/sql"

	"github.com/attrebi/kbase/internal/model"
	appErr "github.com/attrebi/kbase/internal/pkg/errors"
)

type ChatLinkRepo struct {
	db *sql.DB
}

func NewChatLinkRepo(db *sql.DB) *ChatLinkRepo {
	return &ChatLinkRepo{db: db}
}

// Link is idempotent, relinking an already linked pair is a no-op.
func (r *ChatLinkRepo) Link(ctx context.Context, link *model.ChatLink) error {
	const query = `
		INSERT INTO chat_links (document_id, chat_id, user_id, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, chat_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, link.DocumentID, link.ChatID, link.UserID, link.Ctime)
	return err
}

func (r *ChatLinkRepo) Unlink(ctx context.Context, userID, docID, chatID string) error {
	const query = `
		DELETE FROM chat_links WHERE document_id = $1 AND chat_id = $2 AND user_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, docID, chatID, userID)
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

// ListDocsByChat returns every linked document of the chat, newest link
// first. Joining documents keeps deleted documents out automatically.
func (r *ChatLinkRepo) ListDocsByChat(ctx context.Context, userID, chatID string) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.user_id, d.title, d.content, d.source_type, d.source_url,
			d.file_name, d.file_type, d.file_size, d.file_key, d.metadata,
			d.status, d.chunk_count, d.ctime, d.mtime
		FROM chat_links l
		JOIN documents d ON d.id = l.document_id
		WHERE l.user_id = $1 AND l.chat_id = $2
		ORDER BY l.ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, chatID)
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
