package model

type ChatLink struct {
	DocumentID string `json:"document_id"`
	ChatID     string `json:"chat_id"`
	UserID     string `json:"user_id"`
	Ctime      int64  `json:"ctime"`
}
