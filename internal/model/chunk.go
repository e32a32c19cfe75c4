package model

type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	UserID      string `json:"user_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content"`
	TokenCount  int    `json:"token_count"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Ctime       int64  `json:"ctime"`
}
