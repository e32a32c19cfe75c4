package model

type ChunkEmbedding struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	ModelName  string    `json:"model_name"`
	Dimension  int       `json:"dimension"`
	Embedding  []float32 `json:"embedding"`
	Ctime      int64     `json:"ctime"`
}

// EmbeddingCandidate is a stored vector joined with the chunk and document
// columns the search layer needs to build a result without a second query.
type EmbeddingCandidate struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Content    string
	DocTitle   string
	SourceType string
	Embedding  []float32
}
