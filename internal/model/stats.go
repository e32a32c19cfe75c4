package model

type UserStats struct {
	DocumentCount int            `json:"document_count"`
	ChunkCount    int            `json:"chunk_count"`
	BySourceType  map[string]int `json:"by_source_type"`
	ByStatus      map[string]int `json:"by_status"`
}

type EmbeddingStats struct {
	TotalChunks    int            `json:"total_chunks"`
	EmbeddedChunks int            `json:"embedded_chunks"`
	Coverage       float64        `json:"coverage"`
	ByModel        map[string]int `json:"by_model"`
}
