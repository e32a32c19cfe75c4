package model

const (
	SourceTypeText = "text"
	SourceTypeURL  = "url"
	SourceTypeFile = "file"
)

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusError      = "error"
)

type Document struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	SourceType string            `json:"source_type"`
	SourceURL  string            `json:"source_url,omitempty"`
	FileName   string            `json:"file_name,omitempty"`
	FileType   string            `json:"file_type,omitempty"`
	FileSize   int64             `json:"file_size,omitempty"`
	FileKey    string            `json:"file_key,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Status     string            `json:"status"`
	ChunkCount int               `json:"chunk_count"`
	Ctime      int64             `json:"ctime"`
	Mtime      int64             `json:"mtime"`
}

type DocumentFilter struct {
	SourceType string
	Status     string
	Limit      uint
	Offset     uint
}
