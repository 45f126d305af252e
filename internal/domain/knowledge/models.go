package knowledge

import "time"

// KnowledgeBase 知识库
// 不变式: 0 <= ChunkOverlap < ChunkSize
type KnowledgeBase struct {
	ID          int64
	AgentID     int64
	Name        string
	Description string

	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int

	IsActive       bool
	TotalDocuments int
	TotalChunks    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document 知识库中的文档
// 不变式: 处理成功的文档 ChunksCount 等于实际产出的片段数；
// ProcessingError 非空时 IsProcessed 必为 false
type Document struct {
	ID              int64
	KnowledgeBaseID int64

	Filename string
	FilePath string
	FileType string
	FileSize int64

	IsProcessed     bool
	ChunksCount     int
	ProcessingError string
	Metadata        map[string]string

	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Chunk 文档切分出的片段，检索的基本单位
// 相邻片段满足重叠不变式：片段 i 的末尾 overlap 个字符等于片段 i+1 的开头
type Chunk struct {
	DocumentID int64
	Ordinal    int
	Content    string
	SpanStart  int
	SpanEnd    int
	Metadata   map[string]string
}

// SearchResult 相似度检索结果
type SearchResult struct {
	Content  string
	Score    float32
	Ordinal  int
	Metadata map[string]string
}
