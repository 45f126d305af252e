package knowledge

import "context"

// KnowledgeBaseRepository 知识库仓储接口
type KnowledgeBaseRepository interface {
	// Create 创建知识库
	Create(ctx context.Context, kb *KnowledgeBase) error
	// Get 按 ID 获取知识库，不存在返回 ErrKnowledgeBaseNotFound
	Get(ctx context.Context, id int64) (*KnowledgeBase, error)
	// GetActiveByAgent 获取智能体当前启用的知识库，没有则返回 nil
	GetActiveByAgent(ctx context.Context, agentID int64) (*KnowledgeBase, error)
	// ListByAgent 列出智能体下的所有知识库
	ListByAgent(ctx context.Context, agentID int64) ([]*KnowledgeBase, error)
	// IncrementTotals 累加文档/片段计数
	IncrementTotals(ctx context.Context, id int64, documents, chunks int) error
	// Delete 删除知识库并级联删除其文档记录
	Delete(ctx context.Context, id int64) error
}

// DocumentRepository 文档仓储接口
type DocumentRepository interface {
	// Create 创建文档记录
	Create(ctx context.Context, doc *Document) error
	// Get 按 ID 获取文档，不存在返回 ErrDocumentNotFound
	Get(ctx context.Context, id int64) (*Document, error)
	// ListByKnowledgeBase 列出知识库下的所有文档
	ListByKnowledgeBase(ctx context.Context, kbID int64) ([]*Document, error)
	// MarkProcessed 标记处理成功并记录片段数
	MarkProcessed(ctx context.Context, id int64, chunksCount int) error
	// MarkFailed 记录处理失败原因，is_processed 保持 false
	MarkFailed(ctx context.Context, id int64, processingError string) error
}

// RetrievalIndex 检索索引契约
// 索引只负责存储向量和最近邻打分，向量计算委托给 Embedder
type RetrievalIndex interface {
	// Add 为知识库添加片段，写入对并发搜索原子可见，返回实际添加数
	Add(ctx context.Context, kbID int64, chunks []*Chunk) (int, error)
	// Search 按余弦相似度降序检索，分数相同时片段序号小者优先；
	// 未知或空知识库返回空结果而不是错误
	Search(ctx context.Context, kbID int64, query string, topK int) ([]*SearchResult, error)
	// DeleteKnowledgeBase 删除知识库的全部向量
	DeleteKnowledgeBase(ctx context.Context, kbID int64) error
}

// Embedder 向量化能力协作方
type Embedder interface {
	// EmbedTexts 批量向量化文本，返回与输入等长的向量切片
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
