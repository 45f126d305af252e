package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

// 确保实现了领域接口
var _ domainKnowledge.RetrievalIndex = (*MemoryIndex)(nil)

// memoryEntry 内存索引中的一个片段
type memoryEntry struct {
	chunk  *domainKnowledge.Chunk
	vector []float32
}

// MemoryIndex 进程内向量索引
// 用于开发与测试环境，数据不持久化，进程重启后丢失
type MemoryIndex struct {
	embedder domainKnowledge.Embedder

	mu      sync.RWMutex
	entries map[int64][]memoryEntry
}

// NewMemoryIndex 创建内存索引
func NewMemoryIndex(embedder domainKnowledge.Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		entries:  make(map[int64][]memoryEntry),
	}
}

// Add 为知识库添加片段
// 先在锁外完成向量化，整批写入在锁内一次完成，对并发搜索原子可见
func (m *MemoryIndex) Add(ctx context.Context, kbID int64, chunks []*domainKnowledge.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, err
	}

	batch := make([]memoryEntry, len(chunks))
	for i, c := range chunks {
		batch[i] = memoryEntry{chunk: c, vector: vectors[i]}
	}

	m.mu.Lock()
	m.entries[kbID] = append(m.entries[kbID], batch...)
	m.mu.Unlock()
	return len(batch), nil
}

// Search 按余弦相似度检索
// 分数降序，分数相同时片段序号小者优先；未知知识库返回空结果
func (m *MemoryIndex) Search(ctx context.Context, kbID int64, query string, topK int) ([]*domainKnowledge.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	entries := m.entries[kbID]
	m.mu.RUnlock()
	if len(entries) == 0 {
		return nil, nil
	}

	vectors, err := m.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVector := vectors[0]

	results := make([]*domainKnowledge.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, &domainKnowledge.SearchResult{
			Content:  e.chunk.Content,
			Score:    cosineSimilarity(queryVector, e.vector),
			Ordinal:  e.chunk.Ordinal,
			Metadata: e.chunk.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteKnowledgeBase 删除知识库的全部向量
func (m *MemoryIndex) DeleteKnowledgeBase(ctx context.Context, kbID int64) error {
	m.mu.Lock()
	delete(m.entries, kbID)
	m.mu.Unlock()
	return nil
}

// cosineSimilarity 余弦相似度，任一向量为零向量时返回 0
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
