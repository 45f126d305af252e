package vector

import (
	"github.com/google/wire"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
)

// ProviderSet 向量索引依赖注入
var ProviderSet = wire.NewSet(NewRetrievalIndex)

// NewRetrievalIndex 按配置选择索引实现
// Qdrant 未启用时使用进程内内存索引
func NewRetrievalIndex(cfg *config.Config, embedder domainKnowledge.Embedder) (domainKnowledge.RetrievalIndex, error) {
	if !cfg.Qdrant.Enabled {
		return NewMemoryIndex(embedder), nil
	}
	return NewQdrantIndex(&cfg.Qdrant, embedder)
}
