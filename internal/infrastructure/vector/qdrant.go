package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// 确保实现了领域接口
var _ domainKnowledge.RetrievalIndex = (*QdrantIndex)(nil)

// QdrantIndex 基于 Qdrant 的向量索引
// 所有知识库共用一个集合，通过 kb_id 负载过滤隔离
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   domainKnowledge.Embedder
	collection string
	logger     *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// NewQdrantIndex 创建 Qdrant 索引
func NewQdrantIndex(cfg *config.QdrantConfig, embedder domainKnowledge.Embedder) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.GRPCPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantIndex{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     log.NewModuleLogger("vector", "qdrant"),
	}, nil
}

// ensureCollection 确保集合存在，首次写入时按向量维度创建
func (q *QdrantIndex) ensureCollection(ctx context.Context, vectorSize uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured {
		return nil
	}

	existing, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range existing {
		if name == q.collection {
			q.ensured = true
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}

	q.logger.Info("collection created", "collection", q.collection, "vector_size", vectorSize)
	q.ensured = true
	return nil
}

// Add 为知识库添加片段
func (q *QdrantIndex) Add(ctx context.Context, kbID int64, chunks []*domainKnowledge.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := q.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := q.ensureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return 0, err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"kb_id":       strconv.FormatInt(kbID, 10),
				"document_id": chunk.DocumentID,
				"ordinal":     chunk.Ordinal,
				"content":     sanitizeUTF8(chunk.Content),
			}),
		}
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert points: %w", err)
	}

	q.logger.Debug("chunks indexed", "kb_id", kbID, "count", len(points))
	return len(points), nil
}

// Search 按余弦相似度检索知识库
// 未知或空知识库自然返回空命中而不是错误
func (q *QdrantIndex) Search(ctx context.Context, kbID int64, query string, topK int) ([]*domainKnowledge.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryVectors, err := q.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(topK)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryVectors[0]...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("kb_id", strconv.FormatInt(kbID, 10)),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		// 集合尚未创建等同于空知识库
		if strings.Contains(err.Error(), "doesn't exist") || strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	results := make([]*domainKnowledge.SearchResult, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		if payload == nil {
			continue
		}
		results = append(results, &domainKnowledge.SearchResult{
			Content: extractStringValue(payload["content"]),
			Score:   hit.GetScore(),
			Ordinal: int(extractIntValue(payload["ordinal"])),
		})
	}

	// 分数相同时片段序号小者优先
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})
	return results, nil
}

// DeleteKnowledgeBase 删除知识库的全部向量
func (q *QdrantIndex) DeleteKnowledgeBase(ctx context.Context, kbID int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("kb_id", strconv.FormatInt(kbID, 10)),
					},
				},
			},
		},
	})
	if err != nil && !strings.Contains(err.Error(), "doesn't exist") {
		return fmt.Errorf("failed to delete kb vectors: %w", err)
	}
	return nil
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

// extractIntValue 从 qdrant.Value 提取整数值
func extractIntValue(val *qdrant.Value) int64 {
	if val == nil {
		return 0
	}
	if intVal := val.GetIntegerValue(); intVal != 0 {
		return intVal
	}
	return int64(val.GetDoubleValue())
}

// sanitizeUTF8 替换无效 UTF-8 序列，Qdrant 负载要求合法 UTF-8
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
