package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenDB(&config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestKB(agentID int64) *domainKnowledge.KnowledgeBase {
	return &domainKnowledge.KnowledgeBase{
		AgentID:        agentID,
		Name:           "产品手册",
		Description:    "产品相关文档",
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      1000,
		ChunkOverlap:   200,
	}
}

func TestKnowledgeBaseCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	require.NoError(t, repo.Create(ctx, kb))
	require.NotZero(t, kb.ID)

	got, err := repo.Get(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "产品手册", got.Name)
	assert.Equal(t, 1000, got.ChunkSize)
	assert.Equal(t, 200, got.ChunkOverlap)
	assert.True(t, got.IsActive)
	assert.Zero(t, got.TotalDocuments)
	assert.Zero(t, got.TotalChunks)
}

func TestKnowledgeBaseCreateRejectsInvalidOverlap(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	kb.ChunkOverlap = kb.ChunkSize
	assert.ErrorIs(t, repo.Create(ctx, kb), domainKnowledge.ErrInvalidChunkParams)

	kb.ChunkOverlap = -1
	assert.ErrorIs(t, repo.Create(ctx, kb), domainKnowledge.ErrInvalidChunkParams)
}

func TestKnowledgeBaseGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)

	_, err := repo.Get(context.Background(), 999)
	assert.ErrorIs(t, err, domainKnowledge.ErrKnowledgeBaseNotFound)
}

func TestGetActiveByAgent(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)
	ctx := context.Background()

	// 没有知识库时返回 nil 而不是错误
	kb, err := repo.GetActiveByAgent(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, kb)

	first := newTestKB(7)
	require.NoError(t, repo.Create(ctx, first))
	second := newTestKB(7)
	second.Name = "FAQ"
	require.NoError(t, repo.Create(ctx, second))

	// 多个启用时取最早创建的
	active, err := repo.GetActiveByAgent(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
}

func TestIncrementTotals(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	require.NoError(t, repo.Create(ctx, kb))

	require.NoError(t, repo.IncrementTotals(ctx, kb.ID, 1, 12))
	require.NoError(t, repo.IncrementTotals(ctx, kb.ID, 1, 8))

	got, err := repo.Get(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalDocuments)
	assert.Equal(t, 20, got.TotalChunks)
}

func TestKnowledgeBaseDeleteCascadesDocuments(t *testing.T) {
	db := newTestDB(t)
	kbRepo := NewKnowledgeBaseRepository(db)
	docRepo := NewDocumentRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	require.NoError(t, kbRepo.Create(ctx, kb))

	doc := &domainKnowledge.Document{
		KnowledgeBaseID: kb.ID,
		Filename:        "manual.pdf",
		FilePath:        "/tmp/manual.pdf",
		FileType:        "pdf",
		FileSize:        2048,
	}
	require.NoError(t, docRepo.Create(ctx, doc))

	require.NoError(t, kbRepo.Delete(ctx, kb.ID))

	_, err := kbRepo.Get(ctx, kb.ID)
	assert.ErrorIs(t, err, domainKnowledge.ErrKnowledgeBaseNotFound)
	_, err = docRepo.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domainKnowledge.ErrDocumentNotFound)
}

func TestKnowledgeBaseDeleteNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewKnowledgeBaseRepository(db)

	assert.ErrorIs(t, repo.Delete(context.Background(), 999), domainKnowledge.ErrKnowledgeBaseNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	db := newTestDB(t)
	kbRepo := NewKnowledgeBaseRepository(db)
	docRepo := NewDocumentRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	require.NoError(t, kbRepo.Create(ctx, kb))

	doc := &domainKnowledge.Document{
		KnowledgeBaseID: kb.ID,
		Filename:        "notes.md",
		FilePath:        "/tmp/notes.md",
		FileType:        "md",
		FileSize:        512,
		Metadata:        map[string]string{"source": "upload"},
	}
	require.NoError(t, docRepo.Create(ctx, doc))

	created, err := docRepo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, created.IsProcessed)
	assert.Empty(t, created.ProcessingError)
	assert.Nil(t, created.ProcessedAt)
	assert.Equal(t, "upload", created.Metadata["source"])

	// 失败先落错误，之后重试成功会清掉
	require.NoError(t, docRepo.MarkFailed(ctx, doc.ID, "embedding service unavailable"))
	failed, err := docRepo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, failed.IsProcessed)
	assert.Equal(t, "embedding service unavailable", failed.ProcessingError)

	require.NoError(t, docRepo.MarkProcessed(ctx, doc.ID, 9))
	processed, err := docRepo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, processed.IsProcessed)
	assert.Equal(t, 9, processed.ChunksCount)
	assert.Empty(t, processed.ProcessingError)
	require.NotNil(t, processed.ProcessedAt)
}

func TestListByKnowledgeBaseOrdersByID(t *testing.T) {
	db := newTestDB(t)
	kbRepo := NewKnowledgeBaseRepository(db)
	docRepo := NewDocumentRepository(db)
	ctx := context.Background()

	kb := newTestKB(1)
	require.NoError(t, kbRepo.Create(ctx, kb))
	other := newTestKB(2)
	require.NoError(t, kbRepo.Create(ctx, other))

	names := []string{"a.txt", "b.txt", "c.txt"}
	for _, name := range names {
		require.NoError(t, docRepo.Create(ctx, &domainKnowledge.Document{
			KnowledgeBaseID: kb.ID,
			Filename:        name,
			FilePath:        "/tmp/" + name,
			FileType:        "txt",
		}))
	}
	require.NoError(t, docRepo.Create(ctx, &domainKnowledge.Document{
		KnowledgeBaseID: other.ID,
		Filename:        "other.txt",
		FilePath:        "/tmp/other.txt",
		FileType:        "txt",
	}))

	docs, err := docRepo.ListByKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, doc := range docs {
		assert.Equal(t, names[i], doc.Filename)
	}
}
