package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
)

// fakeKBRepo 内存知识库仓储
type fakeKBRepo struct {
	mu          sync.Mutex
	kbs         map[int64]*domainKnowledge.KnowledgeBase
	docsDelta   int
	chunksDelta int
}

func (f *fakeKBRepo) Create(ctx context.Context, kb *domainKnowledge.KnowledgeBase) error {
	f.kbs[kb.ID] = kb
	return nil
}

func (f *fakeKBRepo) Get(ctx context.Context, id int64) (*domainKnowledge.KnowledgeBase, error) {
	kb, ok := f.kbs[id]
	if !ok {
		return nil, domainKnowledge.ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

func (f *fakeKBRepo) GetActiveByAgent(ctx context.Context, agentID int64) (*domainKnowledge.KnowledgeBase, error) {
	return nil, nil
}

func (f *fakeKBRepo) ListByAgent(ctx context.Context, agentID int64) ([]*domainKnowledge.KnowledgeBase, error) {
	return nil, nil
}

func (f *fakeKBRepo) IncrementTotals(ctx context.Context, id int64, documents, chunks int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docsDelta += documents
	f.chunksDelta += chunks
	return nil
}

func (f *fakeKBRepo) Delete(ctx context.Context, id int64) error { return nil }

// fakeDocRepo 内存文档仓储
type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[int64]*domainKnowledge.Document
}

func (f *fakeDocRepo) Create(ctx context.Context, doc *domainKnowledge.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocRepo) Get(ctx context.Context, id int64) (*domainKnowledge.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domainKnowledge.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocRepo) ListByKnowledgeBase(ctx context.Context, kbID int64) ([]*domainKnowledge.Document, error) {
	return nil, nil
}

func (f *fakeDocRepo) MarkProcessed(ctx context.Context, id int64, chunksCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id].IsProcessed = true
	f.docs[id].ChunksCount = chunksCount
	return nil
}

func (f *fakeDocRepo) MarkFailed(ctx context.Context, id int64, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id].IsProcessed = false
	f.docs[id].ProcessingError = processingError
	return nil
}

// fakeIndex 只记录写入的片段
type fakeIndex struct {
	mu     sync.Mutex
	chunks map[int64][]*domainKnowledge.Chunk
}

func (f *fakeIndex) Add(ctx context.Context, kbID int64, chunks []*domainKnowledge.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[kbID] = append(f.chunks[kbID], chunks...)
	return len(chunks), nil
}

func (f *fakeIndex) Search(ctx context.Context, kbID int64, query string, topK int) ([]*domainKnowledge.SearchResult, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteKnowledgeBase(ctx context.Context, kbID int64) error { return nil }

func newIngestFixture(t *testing.T) (*Service, *fakeKBRepo, *fakeDocRepo, *fakeIndex, string) {
	t.Helper()
	kbRepo := &fakeKBRepo{kbs: make(map[int64]*domainKnowledge.KnowledgeBase)}
	docRepo := &fakeDocRepo{docs: make(map[int64]*domainKnowledge.Document)}
	index := &fakeIndex{chunks: make(map[int64][]*domainKnowledge.Chunk)}

	kbRepo.kbs[1] = &domainKnowledge.KnowledgeBase{
		ID: 1, AgentID: 1, ChunkSize: 100, ChunkOverlap: 20,
	}

	return NewService(kbRepo, docRepo, index), kbRepo, docRepo, index, t.TempDir()
}

func TestProcessDocument(t *testing.T) {
	service, kbRepo, docRepo, index, dir := newIngestFixture(t)

	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 250)), 0o644))
	docRepo.docs[10] = &domainKnowledge.Document{
		ID: 10, KnowledgeBaseID: 1, Filename: "doc.txt", FilePath: path, FileType: "txt",
	}

	require.NoError(t, service.ProcessDocument(context.Background(), 10))

	doc := docRepo.docs[10]
	assert.True(t, doc.IsProcessed)
	assert.Equal(t, len(index.chunks[1]), doc.ChunksCount)
	assert.Equal(t, 1, kbRepo.docsDelta)
	assert.Equal(t, doc.ChunksCount, kbRepo.chunksDelta)

	// 片段挂在文档上并带文件名元数据
	for _, c := range index.chunks[1] {
		assert.Equal(t, int64(10), c.DocumentID)
		assert.Equal(t, "doc.txt", c.Metadata["filename"])
	}
}

func TestProcessDocumentFailureRecorded(t *testing.T) {
	service, kbRepo, docRepo, _, _ := newIngestFixture(t)

	docRepo.docs[11] = &domainKnowledge.Document{
		ID: 11, KnowledgeBaseID: 1, Filename: "data.xlsx", FilePath: "/nope", FileType: "xlsx",
	}

	err := service.ProcessDocument(context.Background(), 11)
	require.Error(t, err)

	doc := docRepo.docs[11]
	assert.False(t, doc.IsProcessed)
	assert.NotEmpty(t, doc.ProcessingError)
	assert.Equal(t, 0, kbRepo.docsDelta)
}

func TestProcessDocumentUnknownDocument(t *testing.T) {
	service, _, _, _, _ := newIngestFixture(t)
	err := service.ProcessDocument(context.Background(), 999)
	assert.ErrorIs(t, err, domainKnowledge.ErrDocumentNotFound)
}

func TestQueueProcessesJobs(t *testing.T) {
	service, _, docRepo, _, dir := newIngestFixture(t)

	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("queued content"), 0o644))
	docRepo.docs[20] = &domainKnowledge.Document{
		ID: 20, KnowledgeBaseID: 1, Filename: "doc.txt", FilePath: path, FileType: "txt",
	}

	cfg := &config.Config{Ingest: config.IngestConfig{Workers: 1, QueueSize: 4}}
	queue := NewQueue(cfg, service)
	queue.Start()
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(20))

	require.Eventually(t, func() bool {
		doc, err := docRepo.Get(context.Background(), 20)
		return err == nil && doc.IsProcessed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueFull(t *testing.T) {
	service, _, _, _, _ := newIngestFixture(t)

	cfg := &config.Config{Ingest: config.IngestConfig{Workers: 1, QueueSize: 1}}
	queue := NewQueue(cfg, service)
	// 不启动 worker，第二个任务必然溢出

	require.NoError(t, queue.Enqueue(1))
	assert.ErrorIs(t, queue.Enqueue(2), ErrQueueFull)
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	service, _, _, _, _ := newIngestFixture(t)

	cfg := &config.Config{Ingest: config.IngestConfig{Workers: 1, QueueSize: 4}}
	queue := NewQueue(cfg, service)
	queue.Start()
	queue.Stop()

	// 停止后入队返回错误而不是 panic；重复 Stop 也是安全的
	assert.ErrorIs(t, queue.Enqueue(1), ErrQueueStopped)
	queue.Stop()
	assert.ErrorIs(t, queue.Enqueue(2), ErrQueueStopped)
}
