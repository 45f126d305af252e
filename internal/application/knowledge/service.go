package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aimaestro/backend/internal/application/ingest"
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// minChunkSize 知识库允许的最小片段长度
const minChunkSize = 100

// Service 知识库管理服务
type Service struct {
	kbRepo  domainKnowledge.KnowledgeBaseRepository
	docRepo domainKnowledge.DocumentRepository
	index   domainKnowledge.RetrievalIndex
	queue   *ingest.Queue
	cfg     *config.IngestConfig
	logger  *slog.Logger
}

// NewService 创建知识库服务
func NewService(
	cfg *config.Config,
	kbRepo domainKnowledge.KnowledgeBaseRepository,
	docRepo domainKnowledge.DocumentRepository,
	index domainKnowledge.RetrievalIndex,
	queue *ingest.Queue,
) *Service {
	return &Service{
		kbRepo:  kbRepo,
		docRepo: docRepo,
		index:   index,
		queue:   queue,
		cfg:     &cfg.Ingest,
		logger:  log.NewModuleLogger("knowledge", "service"),
	}
}

// CreateInput 创建知识库的输入
type CreateInput struct {
	AgentID        int64
	Name           string
	Description    string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}

// Create 创建知识库
func (s *Service) Create(ctx context.Context, input *CreateInput) (*domainKnowledge.KnowledgeBase, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("knowledge base name is required")
	}
	if input.ChunkSize < minChunkSize {
		return nil, fmt.Errorf("%w: chunk_size must be at least %d",
			domainKnowledge.ErrInvalidChunkParams, minChunkSize)
	}
	if input.ChunkOverlap < 0 || input.ChunkOverlap >= input.ChunkSize {
		return nil, domainKnowledge.ErrInvalidChunkParams
	}

	kb := &domainKnowledge.KnowledgeBase{
		AgentID:        input.AgentID,
		Name:           input.Name,
		Description:    input.Description,
		EmbeddingModel: input.EmbeddingModel,
		ChunkSize:      input.ChunkSize,
		ChunkOverlap:   input.ChunkOverlap,
	}
	if err := s.kbRepo.Create(ctx, kb); err != nil {
		return nil, err
	}

	s.logger.Info("knowledge base created",
		"kb_id", kb.ID, "agent_id", kb.AgentID, "chunk_size", kb.ChunkSize)
	return kb, nil
}

// Get 按 ID 获取知识库
func (s *Service) Get(ctx context.Context, id int64) (*domainKnowledge.KnowledgeBase, error) {
	return s.kbRepo.Get(ctx, id)
}

// ListByAgent 列出智能体下的知识库
func (s *Service) ListByAgent(ctx context.Context, agentID int64) ([]*domainKnowledge.KnowledgeBase, error) {
	return s.kbRepo.ListByAgent(ctx, agentID)
}

// Delete 删除知识库：先清索引向量，再级联删除记录
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.kbRepo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.index.DeleteKnowledgeBase(ctx, id); err != nil {
		return err
	}
	return s.kbRepo.Delete(ctx, id)
}

// Upload 接收上传文件并提交摄取任务
// 类型与大小在任何提取工作之前校验；入队成功即返回，
// 处理进度通过文档状态轮询
func (s *Service) Upload(ctx context.Context, kbID int64, filename string, size int64, r io.Reader) (*domainKnowledge.Document, error) {
	kb, err := s.kbRepo.Get(ctx, kbID)
	if err != nil {
		return nil, err
	}

	fileType := ingest.FileTypeFromName(filename)
	switch fileType {
	case "pdf", "txt", "md", "markdown", "docx":
	default:
		return nil, fmt.Errorf("%w: %s", domainKnowledge.ErrUnsupportedFileType, filename)
	}

	maxSize := s.cfg.MaxFileSize
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", domainKnowledge.ErrFileTooLarge, size, maxSize)
	}

	path, written, err := s.saveUpload(filename, size, r)
	if err != nil {
		return nil, err
	}

	doc := &domainKnowledge.Document{
		KnowledgeBaseID: kb.ID,
		Filename:        filename,
		FilePath:        path,
		FileType:        fileType,
		FileSize:        written,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	if err := s.queue.Enqueue(doc.ID); err != nil {
		return nil, err
	}

	s.logger.Info("document uploaded",
		"document_id", doc.ID, "kb_id", kb.ID, "filename", filename, "size", written)
	return doc, nil
}

// saveUpload 把上传内容落到磁盘，带大小上限保护
func (s *Service) saveUpload(filename string, size int64, r io.Reader) (string, int64, error) {
	dir := s.cfg.UploadDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", 0, fmt.Errorf("failed to resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".aimaestro", "uploads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+"-"+filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	limit := s.cfg.MaxFileSize
	var src io.Reader = r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(f, src)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload file: %w", err)
	}
	if limit > 0 && written > limit {
		os.Remove(path)
		return "", 0, fmt.Errorf("%w: exceeds %d bytes", domainKnowledge.ErrFileTooLarge, limit)
	}
	return path, written, nil
}

// Documents 列出知识库下的文档及其处理状态
func (s *Service) Documents(ctx context.Context, kbID int64) ([]*domainKnowledge.Document, error) {
	if _, err := s.kbRepo.Get(ctx, kbID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByKnowledgeBase(ctx, kbID)
}

// Document 查询单个文档的处理状态
func (s *Service) Document(ctx context.Context, id int64) (*domainKnowledge.Document, error) {
	return s.docRepo.Get(ctx, id)
}

// Search 在知识库中直接检索
func (s *Service) Search(ctx context.Context, kbID int64, query string, topK int) ([]*domainKnowledge.SearchResult, error) {
	if _, err := s.kbRepo.Get(ctx, kbID); err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = 1
	}
	return s.index.Search(ctx, kbID, query, topK)
}
