package ingest

import (
	"context"
	"fmt"
	"log/slog"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// Service 文档摄取服务
// 提取文本、切分片段、向量化并写入检索索引
type Service struct {
	kbRepo  domainKnowledge.KnowledgeBaseRepository
	docRepo domainKnowledge.DocumentRepository
	index   domainKnowledge.RetrievalIndex
	logger  *slog.Logger
}

// NewService 创建摄取服务
func NewService(
	kbRepo domainKnowledge.KnowledgeBaseRepository,
	docRepo domainKnowledge.DocumentRepository,
	index domainKnowledge.RetrievalIndex,
) *Service {
	return &Service{
		kbRepo:  kbRepo,
		docRepo: docRepo,
		index:   index,
		logger:  log.NewModuleLogger("ingest", "service"),
	}
}

// ProcessDocument 处理单个文档
// 任何一步失败都把原因落到文档的 processing_error 上，再向上返回；
// 已写入索引的片段不回滚，重新处理会覆盖计数
func (s *Service) ProcessDocument(ctx context.Context, documentID int64) error {
	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil {
		return err
	}
	kb, err := s.kbRepo.Get(ctx, doc.KnowledgeBaseID)
	if err != nil {
		return err
	}

	chunksCount, err := s.process(ctx, kb, doc)
	if err != nil {
		s.logger.Error("document processing failed",
			"document_id", doc.ID, "filename", doc.Filename, "error", err)
		if markErr := s.docRepo.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to record processing error",
				"document_id", doc.ID, "error", markErr)
		}
		return err
	}

	if err := s.docRepo.MarkProcessed(ctx, doc.ID, chunksCount); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	if err := s.kbRepo.IncrementTotals(ctx, kb.ID, 1, chunksCount); err != nil {
		return fmt.Errorf("failed to update kb totals: %w", err)
	}

	s.logger.Info("document processed",
		"document_id", doc.ID, "filename", doc.Filename, "chunks", chunksCount)
	return nil
}

// process 提取、切分并索引文档
func (s *Service) process(ctx context.Context, kb *domainKnowledge.KnowledgeBase, doc *domainKnowledge.Document) (int, error) {
	text, err := ExtractText(doc.FilePath, doc.FileType)
	if err != nil {
		return 0, err
	}

	chunks, err := ChunkText(text, kb.ChunkSize, kb.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	for _, c := range chunks {
		c.DocumentID = doc.ID
		c.Metadata = map[string]string{"filename": doc.Filename}
	}

	added, err := s.index.Add(ctx, kb.ID, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to index chunks: %w", err)
	}
	return added, nil
}
