package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

// 确保实现了领域接口
var (
	_ domainKnowledge.KnowledgeBaseRepository = (*KnowledgeBaseRepositoryImpl)(nil)
	_ domainKnowledge.DocumentRepository      = (*DocumentRepositoryImpl)(nil)
)

// KnowledgeBaseRepositoryImpl 知识库仓库实现
type KnowledgeBaseRepositoryImpl struct {
	db *sql.DB
}

// NewKnowledgeBaseRepository 创建知识库仓库实例
func NewKnowledgeBaseRepository(db *sql.DB) domainKnowledge.KnowledgeBaseRepository {
	return &KnowledgeBaseRepositoryImpl{db: db}
}

// Create 创建知识库
func (r *KnowledgeBaseRepositoryImpl) Create(ctx context.Context, kb *domainKnowledge.KnowledgeBase) error {
	if kb.ChunkOverlap < 0 || kb.ChunkOverlap >= kb.ChunkSize {
		return domainKnowledge.ErrInvalidChunkParams
	}

	now := time.Now()
	kb.CreatedAt = now
	kb.UpdatedAt = now
	kb.IsActive = true

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (
			agent_id, name, description, embedding_model, chunk_size, chunk_overlap,
			is_active, total_documents, total_chunks, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, 0, 0, ?, ?)`,
		kb.AgentID, kb.Name, kb.Description, kb.EmbeddingModel,
		kb.ChunkSize, kb.ChunkOverlap, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge base: %w", err)
	}

	kb.ID, err = res.LastInsertId()
	return err
}

// Get 按 ID 获取知识库
func (r *KnowledgeBaseRepositoryImpl) Get(ctx context.Context, id int64) (*domainKnowledge.KnowledgeBase, error) {
	row := r.db.QueryRowContext(ctx, selectKnowledgeBase+` WHERE id = ?`, id)
	kb, err := scanKnowledgeBase(row)
	if err == sql.ErrNoRows {
		return nil, domainKnowledge.ErrKnowledgeBaseNotFound
	}
	return kb, err
}

// GetActiveByAgent 获取智能体当前启用的知识库
func (r *KnowledgeBaseRepositoryImpl) GetActiveByAgent(ctx context.Context, agentID int64) (*domainKnowledge.KnowledgeBase, error) {
	row := r.db.QueryRowContext(ctx,
		selectKnowledgeBase+` WHERE agent_id = ? AND is_active = 1 ORDER BY id LIMIT 1`, agentID)
	kb, err := scanKnowledgeBase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return kb, err
}

// ListByAgent 列出智能体下的所有知识库
func (r *KnowledgeBaseRepositoryImpl) ListByAgent(ctx context.Context, agentID int64) ([]*domainKnowledge.KnowledgeBase, error) {
	rows, err := r.db.QueryContext(ctx, selectKnowledgeBase+` WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kbs []*domainKnowledge.KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows)
		if err != nil {
			return nil, err
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

// IncrementTotals 累加文档/片段计数
func (r *KnowledgeBaseRepositoryImpl) IncrementTotals(ctx context.Context, id int64, documents, chunks int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE knowledge_bases
		SET total_documents = total_documents + ?,
		    total_chunks = total_chunks + ?,
		    updated_at = ?
		WHERE id = ?`,
		documents, chunks, time.Now().Unix(), id)
	return err
}

// Delete 删除知识库并级联删除其文档记录
func (r *KnowledgeBaseRepositoryImpl) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE knowledge_base_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return domainKnowledge.ErrKnowledgeBaseNotFound
	}

	return tx.Commit()
}

const selectKnowledgeBase = `
	SELECT id, agent_id, name, description, embedding_model, chunk_size, chunk_overlap,
	       is_active, total_documents, total_chunks, created_at, updated_at
	FROM knowledge_bases`

// scanKnowledgeBase 扫描一行知识库数据
func scanKnowledgeBase(row rowScanner) (*domainKnowledge.KnowledgeBase, error) {
	var kb domainKnowledge.KnowledgeBase
	var isActive int
	var createdAt, updatedAt int64

	err := row.Scan(
		&kb.ID, &kb.AgentID, &kb.Name, &kb.Description, &kb.EmbeddingModel,
		&kb.ChunkSize, &kb.ChunkOverlap, &isActive,
		&kb.TotalDocuments, &kb.TotalChunks,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	kb.IsActive = isActive == 1
	kb.CreatedAt = time.Unix(createdAt, 0)
	kb.UpdatedAt = time.Unix(updatedAt, 0)
	return &kb, nil
}

// DocumentRepositoryImpl 文档仓库实现
type DocumentRepositoryImpl struct {
	db *sql.DB
}

// NewDocumentRepository 创建文档仓库实例
func NewDocumentRepository(db *sql.DB) domainKnowledge.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

// Create 创建文档记录
func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *domainKnowledge.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	metadataJSON, _ := json.Marshal(doc.Metadata)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (
			knowledge_base_id, filename, file_path, file_type, file_size,
			is_processed, chunks_count, processing_error, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, 0, 0, '', ?, ?)`,
		doc.KnowledgeBaseID, doc.Filename, doc.FilePath, doc.FileType,
		doc.FileSize, string(metadataJSON), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	doc.ID, err = res.LastInsertId()
	return err
}

// Get 按 ID 获取文档
func (r *DocumentRepositoryImpl) Get(ctx context.Context, id int64) (*domainKnowledge.Document, error) {
	row := r.db.QueryRowContext(ctx, selectDocument+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, domainKnowledge.ErrDocumentNotFound
	}
	return doc, err
}

// ListByKnowledgeBase 列出知识库下的所有文档
func (r *DocumentRepositoryImpl) ListByKnowledgeBase(ctx context.Context, kbID int64) ([]*domainKnowledge.Document, error) {
	rows, err := r.db.QueryContext(ctx, selectDocument+` WHERE knowledge_base_id = ? ORDER BY id`, kbID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domainKnowledge.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkProcessed 标记处理成功并记录片段数
func (r *DocumentRepositoryImpl) MarkProcessed(ctx context.Context, id int64, chunksCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET is_processed = 1, chunks_count = ?, processing_error = '', processed_at = ?
		WHERE id = ?`,
		chunksCount, time.Now().Unix(), id)
	return err
}

// MarkFailed 记录处理失败原因
func (r *DocumentRepositoryImpl) MarkFailed(ctx context.Context, id int64, processingError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET is_processed = 0, processing_error = ?
		WHERE id = ?`,
		processingError, id)
	return err
}

const selectDocument = `
	SELECT id, knowledge_base_id, filename, file_path, file_type, file_size,
	       is_processed, chunks_count, processing_error, metadata,
	       created_at, processed_at
	FROM documents`

// scanDocument 扫描一行文档数据
func scanDocument(row rowScanner) (*domainKnowledge.Document, error) {
	var doc domainKnowledge.Document
	var isProcessed int
	var metadataJSON sql.NullString
	var createdAt int64
	var processedAt sql.NullInt64

	err := row.Scan(
		&doc.ID, &doc.KnowledgeBaseID, &doc.Filename, &doc.FilePath,
		&doc.FileType, &doc.FileSize, &isProcessed, &doc.ChunksCount,
		&doc.ProcessingError, &metadataJSON, &createdAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.IsProcessed = isProcessed == 1
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata)
	}
	doc.CreatedAt = time.Unix(createdAt, 0)
	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0)
		doc.ProcessedAt = &t
	}
	return &doc, nil
}
