package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appKnowledge "github.com/aimaestro/backend/internal/application/knowledge"
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/interfaces/http/response"
)

// KnowledgeHandler 知识库处理器
type KnowledgeHandler struct {
	service *appKnowledge.Service
	logger  *slog.Logger
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(service *appKnowledge.Service) *KnowledgeHandler {
	return &KnowledgeHandler{
		service: service,
		logger:  log.NewModuleLogger("knowledge", "handler"),
	}
}

// CreateKBRequest 创建知识库请求
type CreateKBRequest struct {
	AgentID        int64  `json:"agent_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
}

// KnowledgeBaseView 知识库视图
type KnowledgeBaseView struct {
	ID             int64     `json:"id"`
	AgentID        int64     `json:"agent_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	TotalDocuments int       `json:"total_documents"`
	TotalChunks    int       `json:"total_chunks"`
	CreatedAt      time.Time `json:"created_at"`
}

func kbView(kb *domainKnowledge.KnowledgeBase) KnowledgeBaseView {
	return KnowledgeBaseView{
		ID:             kb.ID,
		AgentID:        kb.AgentID,
		Name:           kb.Name,
		Description:    kb.Description,
		EmbeddingModel: kb.EmbeddingModel,
		ChunkSize:      kb.ChunkSize,
		ChunkOverlap:   kb.ChunkOverlap,
		TotalDocuments: kb.TotalDocuments,
		TotalChunks:    kb.TotalChunks,
		CreatedAt:      kb.CreatedAt,
	}
}

// DocumentView 文档视图
type DocumentView struct {
	ID              int64      `json:"id"`
	Filename        string     `json:"filename"`
	FileType        string     `json:"file_type"`
	FileSize        int64      `json:"file_size"`
	IsProcessed     bool       `json:"is_processed"`
	ChunksCount     int        `json:"chunks_count"`
	ProcessingError string     `json:"processing_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

func documentView(d *domainKnowledge.Document) DocumentView {
	return DocumentView{
		ID:              d.ID,
		Filename:        d.Filename,
		FileType:        d.FileType,
		FileSize:        d.FileSize,
		IsProcessed:     d.IsProcessed,
		ChunksCount:     d.ChunksCount,
		ProcessingError: d.ProcessingError,
		CreatedAt:       d.CreatedAt,
		ProcessedAt:     d.ProcessedAt,
	}
}

// Create 创建知识库
// POST /api/v1/knowledge-bases
func (h *KnowledgeHandler) Create(c *gin.Context) {
	var req CreateKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = 1000
	}
	if req.ChunkOverlap == 0 {
		req.ChunkOverlap = 200
	}

	kb, err := h.service.Create(c.Request.Context(), &appKnowledge.CreateInput{
		AgentID:        req.AgentID,
		Name:           req.Name,
		Description:    req.Description,
		EmbeddingModel: req.EmbeddingModel,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, kbView(kb))
}

// List 列出智能体下的知识库
// GET /api/v1/knowledge-bases?agent_id=...
func (h *KnowledgeHandler) List(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Query("agent_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "agent_id is required")
		return
	}

	kbs, err := h.service.ListByAgent(c.Request.Context(), agentID)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]KnowledgeBaseView, 0, len(kbs))
	for _, kb := range kbs {
		views = append(views, kbView(kb))
	}
	response.Success(c, views)
}

// Get 获取单个知识库
// GET /api/v1/knowledge-bases/:id
func (h *KnowledgeHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid knowledge base id")
		return
	}

	kb, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, kbView(kb))
}

// Delete 删除知识库
// DELETE /api/v1/knowledge-bases/:id
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid knowledge base id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Upload 上传文档并提交摄取任务
// POST /api/v1/knowledge-bases/:id/documents
func (h *KnowledgeHandler) Upload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid knowledge base id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "file is required")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	defer f.Close()

	doc, err := h.service.Upload(c.Request.Context(), id, fileHeader.Filename, fileHeader.Size, f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, documentView(doc))
}

// Documents 列出知识库文档及处理状态
// GET /api/v1/knowledge-bases/:id/documents
func (h *KnowledgeHandler) Documents(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid knowledge base id")
		return
	}

	docs, err := h.service.Documents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, documentView(d))
	}
	response.Success(c, views)
}

// Document 查询单个文档状态
// GET /api/v1/documents/:id
func (h *KnowledgeHandler) Document(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid document id")
		return
	}

	doc, err := h.service.Document(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, documentView(doc))
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResultView 检索结果
type SearchResultView struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	Ordinal int     `json:"ordinal"`
}

// Search 在知识库中直接检索
// POST /api/v1/knowledge-bases/:id/search
func (h *KnowledgeHandler) Search(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid knowledge base id")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	results, err := h.service.Search(c.Request.Context(), id, req.Query, req.TopK)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]SearchResultView, 0, len(results))
	for _, r := range results {
		views = append(views, SearchResultView{
			Content: r.Content,
			Score:   r.Score,
			Ordinal: r.Ordinal,
		})
	}
	response.Success(c, views)
}
