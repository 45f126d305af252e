package knowledge

import "errors"

var (
	// ErrKnowledgeBaseNotFound 知识库不存在
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUnsupportedFileType 不支持的文件类型，在任何解析工作开始前返回
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge 文件超出大小限制
	ErrFileTooLarge = errors.New("file too large")
	// ErrDocumentParse 文档解析失败（损坏的文件、不可读的编码）
	ErrDocumentParse = errors.New("document parse error")
	// ErrInvalidChunkParams 切分参数不满足 chunk_size >= 100 且 0 <= overlap < size
	ErrInvalidChunkParams = errors.New("invalid chunk parameters")
)
