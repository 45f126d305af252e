package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimaestro/backend/internal/application/chat"
	"github.com/aimaestro/backend/internal/application/ingest"
	domainAgent "github.com/aimaestro/backend/internal/domain/agent"
	domainChat "github.com/aimaestro/backend/internal/domain/chat"
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/llm"
	"github.com/aimaestro/backend/internal/interfaces/http/response"
)

// 业务错误码
const (
	codeInvalidRequest   = 1000
	codeNotFound         = 1001
	codeConversationOver = 1002
	codeUnsupported      = 1003
	codeProviderFailure  = 1004
	codeTooLarge         = 1005
	codeBusy             = 1006
	codeInternal         = 1999
)

// writeError 把领域错误映射到 HTTP 状态码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainAgent.ErrAgentNotAvailable),
		errors.Is(err, domainChat.ErrConversationNotFound),
		errors.Is(err, domainKnowledge.ErrKnowledgeBaseNotFound),
		errors.Is(err, domainKnowledge.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, codeNotFound, err.Error())

	case errors.Is(err, domainChat.ErrConversationEnded):
		response.Error(c, http.StatusConflict, codeConversationOver, err.Error())

	case errors.Is(err, llm.ErrUnsupportedModel),
		errors.Is(err, domainKnowledge.ErrUnsupportedFileType),
		errors.Is(err, domainKnowledge.ErrInvalidChunkParams):
		response.Error(c, http.StatusBadRequest, codeUnsupported, err.Error())

	case errors.Is(err, domainKnowledge.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, codeTooLarge, err.Error())

	case errors.Is(err, llm.ErrProviderTimeout):
		response.Error(c, http.StatusGatewayTimeout, codeProviderFailure, err.Error())

	case errors.Is(err, llm.ErrProviderError),
		errors.Is(err, llm.ErrCredentialMissing):
		response.Error(c, http.StatusBadGateway, codeProviderFailure, err.Error())

	case errors.Is(err, ingest.ErrQueueFull),
		errors.Is(err, ingest.ErrQueueStopped),
		errors.Is(err, chat.ErrChannelQueueFull),
		errors.Is(err, chat.ErrChannelQueueStopped):
		response.Error(c, http.StatusServiceUnavailable, codeBusy, err.Error())

	default:
		response.Error(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
