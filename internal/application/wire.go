package application

import (
	"github.com/aimaestro/backend/internal/application/agent"
	"github.com/aimaestro/backend/internal/application/chat"
	"github.com/aimaestro/backend/internal/application/ingest"
	"github.com/aimaestro/backend/internal/application/knowledge"
	"github.com/google/wire"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	agent.ProviderSet,
	chat.ProviderSet,
	ingest.ProviderSet,
	knowledge.ProviderSet,
	// 可以继续添加其他应用服务模块
)
