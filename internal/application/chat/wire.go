package chat

import (
	"github.com/google/wire"

	"github.com/aimaestro/backend/internal/infrastructure/llm"
)

// ProviderSet 对话编排依赖注入
var ProviderSet = wire.NewSet(
	NewSessionStore,
	NewOrchestrator,
	NewDispatcher,
	wire.Bind(new(Generator), new(*llm.Gateway)),
)
