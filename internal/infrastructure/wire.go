package infrastructure

import (
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/embedding"
	"github.com/aimaestro/backend/internal/infrastructure/llm"
	"github.com/aimaestro/backend/internal/infrastructure/storage"
	"github.com/aimaestro/backend/internal/infrastructure/vector"
	"github.com/aimaestro/backend/internal/infrastructure/websocket"
	"github.com/google/wire"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	llm.ProviderSet,
	embedding.ProviderSet,
	vector.ProviderSet,
	websocket.ProviderSet,
	// 可以继续添加其他基础设施模块
)
