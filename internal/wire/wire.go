//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/aimaestro/backend/internal/application"
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure"
	"github.com/aimaestro/backend/internal/infrastructure/embedding"
	"github.com/aimaestro/backend/internal/interfaces"
	"github.com/google/wire"
)

// InitializeAll 初始化所有服务
func InitializeAll() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：knowledge.Embedder -> embedding.Client
		wire.Bind(
			new(domainKnowledge.Embedder),
			new(*embedding.Client),
		),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}
