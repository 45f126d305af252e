package llm

import "github.com/google/wire"

// ProviderSet 模型网关依赖注入
var ProviderSet = wire.NewSet(NewGateway)
