package agent

import "github.com/google/wire"

// ProviderSet 智能体服务依赖注入
var ProviderSet = wire.NewSet(NewService)
