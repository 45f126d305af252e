package knowledge

import "github.com/google/wire"

// ProviderSet 知识库服务依赖注入
var ProviderSet = wire.NewSet(NewService)
