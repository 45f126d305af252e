package ingest

import "github.com/google/wire"

// ProviderSet 摄取服务依赖注入
var ProviderSet = wire.NewSet(NewService, NewQueue)
