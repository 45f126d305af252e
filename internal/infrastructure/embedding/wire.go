package embedding

import "github.com/google/wire"

// ProviderSet Embedding 客户端依赖注入
var ProviderSet = wire.NewSet(NewClient)
