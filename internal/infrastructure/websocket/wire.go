package websocket

import "github.com/google/wire"

// ProviderSet WebSocket Hub 依赖注入
var ProviderSet = wire.NewSet(NewHub)
