package llm

import "errors"

var (
	// ErrUnsupportedModel 模型名不属于任何已知提供方
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrCredentialMissing 对应提供方未配置 API Key
	ErrCredentialMissing = errors.New("provider credential missing")
	// ErrProviderTimeout 生成调用超时
	ErrProviderTimeout = errors.New("provider request timeout")
	// ErrProviderError 提供方返回错误响应
	ErrProviderError = errors.New("provider request failed")
)
