package llm

import "unicode/utf8"

// modelPrice 每 token 的美元价格
type modelPrice struct {
	input  float64
	output float64
}

// prices 各模型计费表，未收录的模型按 gpt-3.5-turbo 估算
var prices = map[string]modelPrice{
	"gpt-4":           {input: 0.03 / 1000, output: 0.06 / 1000},
	"gpt-3.5-turbo":   {input: 0.0015 / 1000, output: 0.002 / 1000},
	"claude-3-opus":   {input: 0.015 / 1000, output: 0.075 / 1000},
	"claude-3-sonnet": {input: 0.003 / 1000, output: 0.015 / 1000},
}

// EstimateTokens 估算文本 token 数，约 4 个字符一个 token
// 只用于计费估算与历史裁剪，不追求与提供方分词完全一致
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// EstimateCost 按输入/输出 token 数估算调用成本（美元）
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	price, ok := prices[model]
	if !ok {
		price = prices["gpt-3.5-turbo"]
	}
	return float64(promptTokens)*price.input + float64(completionTokens)*price.output
}
