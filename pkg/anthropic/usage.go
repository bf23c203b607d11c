package anthropic

import "go.uber.org/zap"

// TokenUsage is the token accounting of one message.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

type price struct {
	input, output float64 // USD per million tokens
}

const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.1
)

var pricing = map[string]price{
	"claude-haiku-4-5-20251001":  {input: 0.80, output: 4.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
	"claude-opus-4-6":            {input: 15.00, output: 75.00},
}

// EstimateCost returns the USD cost of u for model, or 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	perTok := func(n int64, rate float64) float64 { return float64(n) / 1e6 * rate }
	return perTok(u.InputTokens, p.input) +
		perTok(u.OutputTokens, p.output) +
		perTok(u.CacheCreationInputTokens, p.input*cacheWriteFactor) +
		perTok(u.CacheReadInputTokens, p.input*cacheReadFactor)
}

// LogCost logs token usage and estimated cost for a pipeline phase.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
