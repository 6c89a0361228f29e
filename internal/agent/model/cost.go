package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens for models commonly routed through OpenRouter.
var defaultPricing = map[string]Pricing{
	"openai/gpt-3.5-turbo":    {InputPerM: 0.50, OutputPerM: 1.50},
	"openai/gpt-4o-mini":      {InputPerM: 0.15, OutputPerM: 0.60},
	"openai/gpt-4o":           {InputPerM: 2.50, OutputPerM: 10.00},
	"google/gemini-flash-1.5": {InputPerM: 0.075, OutputPerM: 0.30},
}

// ResolvePricing returns hardcoded pricing for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
