package analysis

import (
	"fmt"
	"math"
)

// Pricing holds the published per-unit rates in USD.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
	PerImage         float64 `yaml:"per_image"`
}

// DefaultPricing is the Gemini 2.5 Flash price list the producer runs on.
var DefaultPricing = Pricing{
	InputPerMillion:  0.30,
	OutputPerMillion: 2.50,
	PerImage:         0.039,
}

// Estimate returns the cost of m in USD, rounded to 4 decimal places.
func (p Pricing) Estimate(m UsageMetrics) float64 {
	inputCost := float64(m.PromptTokens) / 1_000_000 * p.InputPerMillion
	outputCost := float64(m.OutputTokens) / 1_000_000 * p.OutputPerMillion
	imageCost := float64(m.ImageGenerations) * p.PerImage
	return math.Round((inputCost+outputCost+imageCost)*10_000) / 10_000
}

// EstimateCost prices m with DefaultPricing.
func EstimateCost(m UsageMetrics) float64 {
	return DefaultPricing.Estimate(m)
}

// FormatUSD renders a cost the way it is displayed to users.
func FormatUSD(cost float64) string {
	return fmt.Sprintf("$%.4f USD", cost)
}
