package llm

import "strings"

// pricing is USD per 1K tokens as [input, output].
var pricing = map[string][2]float64{
	"gpt-4o":                 {0.0025, 0.01},
	"gpt-4o-mini":            {0.00015, 0.0006},
	"gpt-4.1":                {0.002, 0.008},
	"gpt-4.1-mini":           {0.0004, 0.0016},
	"text-embedding-3-small": {0.00002, 0},
	"text-embedding-3-large": {0.00013, 0},

	"claude-3-5-haiku":  {0.0008, 0.004},
	"claude-sonnet-4":   {0.003, 0.015},
	"claude-3-7-sonnet": {0.003, 0.015},
}

// CalculateCost prices a call. Dated model names such as
// "gpt-4o-mini-2024-07-18" fall back to the longest known prefix; unknown
// and local models cost 0.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := pricing[model]
	if !ok {
		best := ""
		for name := range pricing {
			if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
				best = name
			}
		}
		if best == "" {
			return 0
		}
		prices = pricing[best]
	}
	return float64(inputTokens)/1000.0*prices[0] + float64(outputTokens)/1000.0*prices[1]
}
