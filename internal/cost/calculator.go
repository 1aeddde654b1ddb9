package cost

import "github.com/sells-group/stock-researcher/internal/model"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily    SearchRate           `yaml:"tavily" mapstructure:"tavily"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// SearchRate holds flat per-search pricing by depth.
type SearchRate struct {
	Basic    float64 `yaml:"basic" mapstructure:"basic"`
	Advanced float64 `yaml:"advanced" mapstructure:"advanced"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of tokens on model. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Search computes the cost of search calls.
func (c *Calculator) Search(basic, advanced int) float64 {
	return float64(basic)*c.rates.Tavily.Basic + float64(advanced)*c.rates.Tavily.Advanced
}

// Run prices a run's usage. Judge tokens are priced on judgeModel.
func (c *Calculator) Run(u model.Usage, genModel, judgeModel string) float64 {
	return c.Claude(genModel, u.InputTokens, u.OutputTokens) +
		c.Claude(judgeModel, u.JudgeInputTokens, u.JudgeOutputTokens) +
		c.Search(u.BasicSearches, u.AdvancedSearches)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Tavily: SearchRate{Basic: 0.008, Advanced: 0.016},
	}
}
