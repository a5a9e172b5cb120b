// Package cost prices classifier tokens and discovery queries.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaRate             `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaRate prices Jina search and reader calls.
type JinaRate struct {
	PerSearch float64 `yaml:"per_search" mapstructure:"per_search"`
	PerMTok   float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator. Missing model rates fall back to the
// defaults so a partial pricing block in config still prices known models.
func NewCalculator(rates Rates) *Calculator {
	def := DefaultRates()
	if rates.Anthropic == nil {
		rates.Anthropic = def.Anthropic
	} else {
		for model, r := range def.Anthropic {
			if _, ok := rates.Anthropic[model]; !ok {
				rates.Anthropic[model] = r
			}
		}
	}
	return &Calculator{rates: rates}
}

// Claude computes the cost of one classifier call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	in := (float64(input) / 1e6) * rate.Input
	out := (float64(output) / 1e6) * rate.Output
	cw := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return in + out + cw + cr
}

// JinaSearch returns the flat cost of one Jina search.
func (c *Calculator) JinaSearch() float64 {
	return c.rates.Jina.PerSearch
}

// JinaRead computes the cost of reader token usage.
func (c *Calculator) JinaRead(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// Discovery returns the cost of one discovery call for the named provider.
func (c *Calculator) Discovery(provider string, readTokens int) float64 {
	switch provider {
	case "perplexity":
		return c.PerplexityQuery()
	case "jina":
		return c.JinaSearch() + c.JinaRead(readTokens)
	}
	return 0
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Jina:       JinaRate{PerSearch: 0.01, PerMTok: 0.02},
		Perplexity: PerplexityRate{PerQuery: 0.005},
	}
}
