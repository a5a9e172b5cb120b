package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"sonnet": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
		Jina:       JinaRate{PerSearch: 0.01, PerMTok: 0.02},
		Perplexity: PerplexityRate{PerQuery: 0.005},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		input      int
		output     int
		cacheWrite int
		cacheRead  int
		want       float64
	}{
		{"input and output", "sonnet", 1_000_000, 100_000, 0, 0, 3.00 + 1.50},
		{"cache write", "sonnet", 0, 0, 1_000_000, 0, 3.75},
		{"cache read", "sonnet", 0, 0, 0, 1_000_000, 0.30},
		{"unknown model", "gpt", 1_000_000, 1_000_000, 0, 0, 0},
		{"zero", "sonnet", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Claude(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNewCalculator_MergesDefaults(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.Greater(t, calc.Claude("claude-sonnet-4-5-20250929", 1000, 1000, 0, 0), 0.0)

	empty := NewCalculator(Rates{})
	assert.Greater(t, empty.Claude("claude-haiku-4-5-20251001", 1000, 0, 0, 0), 0.0)
}

func TestDiscovery(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.005, calc.Discovery("perplexity", 0), 1e-9)
	assert.InDelta(t, 0.01+0.02, calc.Discovery("jina", 1_000_000), 1e-9)
	assert.InDelta(t, 0.0, calc.Discovery("none", 500), 1e-9)
}
