package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func waveSeries(n int, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 5*math.Sin(float64(i)/4+phase)
	}
	return out
}

func TestReturnCorrelationIdentical(t *testing.T) {
	a := waveSeries(130, 0)
	returns := tailReturns(a, 120)
	assert.InDelta(t, 1.0, ReturnCorrelation(returns, returns), 1e-9)
}

func TestReturnCorrelationInverse(t *testing.T) {
	a := tailReturns(waveSeries(130, 0), 120)
	b := tailReturns(waveSeries(130, math.Pi), 120)
	assert.Less(t, ReturnCorrelation(a, b), -0.9)
}

func TestReturnCorrelationShortOverlap(t *testing.T) {
	assert.Zero(t, ReturnCorrelation(make([]float64, 10), make([]float64, 10)))
}

func TestCorrelationPenaltyBands(t *testing.T) {
	a := waveSeries(130, 0)

	// Identical holding: avg correlation 1.0 -> hard cut.
	assert.InDelta(t, 0.3, CorrelationPenalty(a, [][]float64{a}), 1e-9)

	// No holdings: no penalty.
	assert.InDelta(t, 1.0, CorrelationPenalty(a, nil), 1e-9)

	// Inverse holding: negative correlation, no penalty.
	b := waveSeries(130, math.Pi)
	assert.InDelta(t, 1.0, CorrelationPenalty(a, [][]float64{b}), 1e-9)
}

func TestPortfolioCorrelationDiversified(t *testing.T) {
	holdings := map[string][]float64{
		"a": waveSeries(130, 0),
		"b": waveSeries(130, math.Pi),
	}
	avg, score, high := PortfolioCorrelation(holdings)
	assert.Less(t, avg, 0.0)
	assert.Greater(t, score, 90.0)
	assert.Empty(t, high)
}

func TestPortfolioCorrelationConcentrated(t *testing.T) {
	holdings := map[string][]float64{
		"a": waveSeries(130, 0),
		"b": waveSeries(130, 0.01),
	}
	avg, _, high := PortfolioCorrelation(holdings)
	assert.Greater(t, avg, 0.8)
	assert.Len(t, high, 1)
}

func TestPortfolioCorrelationSingleHolding(t *testing.T) {
	_, score, _ := PortfolioCorrelation(map[string][]float64{"a": waveSeries(130, 0)})
	assert.InDelta(t, 100, score, 1e-9)
}
