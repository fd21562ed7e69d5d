package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendSeries(start, dailyPct float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + dailyPct
	}
	return out
}

func TestDetectRegimeNeedsHistory(t *testing.T) {
	assert.Nil(t, DetectRegime(trendSeries(100, 0.001, 119), 0))
	assert.NotNil(t, DetectRegime(trendSeries(100, 0.001, 120), 0))
}

func TestDetectRegimeBullStrong(t *testing.T) {
	r := DetectRegime(trendSeries(100, 0.004, 200), 0)
	require.NotNil(t, r)
	assert.Equal(t, RegimeBullStrong, r.Regime)
	assert.Greater(t, r.TrendScore, 40.0)
}

func TestDetectRegimeBearStrong(t *testing.T) {
	r := DetectRegime(trendSeries(100, -0.004, 200), 0)
	require.NotNil(t, r)
	assert.Equal(t, RegimeBearStrong, r.Regime)
	assert.Less(t, r.TrendScore, -40.0)
}

func TestDetectRegimeFlatIsRanging(t *testing.T) {
	series := make([]float64, 200)
	for i := range series {
		series[i] = 100 + math.Sin(float64(i)/5)*0.2
	}
	r := DetectRegime(series, 0)
	require.NotNil(t, r)
	assert.Equal(t, RegimeRanging, r.Regime)
}

func TestFlowScoreClamped(t *testing.T) {
	base := DetectRegime(trendSeries(100, 0.0002, 200), 0)
	boosted := DetectRegime(trendSeries(100, 0.0002, 200), 500)
	require.NotNil(t, base)
	require.NotNil(t, boosted)
	assert.InDelta(t, 30, boosted.TrendScore-base.TrendScore, 1.0)
}

func TestRegimeAllocationWeightsSumToOne(t *testing.T) {
	for _, regime := range []string{RegimeBullStrong, RegimeBullWeak, RegimeRanging, RegimeBearWeak, RegimeBearStrong} {
		a := RegimeAllocation(regime)
		assert.InDelta(t, 1.0, a.EquityPct+a.BondPct+a.CashPct, 1e-9, regime)

		sum := 0.0
		for _, w := range a.StrategyWeights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, regime)
	}
}

func TestRegimeAllocationUnknownDefaultsToRanging(t *testing.T) {
	assert.Equal(t, RegimeAllocation(RegimeRanging), RegimeAllocation("martian"))
}

func TestRegimeAllocationIsACopy(t *testing.T) {
	a := RegimeAllocation(RegimeRanging)
	a.StrategyWeights["trend_following"] = 99
	assert.NotEqual(t, 99.0, RegimeAllocation(RegimeRanging).StrategyWeights["trend_following"])
}
