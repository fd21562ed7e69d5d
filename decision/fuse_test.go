package decision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/market"
	"fundpilot/strategy"
)

func equityCategory(string) string { return "equity" }

var rangingRegimes = map[string]string{"equity": market.RegimeRanging}

func TestFuseOpposingEqualWeightsCancels(t *testing.T) {
	runs := []strategyRun{
		{name: "a", weight: 0.5, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.8, StrategyName: "a", Reason: "up"},
		}},
		{name: "b", weight: 0.5, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Sell, Confidence: 0.8, StrategyName: "b", Reason: "down"},
		}},
	}
	out := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)
	assert.Empty(t, out, "net 0 stays below the BUY threshold and is discarded")
}

func TestFuseConflictDampening(t *testing.T) {
	// buy = 0.9*0.6 = 0.54, sell = 0.5*0.4 = 0.20: net 0.34 -> BUY.
	runs := []strategyRun{
		{name: "a", weight: 0.6, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.9, StrategyName: "a", Reason: "up"},
		}},
		{name: "b", weight: 0.4, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Sell, Confidence: 0.5, StrategyName: "b", Reason: "down"},
		}},
	}
	out := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)
	require.Len(t, out, 1)
	sig := out[0]
	assert.Equal(t, strategy.Buy, sig.Type)

	// Raw confidence |net|/total = 0.34/0.74, dampened by
	// (1 - 0.5*min/total) = (1 - 0.5*0.20/0.74).
	raw := 0.34 / 0.74
	dampened := raw * (1 - 0.5*0.20/0.74)
	assert.InDelta(t, dampened, sig.Confidence, 0.01)
	assert.Contains(t, sig.Reason, "[conflict]")
	assert.Equal(t, true, sig.Metadata["has_conflict"])
}

func TestFuseNoConflictNoDampening(t *testing.T) {
	runs := []strategyRun{
		{name: "a", weight: 0.5, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.9, StrategyName: "a", Reason: "r1"},
		}},
		{name: "b", weight: 0.3, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.8, StrategyName: "b", Reason: "r2"},
		}},
	}
	out := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)
	require.Len(t, out, 1)
	assert.Equal(t, strategy.StrongBuy, out[0].Type, "net 0.69 > 0.5")
	assert.InDelta(t, 0.95, out[0].Confidence, 1e-9, "confidence clamped to 0.95")
	assert.NotContains(t, out[0].Reason, "[conflict]")
}

func TestFuseDropsWeakBuckets(t *testing.T) {
	runs := []strategyRun{
		{name: "a", weight: 0.1, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.5, StrategyName: "a"},
		}},
	}
	out := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)
	assert.Empty(t, out, "combined score 0.05 < 0.1 bucket floor")
}

func TestFuseThresholds(t *testing.T) {
	mk := func(conf, weight float64) []strategyRun {
		return []strategyRun{{name: "a", weight: weight, signals: []strategy.Signal{
			{FundCode: "F1", Type: strategy.Buy, Confidence: conf, StrategyName: "a"},
		}}}
	}
	// net 0.15: discarded as HOLD despite clearing the bucket floor.
	assert.Empty(t, fuse(mk(0.5, 0.3), equityCategory, rangingRegimes, market.RegimeRanging))

	// net 0.30: BUY.
	out := fuse(mk(0.6, 0.5), equityCategory, rangingRegimes, market.RegimeRanging)
	require.Len(t, out, 1)
	assert.Equal(t, strategy.Buy, out[0].Type)

	// net 0.60: STRONG_BUY.
	out = fuse(mk(0.8, 0.75), equityCategory, rangingRegimes, market.RegimeRanging)
	require.Len(t, out, 1)
	assert.Equal(t, strategy.StrongBuy, out[0].Type)
}

func TestFuseOrderingAndDeterminism(t *testing.T) {
	runs := []strategyRun{
		{name: "a", weight: 0.5, signals: []strategy.Signal{
			{FundCode: "F2", Type: strategy.Buy, Confidence: 0.5, StrategyName: "a"},
			{FundCode: "F1", Type: strategy.Buy, Confidence: 0.9, StrategyName: "a"},
			{FundCode: "F3", Type: strategy.Buy, Confidence: 0.9, StrategyName: "a"},
		}},
	}
	first := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)
	second := fuse(runs, equityCategory, rangingRegimes, market.RegimeRanging)

	aJSON, _ := json.Marshal(first)
	bJSON, _ := json.Marshal(second)
	assert.Equal(t, string(aJSON), string(bJSON), "byte-identical across re-runs")

	require.Len(t, first, 3)
	// Priority 45 ties between F1 and F3 resolve by fund code.
	assert.Equal(t, "F1", first[0].FundCode)
	assert.Equal(t, "F3", first[1].FundCode)
	assert.Equal(t, "F2", first[2].FundCode)
}

func TestFuseRegimeFromCategory(t *testing.T) {
	categoryOf := func(code string) string {
		if code == "B1" {
			return "bond"
		}
		return "equity"
	}
	regimes := map[string]string{"equity": market.RegimeBullWeak, "bond": market.RegimeBearWeak}
	runs := []strategyRun{
		{name: "a", weight: 0.5, signals: []strategy.Signal{
			{FundCode: "B1", Type: strategy.Buy, Confidence: 0.9, StrategyName: "a"},
		}},
	}
	out := fuse(runs, categoryOf, regimes, market.RegimeBullWeak)
	require.Len(t, out, 1)
	assert.Equal(t, market.RegimeBearWeak, out[0].Metadata["regime"])
	assert.Equal(t, "bond", out[0].Metadata["category"])
}
