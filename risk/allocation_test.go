package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fundpilot/market"
)

func TestTargetAllocationSumsToOne(t *testing.T) {
	for _, regime := range []string{market.RegimeBullStrong, market.RegimeBullWeak,
		market.RegimeRanging, market.RegimeBearWeak, market.RegimeBearStrong} {
		for _, pe := range []float64{5, 25, 50, 75, 95} {
			a := TargetAllocationFor(regime, pe)
			assert.InDelta(t, 1.0, a.Equity+a.Bond+a.Cash, 1e-9, "%s pe=%v", regime, pe)
			assert.LessOrEqual(t, a.Equity, EquityMaxPct+1e-9)
		}
	}
}

func TestTargetAllocationValuationTilt(t *testing.T) {
	cheap := TargetAllocationFor(market.RegimeRanging, 10)
	neutral := TargetAllocationFor(market.RegimeRanging, 50)
	rich := TargetAllocationFor(market.RegimeRanging, 90)

	assert.Greater(t, cheap.Equity, neutral.Equity, "cheap market tilts to equity")
	assert.Less(t, rich.Equity, neutral.Equity, "rich market tilts away from equity")
}

func TestTargetAllocationHardCap(t *testing.T) {
	// bull_strong 0.60 + 0.10 cheap tilt = 0.70: at the cap, never past.
	a := TargetAllocationFor(market.RegimeBullStrong, 5)
	assert.LessOrEqual(t, a.Equity, EquityMaxPct+1e-9)
}

func TestComputeCurrentAllocation(t *testing.T) {
	holdings := []HoldingValue{
		{FundCode: "110020", Category: "index", Value: 4000},
		{FundCode: "217022", Category: "bond", Value: 2000},
	}
	cur := ComputeCurrentAllocation(holdings, 4000)
	assert.InDelta(t, 0.4, cur.Equity, 1e-9)
	assert.InDelta(t, 0.2, cur.Bond, 1e-9)
	assert.InDelta(t, 0.4, cur.Cash, 1e-9)
	assert.InDelta(t, 10000, cur.TotalValue, 1e-9)
}

func TestComputeCurrentAllocationEmpty(t *testing.T) {
	cur := ComputeCurrentAllocation(nil, 0)
	assert.InDelta(t, 1.0, cur.Cash, 1e-9)
}

func TestMaxEquityAmountHeadroom(t *testing.T) {
	current := ComputeCurrentAllocation([]HoldingValue{
		{FundCode: "x", Category: "equity", Value: 4000},
	}, 6000)
	// ranging target 0.45 + 0.05 = 0.50 -> 5000 max, 4000 held.
	headroom := MaxEquityAmount(10000, market.RegimeRanging, 50, current)
	assert.InDelta(t, 1000, headroom, 1e-9)
}

func TestMaxEquityAmountNeverNegative(t *testing.T) {
	current := ComputeCurrentAllocation([]HoldingValue{
		{FundCode: "x", Category: "equity", Value: 9000},
	}, 1000)
	assert.Zero(t, MaxEquityAmount(10000, market.RegimeBearStrong, 50, current))
}

func TestCheckCompliance(t *testing.T) {
	bad := ComputeCurrentAllocation([]HoldingValue{
		{FundCode: "x", Category: "equity", Value: 8000},
	}, 2000)
	report := CheckCompliance(market.RegimeRanging, 50, bad)
	assert.False(t, report.Compliant)
	assert.Len(t, report.Violations, 2) // equity over cap, bond under floor

	good := ComputeCurrentAllocation([]HoldingValue{
		{FundCode: "x", Category: "equity", Value: 5000},
		{FundCode: "y", Category: "bond", Value: 2000},
	}, 3000)
	assert.True(t, CheckCompliance(market.RegimeRanging, 50, good).Compliant)
}
