package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/market"
)

func fundWith(code, category string, navs []float64) *market.FundHistory {
	points := make([]market.NavPoint, len(navs))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, nav := range navs {
		points[i] = market.NavPoint{Date: base.AddDate(0, 0, i).Format("2006-01-02"), Nav: nav}
	}
	return &market.FundHistory{Code: code, Category: category, Navs: points}
}

func growthNavs(start, dailyPct float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + dailyPct
	}
	return out
}

func rangingCtx() *MarketContext {
	return &MarketContext{
		GlobalRegime:    market.RegimeRanging,
		CategoryRegimes: map[string]string{"equity": market.RegimeRanging},
	}
}

// ── trend_following ──────────────────────────────────────────────

func TestTrendFollowingNeedsSixtyPoints(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(1, 0.004, 59)),
	}
	out := (&TrendFollowing{}).Generate(rangingCtx(), funds)
	assert.Empty(t, out)
}

func TestTrendFollowingBuysCleanUptrend(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(1, 0.004, 120)),
	}
	out := (&TrendFollowing{}).Generate(rangingCtx(), funds)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsBuy())
	assert.Contains(t, out[0].Reason, "bullish MA stack")
	assert.LessOrEqual(t, out[0].Confidence, 0.95)
}

func TestTrendFollowingSellsDowntrend(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(2, -0.004, 120)),
	}
	out := (&TrendFollowing{}).Generate(rangingCtx(), funds)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsSell())
}

func TestTrendFollowingDeterministic(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(1, 0.004, 120)),
		"F2": fundWith("F2", "equity", growthNavs(1, 0.003, 120)),
	}
	s := &TrendFollowing{}
	assert.Equal(t, s.Generate(rangingCtx(), funds), s.Generate(rangingCtx(), funds))
}

// ── mean_reversion ───────────────────────────────────────────────

func TestMeanReversionDisabledInStrongTrends(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(2, -0.01, 60)),
	}
	ctx := &MarketContext{
		GlobalRegime:    market.RegimeBullStrong,
		CategoryRegimes: map[string]string{"equity": market.RegimeBullStrong},
	}
	assert.Empty(t, (&MeanReversion{}).Generate(ctx, funds))

	ctx.CategoryRegimes["equity"] = market.RegimeBearStrong
	assert.Empty(t, (&MeanReversion{}).Generate(ctx, funds))
}

func TestMeanReversionBuysCrash(t *testing.T) {
	// Flat base then a sharp slide: deep RSI oversold + below lower band.
	navs := append(growthNavs(1, 0.0002, 40), growthNavs(1, -0.012, 20)...)
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", navs),
	}
	out := (&MeanReversion{}).Generate(rangingCtx(), funds)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsBuy())
}

// ── momentum ─────────────────────────────────────────────────────

func TestMomentumRanksUniverse(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"WIN":  fundWith("WIN", "equity", growthNavs(1, 0.004, 90)),
		"MID":  fundWith("MID", "equity", growthNavs(1, 0.0005, 90)),
		"LOSE": fundWith("LOSE", "equity", growthNavs(1, -0.006, 90)),
	}
	out := NewMomentum().Generate(rangingCtx(), funds)
	require.NotEmpty(t, out)

	var buys, sells []string
	for _, sig := range out {
		if sig.IsBuy() {
			buys = append(buys, sig.FundCode)
		} else if sig.IsSell() {
			sells = append(sells, sig.FundCode)
		}
	}
	assert.Contains(t, buys, "WIN")
	assert.Contains(t, sells, "LOSE")
	assert.NotContains(t, buys, "LOSE")
}

func TestMomentumDisabledInBearStrong(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(1, 0.004, 90)),
		"F2": fundWith("F2", "equity", growthNavs(1, 0.003, 90)),
	}
	ctx := &MarketContext{
		GlobalRegime:    market.RegimeBearStrong,
		CategoryRegimes: map[string]string{"equity": market.RegimeBearStrong},
	}
	assert.Empty(t, NewMomentum().Generate(ctx, funds))
}

func TestMomentumNeedsTwoFunds(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"F1": fundWith("F1", "equity", growthNavs(1, 0.004, 90)),
	}
	assert.Empty(t, NewMomentum().Generate(rangingCtx(), funds))
}

// ── valuation ────────────────────────────────────────────────────

func TestValuationThresholds(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"EQ": fundWith("EQ", "equity", growthNavs(1, 0.001, 40)),
	}
	cases := []struct {
		pePct    float64
		expected SignalType
		conf     float64
	}{
		{10, StrongBuy, 0.85},
		{25, Buy, 0.70},
		{90, StrongSell, 0.80},
		{80, Sell, 0.60},
	}
	for _, c := range cases {
		ctx := rangingCtx()
		ctx.Valuation = &market.ValuationSignal{PEPercentile: c.pePct}
		out := (&Valuation{}).Generate(ctx, funds)
		require.Len(t, out, 1, "pe=%v", c.pePct)
		assert.Equal(t, c.expected, out[0].Type)
		assert.InDelta(t, c.conf, out[0].Confidence, 1e-9)
	}
}

func TestValuationNeutralZoneSilent(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"EQ": fundWith("EQ", "equity", growthNavs(1, 0.001, 40)),
	}
	ctx := rangingCtx()
	ctx.Valuation = &market.ValuationSignal{PEPercentile: 50}
	assert.Empty(t, (&Valuation{}).Generate(ctx, funds))
}

func TestValuationSkipsNonEquity(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"BD": fundWith("BD", "bond", growthNavs(1, 0.0002, 40)),
		"GD": fundWith("GD", "gold", growthNavs(1, 0.0002, 40)),
	}
	ctx := rangingCtx()
	ctx.Valuation = &market.ValuationSignal{PEPercentile: 10}
	assert.Empty(t, (&Valuation{}).Generate(ctx, funds))
}

func TestValuationNoDataNoSignal(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"EQ": fundWith("EQ", "equity", growthNavs(1, 0.001, 40)),
	}
	assert.Empty(t, (&Valuation{}).Generate(rangingCtx(), funds))
}

// ── macro_cycle ──────────────────────────────────────────────────

func TestMacroCycleMapping(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"EQ": fundWith("EQ", "index", growthNavs(1, 0.001, 40)),
	}
	cases := []struct {
		cycle    string
		expected SignalType
		conf     float64
	}{
		{"expansion", Buy, 0.65},
		{"recovery", Buy, 0.55},
		{"contraction", Sell, 0.60},
	}
	for _, c := range cases {
		ctx := rangingCtx()
		ctx.Macro = &market.MacroSnapshot{CreditCycle: c.cycle}
		out := (&MacroCycle{}).Generate(ctx, funds)
		require.Len(t, out, 1, c.cycle)
		assert.Equal(t, c.expected, out[0].Type)
		assert.InDelta(t, c.conf, out[0].Confidence, 1e-9)
	}
}

func TestMacroCyclePeakAndUnknownSilent(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"EQ": fundWith("EQ", "equity", growthNavs(1, 0.001, 40)),
	}
	for _, cycle := range []string{"peak", "unknown", ""} {
		ctx := rangingCtx()
		ctx.Macro = &market.MacroSnapshot{CreditCycle: cycle}
		assert.Empty(t, (&MacroCycle{}).Generate(ctx, funds), cycle)
	}
}

// ── manager_alpha ────────────────────────────────────────────────

func TestManagerAlphaGrades(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"A1": fundWith("A1", "equity", growthNavs(1, 0.001, 40)),
		"B1": fundWith("B1", "equity", growthNavs(1, 0.001, 40)),
		"C1": fundWith("C1", "equity", growthNavs(1, 0.001, 40)),
		"D1": fundWith("D1", "equity", growthNavs(1, 0.001, 40)),
	}
	ctx := rangingCtx()
	ctx.ManagerScores = map[string]market.ManagerScore{
		"A1": {FundCode: "A1", Grade: "A", Score: 85},
		"B1": {FundCode: "B1", Grade: "B", Score: 70},
		"C1": {FundCode: "C1", Grade: "C", Score: 50},
		"D1": {FundCode: "D1", Grade: "D", Score: 30},
	}
	out := (&ManagerAlpha{}).Generate(ctx, funds)
	require.Len(t, out, 3, "grade C emits nothing")

	byCode := map[string]Signal{}
	for _, sig := range out {
		byCode[sig.FundCode] = sig
	}
	assert.Equal(t, Buy, byCode["A1"].Type)
	assert.InDelta(t, 0.40, byCode["A1"].Confidence, 1e-9)
	assert.Equal(t, Buy, byCode["B1"].Type)
	assert.InDelta(t, 0.25, byCode["B1"].Confidence, 1e-9)
	assert.Equal(t, Sell, byCode["D1"].Type)
	assert.InDelta(t, 0.30, byCode["D1"].Confidence, 1e-9)
}

func TestManagerAlphaNoScoresSilent(t *testing.T) {
	funds := map[string]*market.FundHistory{
		"A1": fundWith("A1", "equity", growthNavs(1, 0.001, 40)),
	}
	assert.Empty(t, (&ManagerAlpha{}).Generate(rangingCtx(), funds))
}
