package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/market"
	"fundpilot/store"
	"fundpilot/strategy"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func seedNav(t *testing.T, s *store.Store, code string, startDate time.Time, navs []float64) {
	t.Helper()
	points := make([]market.NavPoint, len(navs))
	for i, nav := range navs {
		points[i] = market.NavPoint{Date: startDate.AddDate(0, 0, i).Format("2006-01-02"), Nav: nav}
	}
	require.NoError(t, s.UpsertNav(code, points))
}

func TestDirectionCorrectHurdles(t *testing.T) {
	// 7d buys need > 1.65%.
	assert.False(t, directionCorrect("buy", 1.0, 7))
	assert.True(t, directionCorrect("buy", 2.0, 7))
	// 30d buys just need > 0.
	assert.True(t, directionCorrect("strong_buy", 0.5, 30))
	assert.False(t, directionCorrect("buy", 0.0, 30), "flat counts as incorrect")
	// Sells need a negative return at either horizon.
	assert.True(t, directionCorrect("sell", -0.1, 7))
	assert.True(t, directionCorrect("strong_sell", -3, 30))
	assert.False(t, directionCorrect("sell", 0.5, 30))
	assert.False(t, directionCorrect("hold", 5, 30))
}

func TestValidatePendingFillsHorizons(t *testing.T) {
	s := testStore(t)
	now := fixedNow()

	signalDate := now.AddDate(0, 0, -40)
	seedNav(t, s, "F1", signalDate, rampNavs(1.0, 0.002, 41))
	require.NoError(t, s.RecordSignal(signalDate.Format("2006-01-02"),
		"F1", "composite", "buy", 0.7, "ranging", 1.0))

	loop := NewLoopAt(s, fixedNow)
	validated := loop.ValidatePending()
	assert.Equal(t, 2, validated, "both the 7d and 30d horizon fill")

	rows, err := s.RecentCompositeValidations("F1", 365, 10, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsCorrect30d.Valid)
	assert.True(t, rows[0].IsCorrect30d.Bool, "steady uptrend validates the buy")
}

func TestValidatePendingRespectsHorizon(t *testing.T) {
	s := testStore(t)
	now := fixedNow()

	// Signal 3 days old: neither horizon has elapsed.
	signalDate := now.AddDate(0, 0, -3)
	seedNav(t, s, "F1", signalDate, rampNavs(1.0, 0.002, 4))
	require.NoError(t, s.RecordSignal(signalDate.Format("2006-01-02"),
		"F1", "composite", "buy", 0.7, "ranging", 1.0))

	loop := NewLoopAt(s, fixedNow)
	assert.Zero(t, loop.ValidatePending())
}

func TestValidateIdempotent(t *testing.T) {
	s := testStore(t)
	now := fixedNow()
	signalDate := now.AddDate(0, 0, -40)
	seedNav(t, s, "F1", signalDate, rampNavs(1.0, 0.002, 41))
	require.NoError(t, s.RecordSignal(signalDate.Format("2006-01-02"),
		"F1", "composite", "buy", 0.7, "ranging", 1.0))

	loop := NewLoopAt(s, fixedNow)
	assert.Equal(t, 2, loop.ValidatePending())
	assert.Zero(t, loop.ValidatePending(), "second pass finds nothing pending")
}

func TestCompositeWinStats(t *testing.T) {
	s := testStore(t)
	now := fixedNow()
	for i := 0; i < 12; i++ {
		date := now.AddDate(0, 0, -40-i).Format("2006-01-02")
		fund := "F1"
		if i%2 == 1 {
			fund = "F2"
		}
		require.NoError(t, s.RecordSignal(date, fund, "composite", "buy", 0.7, "ranging", 1.0))
	}
	pending, err := s.PendingValidations(30, now)
	require.NoError(t, err)
	require.Len(t, pending, 12)
	for i, row := range pending {
		// 8 winners at +4%, 4 losers at -2%.
		if i < 8 {
			require.NoError(t, s.FillValidation(row.ID, 30, 1.04, 4.0, true, now))
		} else {
			require.NoError(t, s.FillValidation(row.ID, 30, 0.98, -2.0, false, now))
		}
	}

	winRate, avgWin, avgLoss, ok := s.CompositeWinStats(10)
	require.True(t, ok)
	assert.InDelta(t, 8.0/12.0, winRate, 1e-6)
	assert.InDelta(t, 0.04, avgWin, 1e-6)
	assert.InDelta(t, 0.02, avgLoss, 1e-6)
}

func TestCompositeWinStatsNeedsSamples(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.RecordSignal("2026-06-01", "F1", "composite", "buy", 0.7, "ranging", 1.0))
	pending, err := s.PendingValidations(30, fixedNow())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, s.FillValidation(pending[0].ID, 30, 1.02, 2.0, true, fixedNow()))

	_, _, _, ok := s.CompositeWinStats(10)
	assert.False(t, ok, "a fresh account keeps Kelly sizing off")
}

func TestRecordSignalAtMostOnce(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.RecordSignal("2026-07-01", "F1", "composite", "buy", 0.7, "ranging", 1.0))
	}
	total, _, err := s.ValidationCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRecordCompositeExtractsSubStrategies(t *testing.T) {
	s := testStore(t)
	seedNav(t, s, "F1", fixedNow().AddDate(0, 0, -5), rampNavs(1.0, 0.001, 5))

	loop := NewLoopAt(s, fixedNow)
	signals := []strategy.Signal{{
		FundCode:     "F1",
		Type:         strategy.Buy,
		Confidence:   0.6,
		StrategyName: "composite",
		Reason:       "[trend_following] bullish MA stack\n[momentum] sharpe momentum 1.2\n[conflict] buy:a vs sell:b",
	}}
	recorded := loop.RecordComposite(signals, "ranging")
	assert.Equal(t, 1, recorded)

	total, _, err := s.ValidationCounts()
	require.NoError(t, err)
	// composite + trend_following + momentum; the [conflict] tag is skipped.
	assert.Equal(t, 3, total)
}

func rampNavs(start, step float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v += step
	}
	return out
}
