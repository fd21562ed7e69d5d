package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fundpilot/market"
)

func TestValuationSignalBands(t *testing.T) {
	cases := []struct {
		pePct float64
		mult  float64
		mod   int
	}{
		{10, 1.5, 2},
		{25, 1.3, 1},
		{50, 1.0, 0},
		{75, 0.6, -1},
		{90, 0.3, -2},
	}
	for _, c := range cases {
		sig := valuationSignalFromPE(c.pePct)
		assert.InDelta(t, c.mult, sig.PositionMultiplier, 1e-9, "pe=%v", c.pePct)
		assert.Equal(t, c.mod, sig.RegimeModifier, "pe=%v", c.pePct)
		assert.NotEmpty(t, sig.Narrative)
	}
}

func TestCreditCycleQuadrants(t *testing.T) {
	cases := []struct {
		pmi, m2  []float64
		expected string
	}{
		{[]float64{49, 51}, []float64{8, 9}, "expansion"},
		{[]float64{51, 49}, []float64{8, 9}, "recovery"},
		{[]float64{49, 51}, []float64{9, 8}, "peak"},
		{[]float64{51, 49}, []float64{9, 8}, "contraction"},
	}
	for _, c := range cases {
		snap := creditCycle(c.pmi, c.m2)
		assert.Equal(t, c.expected, snap.CreditCycle)
	}
}

func TestCreditCycleInsufficientData(t *testing.T) {
	assert.Equal(t, "unknown", creditCycle([]float64{50}, []float64{8, 9}).CreditCycle)
	assert.Equal(t, "unknown", creditCycle(nil, nil).CreditCycle)
}

func TestSentimentLevels(t *testing.T) {
	assert.Equal(t, "euphoric", sentimentFromPercentile(95).Level)
	assert.Equal(t, "optimistic", sentimentFromPercentile(75).Level)
	assert.Equal(t, "neutral", sentimentFromPercentile(50).Level)
	assert.Equal(t, "pessimistic", sentimentFromPercentile(20).Level)
	assert.Equal(t, "capitulation", sentimentFromPercentile(5).Level)
}

func TestEvaluateManagerGrades(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(code string, dailyPct float64, n int) *market.FundHistory {
		points := make([]market.NavPoint, n)
		v := 1.0
		for i := range points {
			points[i] = market.NavPoint{Date: base.AddDate(0, 0, i).Format("2006-01-02"), Nav: v}
			v *= 1 + dailyPct
		}
		return &market.FundHistory{Code: code, Category: "equity", Navs: points}
	}

	short := EvaluateManager(mk("S", 0.001, 60))
	assert.Equal(t, "C", short.Grade)
	assert.Contains(t, short.Reasons[0], "insufficient history")

	// Steady compounder over 5+ years: high Sharpe, tiny drawdown.
	strong := EvaluateManager(mk("A", 0.001, 1300))
	assert.Equal(t, "A", strong.Grade)
	assert.GreaterOrEqual(t, strong.Score, 80.0)

	// Noisy persistent loser over a short record: negative Sharpe,
	// deep drawdown, little history.
	points := make([]market.NavPoint, 300)
	v := 1.0
	for i := range points {
		points[i] = market.NavPoint{Date: base.AddDate(0, 0, i).Format("2006-01-02"), Nav: v}
		if i%2 == 0 {
			v *= 0.992
		} else {
			v *= 1.002
		}
	}
	weak := EvaluateManager(&market.FundHistory{Code: "D", Category: "equity", Navs: points})
	assert.Equal(t, "D", weak.Grade)
}

func TestEvaluateManagersLimit(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	funds := map[string]*market.FundHistory{}
	for _, code := range []string{"A", "B", "C"} {
		points := make([]market.NavPoint, 130)
		for i := range points {
			points[i] = market.NavPoint{Date: base.AddDate(0, 0, i).Format("2006-01-02"), Nav: 1}
		}
		funds[code] = &market.FundHistory{Code: code, Navs: points}
	}
	assert.Len(t, EvaluateManagers(funds, 2), 2)
	assert.Len(t, EvaluateManagers(funds, 0), 3, "0 means unlimited")
}
