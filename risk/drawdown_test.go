package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortfolioDrawdown(t *testing.T) {
	values := []float64{10000, 11000, 9900, 10500}
	state := PortfolioDrawdown(values, 0.05, 0.10)
	assert.InDelta(t, (10500.0-11000)/11000, state.CurrentDrawdown, 1e-9)
	assert.InDelta(t, (9900.0-11000)/11000, state.MaxDrawdown, 1e-9)
	assert.Equal(t, "normal", state.AlertLevel)
}

func TestPortfolioDrawdownAlertLevels(t *testing.T) {
	warning := PortfolioDrawdown([]float64{10000, 9400}, 0.05, 0.10)
	assert.Equal(t, "warning", warning.AlertLevel)

	critical := PortfolioDrawdown([]float64{10000, 8900}, 0.05, 0.10)
	assert.Equal(t, "critical", critical.AlertLevel)
}

func TestProgressiveDrawdownLadder(t *testing.T) {
	cases := []struct {
		dd        float64
		level     string
		reducePct int
		allowBuys bool
	}{
		{-0.01, "normal", 0, true},
		{-0.04, "caution", 0, false},
		{-0.06, "warning", 20, false},
		{-0.09, "danger", 50, false},
		{-0.12, "critical", 100, false},
	}
	for _, c := range cases {
		resp := ProgressiveDrawdown(c.dd)
		assert.Equal(t, c.level, resp.Level, "dd=%v", c.dd)
		assert.Equal(t, c.reducePct, resp.ReducePct, "dd=%v", c.dd)
		assert.Equal(t, c.allowBuys, resp.AllowBuys, "dd=%v", c.dd)
	}
}

func TestProgressiveDrawdownBoundaries(t *testing.T) {
	assert.Equal(t, "caution", ProgressiveDrawdown(-0.03).Level)
	assert.Equal(t, "warning", ProgressiveDrawdown(-0.05).Level)
	assert.Equal(t, "danger", ProgressiveDrawdown(-0.08).Level)
	assert.Equal(t, "critical", ProgressiveDrawdown(-0.10).Level)
}
