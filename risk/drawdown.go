package risk

import (
	"fmt"
	"math"
)

// DrawdownState summarizes the portfolio equity curve.
type DrawdownState struct {
	CurrentDrawdown float64 // negative fraction
	MaxDrawdown     float64 // negative fraction
	PeakValue       float64
	CurrentValue    float64
	AlertLevel      string // normal | warning | critical
}

// PortfolioDrawdown computes the current and historical max drawdown
// from the snapshot value series (oldest first).
func PortfolioDrawdown(values []float64, softLimit, hardLimit float64) DrawdownState {
	if len(values) == 0 {
		return DrawdownState{AlertLevel: "normal"}
	}
	current := values[len(values)-1]
	peak := values[0]
	runningMax := 0.0
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if v > runningMax {
			runningMax = v
		}
		if runningMax > 0 {
			dd := (v - runningMax) / runningMax
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	currentDD := 0.0
	if peak > 0 {
		currentDD = (current - peak) / peak
	}

	level := "normal"
	absDD := math.Abs(currentDD)
	switch {
	case hardLimit > 0 && absDD >= hardLimit:
		level = "critical"
	case softLimit > 0 && absDD >= softLimit:
		level = "warning"
	}

	return DrawdownState{
		CurrentDrawdown: currentDD,
		MaxDrawdown:     maxDD,
		PeakValue:       peak,
		CurrentValue:    current,
		AlertLevel:      level,
	}
}

// DrawdownResponse is one rung of the progressive drawdown ladder.
type DrawdownResponse struct {
	Level     string // normal | caution | warning | danger | critical
	Action    string
	ReducePct int // percentage of equity holdings to trim
	AllowBuys bool
	Narrative string
}

// ProgressiveDrawdown maps the current drawdown (negative fraction) to
// a graded response rather than an all-or-nothing stop.
func ProgressiveDrawdown(currentDrawdown float64) DrawdownResponse {
	dd := math.Abs(currentDrawdown)
	switch {
	case dd < 0.03:
		return DrawdownResponse{
			Level: "normal", Action: "operate normally", AllowBuys: true,
			Narrative: fmt.Sprintf("drawdown %.1f%%, portfolio healthy", dd*100),
		}
	case dd < 0.05:
		return DrawdownResponse{
			Level: "caution", Action: "no new buys",
			Narrative: fmt.Sprintf("drawdown %.1f%%, caution zone, pausing new buys", dd*100),
		}
	case dd < 0.08:
		return DrawdownResponse{
			Level: "warning", Action: "trim 20%", ReducePct: 20,
			Narrative: fmt.Sprintf("drawdown %.1f%%, first-stage trim of 20%%", dd*100),
		}
	case dd < 0.10:
		return DrawdownResponse{
			Level: "danger", Action: "trim 50%", ReducePct: 50,
			Narrative: fmt.Sprintf("drawdown %.1f%%, second-stage trim to half position", dd*100),
		}
	default:
		return DrawdownResponse{
			Level: "critical", Action: "liquidate", ReducePct: 100,
			Narrative: fmt.Sprintf("drawdown %.1f%%, hard stop hit, liquidating to protect capital", dd*100),
		}
	}
}
