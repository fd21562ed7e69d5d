package risk

import (
	"math"

	"fundpilot/market"
)

// Regime position multipliers: how much of the available cash fraction
// a full-confidence signal may deploy.
var regimeMultipliers = map[string]float64{
	market.RegimeBullStrong: 0.90,
	market.RegimeBullWeak:   0.70,
	market.RegimeRanging:    0.50,
	market.RegimeBearWeak:   0.35,
	market.RegimeBearStrong: 0.20,
}

// minTradeAmount is the trade-minimum gate in RMB.
const minTradeAmount = 100

// SizingInput carries everything PositionSize needs; correlation and
// valuation multipliers are pre-computed by the caller so the sizer
// stays pure.
type SizingInput struct {
	TotalCapital      float64
	CurrentCash       float64
	Confidence        float64
	Regime            string
	ExistingPositions int

	MinCashReservePct    float64 // default 0.10
	MaxSinglePositionPct float64 // default 0.30

	ValuationMultiplier float64 // 1.0 when valuation unavailable
	CorrelationPenalty  float64 // 1.0 when no holdings to compare
	MaxEquityAmount     float64 // allocation-ceiling headroom; <=0 means unlimited

	// Fractional-Kelly ceiling on the realized signal edge. Applied
	// only when all four fields are set; a fresh account with no
	// validated history sizes on the regime/confidence formula alone.
	KellyFraction float64
	WinRate       float64
	AvgWin        float64 // average winning return, fraction
	AvgLoss       float64 // average losing return, positive fraction
}

// PositionSize computes the advisory trade amount in RMB. Amounts under
// the 100 RMB trade minimum round to zero.
func PositionSize(in SizingInput) float64 {
	minCash := in.TotalCapital * in.MinCashReservePct
	available := math.Max(0, in.CurrentCash-minCash)
	if available <= 0 {
		return 0
	}

	basePct, ok := regimeMultipliers[in.Regime]
	if !ok {
		basePct = regimeMultipliers[market.RegimeRanging]
	}
	positionPct := basePct * in.Confidence

	maxSingle := in.TotalCapital * in.MaxSinglePositionPct

	switch {
	case in.ExistingPositions >= 3:
		positionPct *= 0.5
	case in.ExistingPositions >= 2:
		positionPct *= 0.7
	}

	if in.ValuationMultiplier > 0 {
		positionPct *= in.ValuationMultiplier
	}
	if in.MaxEquityAmount > 0 {
		maxSingle = math.Min(maxSingle, in.MaxEquityAmount)
	}
	if in.CorrelationPenalty > 0 {
		positionPct *= in.CorrelationPenalty
	}

	amount := math.Min(available*positionPct, maxSingle)

	// Historical-edge ceiling: once enough signals have validated,
	// fractional Kelly on the realized win/loss profile caps the
	// committed share of total capital.
	if in.KellyFraction > 0 && in.WinRate > 0 && in.AvgWin > 0 && in.AvgLoss > 0 {
		kellyCap := KellyPosition(in.WinRate, in.AvgWin, in.AvgLoss,
			in.KellyFraction, in.MaxSinglePositionPct)
		amount = math.Min(amount, in.TotalCapital*kellyCap)
	}

	if amount < minTradeAmount {
		return 0
	}
	return math.Round(amount*100) / 100
}

// KellyPosition computes the fractional-Kelly position share of total
// capital, clamped to [0, maxSinglePositionPct].
func KellyPosition(winRate, avgWin, avgLoss, fraction, maxSinglePositionPct float64) float64 {
	if avgLoss == 0 {
		return 0
	}
	b := avgWin / avgLoss
	p := winRate
	q := 1 - p
	kelly := (b*p - q) / b
	position := kelly * fraction
	return math.Max(0, math.Min(position, maxSinglePositionPct))
}
