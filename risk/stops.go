package risk

import (
	"math"

	"fundpilot/market"
)

// StopLevel is the computed stop for one holding.
type StopLevel struct {
	StopPrice float64
	StopPct   float64 // negative
	ATR       float64
	Method    string // atr_dynamic | fixed_fallback
}

// DynamicStopLoss places the stop at cost − 2·ATR20, clamped to
// [-15%, -3%]. Funds with too little history fall back to the fixed
// stop-loss percentage.
func DynamicStopLoss(series []float64, costPrice, fallbackStopPct float64) StopLevel {
	if fallbackStopPct <= 0 {
		fallbackStopPct = 0.08
	}
	fixed := StopLevel{
		StopPrice: costPrice * (1 - fallbackStopPct),
		StopPct:   -fallbackStopPct * 100,
		Method:    "fixed_fallback",
	}
	if len(series) < 25 || costPrice <= 0 {
		return fixed
	}
	atr := market.ATR(series, 20)
	if atr <= 0 {
		return fixed
	}

	stopPrice := costPrice - 2*atr
	stopPct := (stopPrice - costPrice) / costPrice * 100
	if stopPct < -15 {
		stopPct = -15
		stopPrice = costPrice * 0.85
	}
	if stopPct > -3 {
		stopPct = -3
		stopPrice = costPrice * 0.97
	}
	return StopLevel{
		StopPrice: round4(stopPrice),
		StopPct:   round2(stopPct),
		ATR:       round4(atr),
		Method:    "atr_dynamic",
	}
}

// TrailingStop places the trailing stop at peak − 2.5·ATR20, clamped to
// [-20%, -5%] off the peak.
func TrailingStop(series []float64, peakNav float64) StopLevel {
	if len(series) < 25 || peakNav <= 0 {
		return StopLevel{StopPrice: peakNav * 0.90, StopPct: -10, Method: "fixed_fallback"}
	}
	atr := market.ATR(series, 20)
	if atr <= 0 {
		return StopLevel{StopPrice: peakNav * 0.90, StopPct: -10, Method: "fixed_fallback"}
	}

	stop := peakNav - 2.5*atr
	pct := (stop - peakNav) / peakNav * 100
	pct = math.Max(-20, math.Min(-5, pct))
	return StopLevel{
		StopPrice: round4(peakNav * (1 + pct/100)),
		StopPct:   round2(pct),
		ATR:       round4(atr),
		Method:    "atr_dynamic",
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
