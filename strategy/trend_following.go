package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fundpilot/market"
)

func init() {
	mustRegister("trend_following", 0.30, func() Strategy { return &TrendFollowing{} })
}

// TrendFollowing is the primary strategy: buy when the NAV stands above
// a bullish MA stack, sell when the stack turns bearish, with MACD and
// RSI as confirmation and a weekly-aggregated trend check on top.
type TrendFollowing struct{}

func (t *TrendFollowing) Name() string { return "trend_following" }

func (t *TrendFollowing) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	var signals []Signal
	for _, code := range sortedCodes(funds) {
		f := funds[code]
		if len(f.Navs) < 60 {
			continue
		}
		series := f.Series()
		tech := market.TechnicalSummary(series)
		if tech == nil {
			continue
		}
		regime := mkt.RegimeFor(f.Category)
		sigType, confidence, reasons := t.evaluate(tech, regime)

		weekly := weeklyConfirmation(series)
		switch {
		case sigType == Buy || sigType == StrongBuy:
			if weekly > 0 {
				confidence = math.Min(confidence*1.2, 0.95)
				reasons = append(reasons, "weekly trend confirms")
			} else if weekly < 0 {
				confidence *= 0.6
				reasons = append(reasons, "weekly trend diverges")
			}
		case sigType == Sell || sigType == StrongSell:
			if weekly < 0 {
				confidence = math.Min(confidence*1.2, 0.95)
				reasons = append(reasons, "weekly trend confirms")
			} else if weekly > 0 {
				confidence *= 0.6
				reasons = append(reasons, "weekly trend diverges")
			}
		}

		if sigType == Hold {
			continue
		}
		signals = append(signals, Signal{
			FundCode:     code,
			Type:         sigType,
			Confidence:   round2(confidence),
			Reason:       strings.Join(reasons, "; "),
			StrategyName: t.Name(),
			Metadata:     map[string]any{"weekly_factor": weekly},
		})
	}
	return signals
}

func (t *TrendFollowing) evaluate(tech *market.Summary, regime string) (SignalType, float64, []string) {
	buyScore, sellScore := 0, 0
	var reasons []string

	switch tech.MAAlignment {
	case market.MASignalBullish:
		buyScore += 3
		reasons = append(reasons, "bullish MA stack")
	case market.MASignalBearish:
		sellScore += 3
		reasons = append(reasons, "bearish MA stack")
	}

	switch tech.MACDState {
	case market.MACDGoldenCross:
		buyScore += 2
		reasons = append(reasons, "MACD golden cross")
	case market.MACDDeadCross:
		sellScore += 2
		reasons = append(reasons, "MACD dead cross")
	case market.MACDBullish:
		buyScore++
	case market.MACDBearish:
		sellScore++
	}

	if tech.RSI < 30 {
		buyScore++
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.0f)", tech.RSI))
	} else if tech.RSI > 70 {
		sellScore++
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.0f)", tech.RSI))
	}

	if ma20, ok := tech.MA["MA20"]; ok {
		if tech.CurrentPrice > ma20 {
			buyScore++
		} else {
			sellScore++
		}
	}
	if ma60, ok := tech.MA["MA60"]; ok {
		if tech.CurrentPrice > ma60 {
			buyScore++
		} else {
			sellScore++
		}
	}

	switch regime {
	case market.RegimeBearStrong, market.RegimeBearWeak:
		sellScore++
		if buyScore > 0 {
			buyScore--
		}
	case market.RegimeBullStrong, market.RegimeBullWeak:
		buyScore++
		if sellScore > 0 {
			sellScore--
		}
	}

	net := buyScore - sellScore
	maxPossible := buyScore + sellScore
	if maxPossible < 1 {
		maxPossible = 1
	}
	confidence := math.Abs(float64(net)) / float64(maxPossible) * 0.8

	// Every signal needs the MA stack; a plain buy or sell also needs a
	// secondary confirm (MACD cross or RSI extreme), a strong one does not.
	hasMAConfirm := tech.MAAlignment == market.MASignalBullish || tech.MAAlignment == market.MASignalBearish
	hasSecondary := tech.MACDState == market.MACDGoldenCross ||
		tech.MACDState == market.MACDDeadCross ||
		tech.RSI < 30 || tech.RSI > 70

	switch {
	case net >= 6 && hasMAConfirm:
		return StrongBuy, math.Min(confidence, 0.9), reasons
	case net >= 4 && hasMAConfirm && hasSecondary:
		return Buy, math.Min(confidence, 0.7), reasons
	case net <= -6 && hasMAConfirm:
		return StrongSell, math.Min(confidence, 0.9), reasons
	case net <= -4 && hasMAConfirm && hasSecondary:
		return Sell, math.Min(confidence, 0.7), reasons
	}
	return Hold, 0, reasons
}

// weeklyConfirmation aggregates every 5th NAV into a weekly series and
// compares MA4 vs MA8 (~20d and ~40d). Returns +1 bullish, -1 bearish,
// 0 neutral.
func weeklyConfirmation(series []float64) int {
	if len(series) < 40 {
		return 0
	}
	var weekly []float64
	for i := 0; i < len(series); i += 5 {
		weekly = append(weekly, series[i])
	}
	if len(weekly) < 8 {
		return 0
	}
	ma4 := lastValid(market.MA(weekly, 4))
	ma8 := lastValid(market.MA(weekly, 8))
	if ma4 == 0 || ma8 == 0 {
		return 0
	}
	current := weekly[len(weekly)-1]
	if current > ma4 && ma4 > ma8 {
		return 1
	}
	if current < ma4 && ma4 < ma8 {
		return -1
	}
	return 0
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}

func sortedCodes(funds map[string]*market.FundHistory) []string {
	codes := make([]string, 0, len(funds))
	for code := range funds {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
