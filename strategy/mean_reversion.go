package strategy

import (
	"fmt"
	"math"
	"strings"

	"fundpilot/market"
)

func init() {
	mustRegister("mean_reversion", 0.30, func() Strategy { return &MeanReversion{} })
}

// MeanReversion fades over-extended moves: RSI extremes, Bollinger band
// touches/breaks and deviation from MA20. Disabled in strong-trend
// regimes where fading the move is the wrong trade.
type MeanReversion struct{}

func (m *MeanReversion) Name() string { return "mean_reversion" }

func (m *MeanReversion) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	var signals []Signal
	for _, code := range sortedCodes(funds) {
		f := funds[code]
		regime := mkt.RegimeFor(f.Category)
		if regime == market.RegimeBullStrong || regime == market.RegimeBearStrong {
			continue
		}
		if len(f.Navs) < 30 {
			continue
		}
		tech := market.TechnicalSummary(f.Series())
		if tech == nil {
			continue
		}
		sigType, confidence, reasons := m.evaluate(tech)
		if sigType == Hold {
			continue
		}
		signals = append(signals, Signal{
			FundCode:     code,
			Type:         sigType,
			Confidence:   confidence,
			Reason:       strings.Join(reasons, "; "),
			StrategyName: m.Name(),
		})
	}
	return signals
}

func (m *MeanReversion) evaluate(tech *market.Summary) (SignalType, float64, []string) {
	buyScore, sellScore := 0, 0
	var reasons []string

	switch {
	case tech.RSI < 25:
		buyScore += 3
		reasons = append(reasons, fmt.Sprintf("RSI deeply oversold (%.0f)", tech.RSI))
	case tech.RSI < 35:
		buyScore++
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.0f)", tech.RSI))
	case tech.RSI > 75:
		sellScore += 3
		reasons = append(reasons, fmt.Sprintf("RSI deeply overbought (%.0f)", tech.RSI))
	case tech.RSI > 65:
		sellScore++
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.0f)", tech.RSI))
	}

	switch {
	case tech.BBState == market.BBBreakLower:
		buyScore += 2
		reasons = append(reasons, "break below lower Bollinger band")
	case tech.BBState == market.BBInBand && tech.BBPosition < 0.2:
		buyScore++
		reasons = append(reasons, fmt.Sprintf("near lower band (position %.0f%%)", tech.BBPosition*100))
	case tech.BBState == market.BBBreakUpper:
		sellScore += 2
		reasons = append(reasons, "break above upper Bollinger band")
	case tech.BBState == market.BBInBand && tech.BBPosition > 0.8:
		sellScore++
		reasons = append(reasons, fmt.Sprintf("near upper band (position %.0f%%)", tech.BBPosition*100))
	}

	if ma20, ok := tech.MA["MA20"]; ok && ma20 > 0 {
		deviation := (tech.CurrentPrice - ma20) / ma20
		if deviation < -0.05 {
			buyScore += 2
			reasons = append(reasons, fmt.Sprintf("%.1f%% below MA20", deviation*100))
		} else if deviation > 0.05 {
			sellScore += 2
			reasons = append(reasons, fmt.Sprintf("%.1f%% above MA20", deviation*100))
		}
	}

	net := buyScore - sellScore
	maxPossible := buyScore + sellScore
	if maxPossible < 1 {
		maxPossible = 1
	}
	confidence := math.Abs(float64(net)) / float64(maxPossible) * 0.7

	switch {
	case net >= 4:
		return StrongBuy, math.Min(confidence, 0.8), reasons
	case net >= 2:
		return Buy, math.Min(confidence, 0.6), reasons
	case net <= -4:
		return StrongSell, math.Min(confidence, 0.8), reasons
	case net <= -2:
		return Sell, math.Min(confidence, 0.6), reasons
	}
	return Hold, 0, reasons
}
