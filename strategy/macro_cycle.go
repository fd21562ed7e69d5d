package strategy

import (
	"fmt"

	"fundpilot/market"
)

func init() {
	mustRegister("macro_cycle", 0.10, func() Strategy { return &MacroCycle{} })
}

// MacroCycle maps the credit cycle (PMI direction × M2 direction) to a
// broad equity tilt. Monthly-frequency signal, direction only. Reads
// MarketContext.Macro; equity/index funds only.
type MacroCycle struct{}

func (m *MacroCycle) Name() string { return "macro_cycle" }

func (m *MacroCycle) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	if mkt == nil || mkt.Macro == nil || mkt.Macro.CreditCycle == "" || mkt.Macro.CreditCycle == "unknown" {
		return nil
	}
	cycle := mkt.Macro.CreditCycle
	narrative := mkt.Macro.Narrative

	var sigType SignalType
	var confidence float64
	var reason string
	switch cycle {
	case "expansion":
		sigType, confidence = Buy, 0.65
		reason = fmt.Sprintf("credit expansion favors risk assets. %s", narrative)
	case "recovery":
		sigType, confidence = Buy, 0.55
		reason = fmt.Sprintf("policy bottom, early positioning window. %s", narrative)
	case "contraction":
		sigType, confidence = Sell, 0.60
		reason = fmt.Sprintf("credit contraction, trim equity exposure. %s", narrative)
	default:
		// peak: hold current allocation, no signal.
		return nil
	}

	var signals []Signal
	for _, code := range sortedCodes(funds) {
		f := funds[code]
		if f.Category != "equity" && f.Category != "index" {
			continue
		}
		signals = append(signals, Signal{
			FundCode:     code,
			Type:         sigType,
			Confidence:   confidence,
			Reason:       reason,
			StrategyName: m.Name(),
			Priority:     50,
			Metadata:     map[string]any{"credit_cycle": cycle},
		})
	}
	return signals
}
