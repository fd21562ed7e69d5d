package strategy

import (
	"fmt"
	"strings"

	"fundpilot/market"
)

func init() {
	mustRegister("manager_alpha", 0.10, func() Strategy { return &ManagerAlpha{} })
}

// ManagerAlpha converts manager grades into weak directional signals:
// A/B-grade managers lend support, D-grade managers add a warning.
// Reads MarketContext.ManagerScores; funds without data get nothing.
type ManagerAlpha struct{}

func (m *ManagerAlpha) Name() string { return "manager_alpha" }

func (m *ManagerAlpha) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	if mkt == nil || len(mkt.ManagerScores) == 0 {
		return nil
	}

	var signals []Signal
	for _, code := range sortedCodes(funds) {
		eval, ok := mkt.ManagerScores[code]
		if !ok {
			continue
		}
		reasonText := fmt.Sprintf("manager score %.0f", eval.Score)
		if len(eval.Reasons) > 0 {
			max := len(eval.Reasons)
			if max > 3 {
				max = 3
			}
			reasonText = strings.Join(eval.Reasons[:max], "; ")
		}

		var sig *Signal
		switch eval.Grade {
		case "A":
			sig = &Signal{Type: Buy, Confidence: 0.40, Priority: 30,
				Reason: fmt.Sprintf("manager grade A (%.0f): %s", eval.Score, reasonText)}
		case "B":
			sig = &Signal{Type: Buy, Confidence: 0.25, Priority: 20,
				Reason: fmt.Sprintf("manager grade B (%.0f): %s", eval.Score, reasonText)}
		case "D":
			sig = &Signal{Type: Sell, Confidence: 0.30, Priority: 25,
				Reason: fmt.Sprintf("manager grade D (%.0f), skill in doubt: %s", eval.Score, reasonText)}
		default:
			continue
		}
		sig.FundCode = code
		sig.StrategyName = m.Name()
		sig.Metadata = map[string]any{"manager_score": eval.Score, "grade": eval.Grade}
		signals = append(signals, *sig)
	}
	return signals
}
