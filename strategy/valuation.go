package strategy

import (
	"fmt"

	"fundpilot/market"
)

func init() {
	mustRegister("valuation", 0.25, func() Strategy { return &Valuation{} })
}

// Valuation trades the broad-market PE percentile, the single most
// effective timing input on A-share horizons measured in months. Reads
// MarketContext.Valuation; only fires for equity/index funds.
type Valuation struct{}

func (v *Valuation) Name() string { return "valuation" }

func (v *Valuation) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	if mkt == nil || mkt.Valuation == nil {
		return nil
	}
	pePct := mkt.Valuation.PEPercentile
	narrative := mkt.Valuation.Narrative

	var signals []Signal
	for _, code := range sortedCodes(funds) {
		f := funds[code]
		if f.Category != "equity" && f.Category != "index" {
			continue
		}

		var sig *Signal
		switch {
		case pePct < 20:
			sig = &Signal{
				Type:       StrongBuy,
				Confidence: 0.85,
				Reason:     fmt.Sprintf("extreme undervaluation (PE percentile %.0f%%), historical bottom zone. %s", pePct, narrative),
				Priority:   90,
			}
		case pePct < 30:
			sig = &Signal{
				Type:       Buy,
				Confidence: 0.70,
				Reason:     fmt.Sprintf("undervalued (PE percentile %.0f%%). %s", pePct, narrative),
				Priority:   70,
			}
		case pePct > 85:
			sig = &Signal{
				Type:       StrongSell,
				Confidence: 0.80,
				Reason:     fmt.Sprintf("extreme overvaluation (PE percentile %.0f%%), scale out. %s", pePct, narrative),
				Priority:   85,
			}
		case pePct > 75:
			sig = &Signal{
				Type:       Sell,
				Confidence: 0.60,
				Reason:     fmt.Sprintf("overvalued (PE percentile %.0f%%). %s", pePct, narrative),
				Priority:   60,
			}
		default:
			// 30-75%: neutral zone, let other strategies drive.
			continue
		}

		sig.FundCode = code
		sig.StrategyName = v.Name()
		sig.Metadata = map[string]any{"pe_percentile": pePct, "category": f.Category}
		signals = append(signals, *sig)
	}
	return signals
}
