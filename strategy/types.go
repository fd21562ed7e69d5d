package strategy

import "fundpilot/market"

// SignalType is the five-level advisory direction.
type SignalType string

const (
	StrongBuy  SignalType = "strong_buy"
	Buy        SignalType = "buy"
	Hold       SignalType = "hold"
	Sell       SignalType = "sell"
	StrongSell SignalType = "strong_sell"
)

// Signal is one stateless strategy recommendation for a fund.
type Signal struct {
	FundCode     string         `json:"fund_code"`
	Type         SignalType     `json:"signal_type"`
	Confidence   float64        `json:"confidence"` // 0-1
	Reason       string         `json:"reason"`
	StrategyName string         `json:"strategy_name"`
	TargetAmount float64        `json:"target_amount,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IsBuy reports whether the signal is in the buy family.
func (s Signal) IsBuy() bool {
	return s.Type == StrongBuy || s.Type == Buy
}

// IsSell reports whether the signal is in the sell family.
func (s Signal) IsSell() bool {
	return s.Type == StrongSell || s.Type == Sell
}

// MarketContext is the sealed market snapshot handed to strategies.
// Enrichment fields are optional; each strategy documents what it reads.
type MarketContext struct {
	GlobalRegime    string
	CategoryRegimes map[string]string
	Valuation       *market.ValuationSignal
	Macro           *market.MacroSnapshot
	ManagerScores   map[string]market.ManagerScore
}

// RegimeFor resolves a fund category to its regime, falling back to the
// global regime then ranging.
func (m *MarketContext) RegimeFor(category string) string {
	if m == nil {
		return market.RegimeRanging
	}
	if r, ok := m.CategoryRegimes[category]; ok && r != "" {
		return r
	}
	if m.GlobalRegime != "" {
		return m.GlobalRegime
	}
	return market.RegimeRanging
}

// Strategy is the plug-in contract: a stable name and a deterministic,
// side-effect-free signal generator.
type Strategy interface {
	Name() string
	Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal
}
