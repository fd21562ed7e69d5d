package decision

import (
	"fmt"

	"fundpilot/llm"
	"fundpilot/strategy"
)

// quantOnlyDecision assembles a deterministic advisory from the
// composite signals alone, used when every LLM path is exhausted. The
// report layer tags it "LLM unavailable — quantitative-only".
func quantOnlyDecision(signals []strategy.Signal) *llm.DecisionOutput {
	out := &llm.DecisionOutput{
		Thinking: llm.DecisionThinking{
			FinalConclusion: "LLM unavailable — quantitative-only advisory from composite signals",
		},
	}
	for _, sig := range signals {
		action := "hold"
		switch sig.Type {
		case strategy.StrongBuy, strategy.Buy:
			action = "buy"
		case strategy.StrongSell, strategy.Sell:
			action = "sell"
		}
		reason := sig.Reason
		if len(reason) > 300 {
			reason = reason[:300]
		}
		out.Recommendations = append(out.Recommendations, llm.FundRecommendation{
			FundCode:   sig.FundCode,
			Action:     action,
			Confidence: sig.Confidence,
			Reasoning:  fmt.Sprintf("quant composite %s: %s", sig.Type, reason),
		})
	}
	if len(out.Recommendations) == 0 {
		out.PortfolioAdvice = "no actionable signals; hold current allocation"
	}
	return out
}
