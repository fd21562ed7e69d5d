package decision

import (
	"fmt"
	"strings"

	"fundpilot/market"
	"fundpilot/store"
	"fundpilot/strategy"
)

const marketAnalystSystem = `You are the market analyst of a single-user Chinese open-end mutual-fund advisor.
Summarize the current environment from the quantitative inputs. Be concrete, cite the numbers you were given, and do not invent data.
Respond with a single JSON object:
{"regime_agreement": bool, "regime_override": "" , "key_risks": [..], "key_opportunities": [..], "sentiment": "bullish|bearish|cautious|neutral", "narrative": "2-4 sentences"}`

const decisionEngineSystem = `You are the chief decision engine of a single-user Chinese open-end mutual-fund advisor.
Work through three steps before answering:
1. Observation — what do the quantitative signals, account state and market context actually say.
2. Challenge — argue against your own first read; what would make it wrong.
3. Conclusion — the final advisory stance.
Hard rules: equity exposure may never exceed 70% of assets, cash never below 20%, bonds never below 10%. Suggested amounts are advisory, in RMB, and must respect remaining cash.
Respond with a single JSON object:
{"thinking_process": {"observation": "...", "challenge": "...", "final_conclusion": "..."},
 "recommendations": [{"fund_code": "...", "action": "buy|sell|hold|watch", "confidence": 0.0, "amount": 0, "reasoning": "...", "key_factors": [..], "risks": [..], "stop_loss_trigger": "..."}],
 "portfolio_advice": "..."}`

const reflectionSystem = `You review a past advisory decision of a Chinese mutual-fund advisor against its realized outcome.
Identify what the decision got right or wrong and distill transferable lessons — short, falsifiable statements about strategy or risk behavior, not platitudes.
Respond with a single JSON object:
{"was_correct": bool, "accuracy_analysis": "...", "missed_factors": [..], "overweighted_factors": [..], "lessons": [..], "strategy_suggestions": [..]}`

// buildAnalystPrompt renders the market-analyst user message.
func buildAnalystPrompt(regime string, regimeDetail *market.RegimeResult,
	indices []store.IndexSnapshot, mktCtx *strategy.MarketContext) string {

	var sb strings.Builder
	sb.WriteString("## Market state\n")
	sb.WriteString(fmt.Sprintf("- regime: %s — %s\n", regime, market.RegimeDescriptions[regime]))
	if regimeDetail != nil {
		sb.WriteString(fmt.Sprintf("- trend score: %.1f, volatility: %.2f%%\n",
			regimeDetail.TrendScore, regimeDetail.Volatility*100))
	}

	sb.WriteString("\n## Benchmark indices\n")
	if len(indices) == 0 {
		sb.WriteString("no data\n")
	}
	for _, idx := range indices {
		sb.WriteString(fmt.Sprintf("- %s: %.2f (%+.2f%%) on %s\n", idx.Name, idx.Close, idx.ChangePct, idx.TradeDate))
	}

	if mktCtx != nil {
		if mktCtx.Valuation != nil {
			sb.WriteString(fmt.Sprintf("\n## Valuation\n%s\n", mktCtx.Valuation.Narrative))
		}
		if mktCtx.Macro != nil {
			sb.WriteString(fmt.Sprintf("\n## Macro\n%s\n", mktCtx.Macro.Narrative))
		}
	}
	sb.WriteString("\nAssess the environment and answer in the required JSON shape.")
	return sb.String()
}

// signalLines formats composite signals for the decision prompt.
func signalLines(signals []strategy.Signal, names func(string) string) string {
	if len(signals) == 0 {
		return "no actionable quantitative signals today"
	}
	var sb strings.Builder
	for _, sig := range signals {
		category := ""
		if c, ok := sig.Metadata["category"].(string); ok {
			category = "[" + c + "] "
		}
		reason := sig.Reason
		if idx := strings.IndexByte(reason, '\n'); idx > 0 {
			reason = reason[:idx]
		}
		sb.WriteString(fmt.Sprintf("- %s%s (%s): %s | confidence %.0f%% | %s\n",
			category, names(sig.FundCode), sig.FundCode, sig.Type, sig.Confidence*100, reason))
	}
	return sb.String()
}

// holdingLines formats current holdings for the decision prompt.
func holdingLines(holdings []store.Holding, names func(string) string) string {
	if len(holdings) == 0 {
		return "currently all cash"
	}
	var sb strings.Builder
	for _, h := range holdings {
		sb.WriteString(fmt.Sprintf("- %s (%s): cost %.4f, latest %.4f, shares %.2f\n",
			names(h.FundCode), h.FundCode, h.CostPrice, h.CurrentNav, h.Shares))
	}
	return sb.String()
}
