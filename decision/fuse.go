package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fundpilot/strategy"
)

// strategyRun is one strategy's output with its resolved weight.
type strategyRun struct {
	name    string
	weight  float64
	signals []strategy.Signal
}

// fuse merges per-strategy signals into composite signals: weighted
// buy/sell scores per fund, conflict dampening when strategies disagree,
// thresholding, and a stable (-priority, fund_code) output order.
// Deterministic: runs are consumed in slice order, funds in sorted order.
func fuse(runs []strategyRun, categoryOf func(string) string,
	categoryRegimes map[string]string, globalRegime string) []strategy.Signal {

	type weightedSignal struct {
		sig    strategy.Signal
		weight float64
	}
	buckets := map[string][]weightedSignal{}
	for _, run := range runs {
		for _, sig := range run.signals {
			buckets[sig.FundCode] = append(buckets[sig.FundCode], weightedSignal{sig, run.weight})
		}
	}

	fundCodes := make([]string, 0, len(buckets))
	for code := range buckets {
		fundCodes = append(fundCodes, code)
	}
	sort.Strings(fundCodes)

	var composite []strategy.Signal
	for _, code := range fundCodes {
		bucket := buckets[code]
		var buyScore, sellScore float64
		var buyStrategies, sellStrategies, reasons []string

		for _, ws := range bucket {
			switch {
			case ws.sig.IsBuy():
				buyScore += ws.sig.Confidence * ws.weight
				buyStrategies = append(buyStrategies, ws.sig.StrategyName)
				reasons = append(reasons, fmt.Sprintf("[%s] %s", ws.sig.StrategyName, ws.sig.Reason))
			case ws.sig.IsSell():
				sellScore += ws.sig.Confidence * ws.weight
				sellStrategies = append(sellStrategies, ws.sig.StrategyName)
				reasons = append(reasons, fmt.Sprintf("[%s] %s", ws.sig.StrategyName, ws.sig.Reason))
			}
		}

		net := buyScore - sellScore
		total := buyScore + sellScore
		if total < minBucketScore {
			continue
		}

		confidence := math.Abs(net) / math.Max(total, 0.01)

		hasConflict := len(buyStrategies) > 0 && len(sellStrategies) > 0
		if hasConflict {
			conflictRatio := math.Min(buyScore, sellScore) / math.Max(total, 0.01)
			confidence *= 1 - conflictRatio*0.5
			reasons = append(reasons, fmt.Sprintf("[conflict] buy:%s vs sell:%s",
				strings.Join(buyStrategies, ","), strings.Join(sellStrategies, ",")))
		}

		var sigType strategy.SignalType
		switch {
		case net > 0.5:
			sigType = strategy.StrongBuy
		case net > 0.2:
			sigType = strategy.Buy
		case net < -0.5:
			sigType = strategy.StrongSell
		case net < -0.2:
			sigType = strategy.Sell
		default:
			continue // HOLD is discarded
		}

		category := categoryOf(code)
		regime := categoryRegimes[category]
		if regime == "" {
			regime = globalRegime
		}

		composite = append(composite, strategy.Signal{
			FundCode:     code,
			Type:         sigType,
			Confidence:   math.Round(math.Min(confidence, confidenceCap)*100) / 100,
			Reason:       strings.Join(reasons, "\n"),
			StrategyName: "composite",
			Priority:     int(math.Abs(net) * 100),
			Metadata: map[string]any{
				"buy_score":    math.Round(buyScore*1000) / 1000,
				"sell_score":   math.Round(sellScore*1000) / 1000,
				"regime":       regime,
				"has_conflict": hasConflict,
				"category":     category,
			},
		})
	}

	sort.SliceStable(composite, func(i, j int) bool {
		if composite[i].Priority != composite[j].Priority {
			return composite[i].Priority > composite[j].Priority
		}
		return composite[i].FundCode < composite[j].FundCode
	})
	return composite
}
