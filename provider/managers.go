package provider

import (
	"fmt"
	"math"

	"fundpilot/market"
)

// EvaluateManager grades the manager behind one fund from its NAV
// record: data depth as tenure proxy, risk-adjusted return, drawdown
// control, and recent-vs-far consistency. Needs 120 NAV points.
func EvaluateManager(f *market.FundHistory) market.ManagerScore {
	result := market.ManagerScore{FundCode: f.Code, Score: 50, Grade: "C"}
	series := f.Series()
	if len(series) < 120 {
		result.Reasons = append(result.Reasons, "insufficient history (<120 days)")
		return result
	}

	returns := market.DailyReturns(series)
	score := 50.0

	years := float64(len(series)) / 250
	switch {
	case years >= 5:
		score += 15
		result.Reasons = append(result.Reasons, fmt.Sprintf("%.1f years of record, spans cycles", years))
	case years >= 3:
		score += 10
		result.Reasons = append(result.Reasons, fmt.Sprintf("%.1f years of record", years))
	case years >= 1:
		score += 5
	}

	sharpe := market.SharpeRatio(returns, 0.02)
	switch {
	case sharpe > 1.5:
		score += 20
		result.Reasons = append(result.Reasons, fmt.Sprintf("excellent risk-adjusted return (Sharpe %.2f)", sharpe))
	case sharpe > 1.0:
		score += 12
		result.Reasons = append(result.Reasons, fmt.Sprintf("strong risk-adjusted return (Sharpe %.2f)", sharpe))
	case sharpe > 0.5:
		score += 5
	case sharpe < 0:
		score -= 10
		result.Reasons = append(result.Reasons, fmt.Sprintf("negative risk-adjusted return (Sharpe %.2f)", sharpe))
	}

	dd, _, _ := market.MaxDrawdown(series)
	absDD := math.Abs(dd)
	switch {
	case absDD < 0.10:
		score += 10
		result.Reasons = append(result.Reasons, fmt.Sprintf("tight drawdown control (max %.0f%%)", absDD*100))
	case absDD < 0.20:
		score += 5
	case absDD > 0.35:
		score -= 10
		result.Reasons = append(result.Reasons, fmt.Sprintf("deep historical drawdown (%.0f%%)", absDD*100))
	}

	// Consistency: recent-half vs far-half annualized return.
	half := len(returns) / 2
	recentAnn := meanReturns(returns[half:]) * 250
	farAnn := meanReturns(returns[:half]) * 250
	if recentAnn > 0 && farAnn > 0 {
		score += 5
		result.Reasons = append(result.Reasons, "positive in both halves of the record")
	} else if recentAnn < 0 && farAnn > 0 {
		score -= 5
	}

	result.Score = math.Max(0, math.Min(100, score))
	switch {
	case result.Score >= 80:
		result.Grade = "A"
	case result.Score >= 65:
		result.Grade = "B"
	case result.Score >= 40:
		result.Grade = "C"
	default:
		result.Grade = "D"
	}
	return result
}

// EvaluateManagers grades up to limit funds and returns the score map.
func EvaluateManagers(funds map[string]*market.FundHistory, limit int) map[string]market.ManagerScore {
	out := make(map[string]market.ManagerScore)
	count := 0
	for code, f := range funds {
		if limit > 0 && count >= limit {
			break
		}
		out[code] = EvaluateManager(f)
		count++
	}
	return out
}

func meanReturns(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
