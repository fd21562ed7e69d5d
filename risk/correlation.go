package risk

import (
	"math"
	"sort"

	"fundpilot/market"
)

// correlationLookbackDays is the return window used for diversification
// checks.
const correlationLookbackDays = 120

// ReturnCorrelation computes the Pearson correlation of two daily
// return series over their common trailing window. Returns 0 when the
// overlap is under 30 observations.
func ReturnCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 30 {
		return 0
	}
	ra := a[len(a)-n:]
	rb := b[len(b)-n:]

	meanA, meanB := mean(ra), mean(rb)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := ra[i] - meanA
		db := rb[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// CorrelationPenalty scales a new position by its average 120-day
// return correlation against current holdings: >0.8 cuts to 0.3,
// 0.5-0.8 scales linearly, below that no penalty.
func CorrelationPenalty(candidate []float64, holdings [][]float64) float64 {
	if len(holdings) == 0 {
		return 1.0
	}
	candReturns := tailReturns(candidate, correlationLookbackDays)
	if len(candReturns) == 0 {
		return 1.0
	}

	var correlations []float64
	for _, h := range holdings {
		hr := tailReturns(h, correlationLookbackDays)
		if len(hr) == 0 {
			continue
		}
		if c := ReturnCorrelation(candReturns, hr); c != 0 {
			correlations = append(correlations, c)
		}
	}
	if len(correlations) == 0 {
		return 1.0
	}

	avg := mean(correlations)
	switch {
	case avg > 0.8:
		return 0.3
	case avg > 0.5:
		return math.Round((1.0-avg*0.7)*100) / 100
	default:
		return 1.0
	}
}

// PortfolioCorrelation summarizes diversification across holdings:
// average pairwise correlation and a 0-100 diversification score.
func PortfolioCorrelation(holdings map[string][]float64) (avgCorr, diversificationScore float64, highPairs [][2]string) {
	codes := make([]string, 0, len(holdings))
	for code := range holdings {
		codes = append(codes, code)
	}
	if len(codes) < 2 {
		return 0, 100, nil
	}
	sort.Strings(codes)

	var correlations []float64
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			a := tailReturns(holdings[codes[i]], correlationLookbackDays)
			b := tailReturns(holdings[codes[j]], correlationLookbackDays)
			c := ReturnCorrelation(a, b)
			if c == 0 {
				continue
			}
			correlations = append(correlations, c)
			if c > 0.8 {
				highPairs = append(highPairs, [2]string{codes[i], codes[j]})
			}
		}
	}
	if len(correlations) == 0 {
		return 0, 50, nil
	}
	avgCorr = mean(correlations)
	diversificationScore = math.Max(0, math.Min(100, (1-avgCorr)*100))
	return avgCorr, diversificationScore, highPairs
}

func tailReturns(series []float64, lookback int) []float64 {
	if len(series) > lookback {
		series = series[len(series)-lookback:]
	}
	return market.DailyReturns(series)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
