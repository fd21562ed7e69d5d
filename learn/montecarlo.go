package learn

import (
	"math"
	"math/rand"
	"sort"
)

// MonteCarloResult quantifies how much of the realized result was luck:
// reshuffle the historical trade sequence many times and look at the
// spread of outcomes.
type MonteCarloResult struct {
	NSimulations        int
	NTrades             int
	MedianReturn        float64
	MeanReturn          float64
	Percentile5         float64
	Percentile95        float64
	WorstReturn         float64
	BestReturn          float64
	MedianMaxDrawdown   float64
	WorstMaxDrawdown    float64
	ProbabilityOfProfit float64 // percent
	RobustnessScore     float64 // 0-100
}

type equityRun struct {
	totalReturn float64
	maxDrawdown float64
}

// simulateEquity replays one trade ordering, committing 80% of capital
// per trade.
func simulateEquity(tradePnls []float64, initialCapital float64) equityRun {
	capital := initialCapital
	peak := capital
	maxDD := 0.0
	for _, pnl := range tradePnls {
		position := capital * 0.8
		capital += position * (pnl / 100)
		if capital > peak {
			peak = capital
		}
		if peak > 0 {
			dd := (capital - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
		if capital <= 0 {
			break
		}
	}
	return equityRun{
		totalReturn: (capital - initialCapital) / initialCapital * 100,
		maxDrawdown: maxDD * 100,
	}
}

// MonteCarlo shuffles the trade order nSimulations times. Needs at
// least 3 trades; rng gives tests a fixed seed.
func MonteCarlo(tradePnls []float64, nSimulations int, initialCapital float64, rng *rand.Rand) MonteCarloResult {
	if len(tradePnls) < 3 {
		return MonteCarloResult{NTrades: len(tradePnls)}
	}
	if nSimulations <= 0 {
		nSimulations = 1000
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	returns := make([]float64, 0, nSimulations)
	drawdowns := make([]float64, 0, nSimulations)
	shuffled := make([]float64, len(tradePnls))
	copy(shuffled, tradePnls)

	for i := 0; i < nSimulations; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		run := simulateEquity(shuffled, initialCapital)
		returns = append(returns, run.totalReturn)
		drawdowns = append(drawdowns, run.maxDrawdown)
	}

	sort.Float64s(returns)
	sort.Float64s(drawdowns)

	profitable := 0
	for _, r := range returns {
		if r > 0 {
			profitable++
		}
	}
	probProfit := float64(profitable) / float64(len(returns)) * 100

	result := MonteCarloResult{
		NSimulations:        nSimulations,
		NTrades:             len(tradePnls),
		MedianReturn:        percentile(returns, 50),
		MeanReturn:          meanOf(returns),
		Percentile5:         percentile(returns, 5),
		Percentile95:        percentile(returns, 95),
		WorstReturn:         returns[0],
		BestReturn:          returns[len(returns)-1],
		MedianMaxDrawdown:   percentile(drawdowns, 50),
		WorstMaxDrawdown:    drawdowns[0],
		ProbabilityOfProfit: probProfit,
	}

	// Robust when even the 5th percentile stays profitable.
	robustness := probProfit
	if result.Percentile5 > 0 {
		robustness = math.Min(100, robustness+10)
	} else if result.Percentile5 < -20 {
		robustness = math.Max(0, robustness-20)
	}
	result.RobustnessScore = robustness
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Round(p / 100 * float64(len(sorted)-1)))
	return sorted[idx]
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
