package learn

import (
	"math"

	"fundpilot/logger"
	"fundpilot/store"
	"fundpilot/strategy"
)

// aggregation window in days.
const performanceWindowDays = 90

// Aggregate rolls the last 90 days of validated signals up into
// per-(strategy, regime) performance rows, including the confidence
// calibration score and the recommended weight.
func (l *Loop) Aggregate() int {
	now := l.now()
	cutoff := now.AddDate(0, 0, -performanceWindowDays).Format("2006-01-02")
	today := now.Format("2006-01-02")

	stats, err := l.store.AggregateValidations(cutoff)
	if err != nil {
		logger.Warnf("aggregate validations: %v", err)
		return 0
	}
	for _, s := range stats {
		winRate := 0.0
		if s.Total > 0 {
			winRate = float64(s.Correct) / float64(s.Total)
		}
		// Positive calibration = high-confidence signals really do win more.
		confidenceAccuracy := s.HighConfWinRate - s.LowConfWinRate

		recommended := math.Max(0.1, math.Min(1.0, winRate*1.5))
		if s.AvgReturn < -2 {
			recommended *= 0.5
		}

		err := l.store.UpsertStrategyPerformance(store.StrategyPerformance{
			PeriodStart:        cutoff,
			PeriodEnd:          today,
			StrategyName:       s.StrategyName,
			Regime:             s.Regime,
			TotalSignals:       s.Total,
			CorrectSignals:     s.Correct,
			WinRate:            round4(winRate),
			AvgReturn:          round4(s.AvgReturn),
			AvgConfidence:      round4(s.AvgConfidence),
			ConfidenceAccuracy: round4(confidenceAccuracy),
			RecommendedWeight:  round4(recommended),
		})
		if err != nil {
			logger.Warnf("upsert performance %s/%s: %v", s.StrategyName, s.Regime, err)
		}
	}
	if len(stats) > 0 {
		logger.Infof("updated %d strategy performance rows", len(stats))
	}
	return len(stats)
}

// Cycle runs validation then aggregation, the full learning pass.
func (l *Loop) Cycle() {
	l.ValidatePending()
	l.Aggregate()
}

// LearnedWeights returns the normalized learned strategy weights for a
// regime, or nil when fewer than two strategies have >= 5 validated
// signals there. Strategies without data get a small default share
// before the final renormalization.
func (l *Loop) LearnedWeights(regime string) map[string]float64 {
	rows, err := l.store.PerformanceForRegime(regime, 5)
	if err != nil || len(rows) == 0 {
		return nil
	}

	known := map[string]bool{}
	for _, name := range strategy.Names() {
		known[name] = true
	}

	weights := map[string]float64{}
	for _, r := range rows {
		if !known[r.StrategyName] {
			continue
		}
		if _, exists := weights[r.StrategyName]; exists {
			continue // rows are newest-first; keep the freshest
		}
		weights[r.StrategyName] = r.RecommendedWeight
	}
	if len(weights) < 2 {
		return nil
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil
	}
	for name, w := range weights {
		weights[name] = w / total
	}

	// Backfill unranked strategies with a modest default share.
	for name := range known {
		if _, ok := weights[name]; ok {
			continue
		}
		if name == "macro_cycle" || name == "manager_alpha" {
			weights[name] = 0.05
		} else {
			weights[name] = 0.20
		}
	}

	total = 0
	for _, w := range weights {
		total += w
	}
	for name, w := range weights {
		weights[name] = round3(w / total)
	}
	return weights
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
