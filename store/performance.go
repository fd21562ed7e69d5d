package store

// StrategyPerformance is one (period_end, strategy, regime) aggregate
// row, rewritten on every learning cycle.
type StrategyPerformance struct {
	PeriodStart        string
	PeriodEnd          string
	StrategyName       string
	Regime             string
	TotalSignals       int
	CorrectSignals     int
	WinRate            float64
	AvgReturn          float64
	AvgConfidence      float64
	ConfidenceAccuracy float64
	RecommendedWeight  float64
}

// UpsertStrategyPerformance rewrites the aggregate row for its key.
func (s *Store) UpsertStrategyPerformance(p StrategyPerformance) error {
	_, err := s.db.Exec(`
		INSERT INTO strategy_performance
			(period_start, period_end, strategy_name, regime, total_signals,
			 correct_signals, win_rate, avg_return, avg_confidence,
			 confidence_accuracy, recommended_weight, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(period_end, strategy_name, regime) DO UPDATE SET
			period_start = excluded.period_start,
			total_signals = excluded.total_signals,
			correct_signals = excluded.correct_signals,
			win_rate = excluded.win_rate,
			avg_return = excluded.avg_return,
			avg_confidence = excluded.avg_confidence,
			confidence_accuracy = excluded.confidence_accuracy,
			recommended_weight = excluded.recommended_weight,
			updated_at = CURRENT_TIMESTAMP
	`, p.PeriodStart, p.PeriodEnd, p.StrategyName, p.Regime, p.TotalSignals,
		p.CorrectSignals, p.WinRate, p.AvgReturn, p.AvgConfidence,
		p.ConfidenceAccuracy, p.RecommendedWeight)
	return err
}

// PerformanceForRegime returns the aggregates with at least minSignals
// validated signals at the given regime, newest first. A strategy has one
// row per period_end, so it can appear more than once.
func (s *Store) PerformanceForRegime(regime string, minSignals int) ([]StrategyPerformance, error) {
	rows, err := s.db.Query(`
		SELECT strategy_name, recommended_weight, total_signals, win_rate
		FROM strategy_performance
		WHERE regime = ? AND total_signals >= ?
		ORDER BY updated_at DESC
	`, regime, minSignals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyPerformance
	for rows.Next() {
		var p StrategyPerformance
		p.Regime = regime
		if err := rows.Scan(&p.StrategyName, &p.RecommendedWeight, &p.TotalSignals, &p.WinRate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllPerformance lists every aggregate row for reporting.
func (s *Store) AllPerformance() ([]StrategyPerformance, error) {
	rows, err := s.db.Query(`
		SELECT strategy_name, regime, total_signals, COALESCE(correct_signals, 0),
			COALESCE(win_rate, 0), COALESCE(avg_return, 0), COALESCE(avg_confidence, 0),
			COALESCE(confidence_accuracy, 0), COALESCE(recommended_weight, 0)
		FROM strategy_performance
		ORDER BY strategy_name, regime
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyPerformance
	for rows.Next() {
		var p StrategyPerformance
		if err := rows.Scan(&p.StrategyName, &p.Regime, &p.TotalSignals, &p.CorrectSignals,
			&p.WinRate, &p.AvgReturn, &p.AvgConfidence, &p.ConfidenceAccuracy,
			&p.RecommendedWeight); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
