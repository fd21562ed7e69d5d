package store

import (
	"database/sql"
	"time"
)

// SignalValidation is one row of the signal→outcome log. Rows are
// created at signal emission and filled in at the 7d/30d horizons;
// they are never deleted.
type SignalValidation struct {
	ID           int64
	SignalDate   string
	FundCode     string
	StrategyName string
	SignalType   string
	Confidence   float64
	Regime       string
	NavAtSignal  float64
	NavAfter7d   sql.NullFloat64
	NavAfter30d  sql.NullFloat64
	Return7d     sql.NullFloat64
	Return30d    sql.NullFloat64
	IsCorrect7d  sql.NullBool
	IsCorrect30d sql.NullBool
	ValidatedAt  sql.NullString
}

// RecordSignal inserts a pending validation row. A duplicate
// (signal_date, fund_code, strategy_name) is ignored, keeping the
// at-most-once invariant.
func (s *Store) RecordSignal(signalDate, fundCode, strategyName, signalType string,
	confidence float64, regime string, navAtSignal float64) error {
	_, err := s.db.Exec(`
		INSERT INTO signal_validation
			(signal_date, fund_code, strategy_name, signal_type, confidence, regime, nav_at_signal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signal_date, fund_code, strategy_name) DO NOTHING
	`, signalDate, fundCode, strategyName, signalType, confidence, regime, navAtSignal)
	return err
}

// PendingValidations returns rows whose N-day horizon has elapsed but
// whose nav_after_<N>d is still null.
func (s *Store) PendingValidations(horizonDays int, now time.Time) ([]SignalValidation, error) {
	col := "nav_after_7d"
	if horizonDays >= 30 {
		col = "nav_after_30d"
	}
	cutoff := now.AddDate(0, 0, -horizonDays).Format("2006-01-02")
	rows, err := s.db.Query(`
		SELECT id, signal_date, fund_code, strategy_name, signal_type,
			COALESCE(confidence, 0), COALESCE(regime, ''), COALESCE(nav_at_signal, 0)
		FROM signal_validation
		WHERE `+col+` IS NULL AND signal_date <= ?
		ORDER BY signal_date ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalValidation
	for rows.Next() {
		var v SignalValidation
		if err := rows.Scan(&v.ID, &v.SignalDate, &v.FundCode, &v.StrategyName,
			&v.SignalType, &v.Confidence, &v.Regime, &v.NavAtSignal); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FillValidation writes the realized outcome for one horizon. Only
// null→value transitions happen; correctness never flips once set.
func (s *Store) FillValidation(id int64, horizonDays int, navAfter, returnPct float64, correct bool, now time.Time) error {
	correctInt := 0
	if correct {
		correctInt = 1
	}
	if horizonDays >= 30 {
		_, err := s.db.Exec(`
			UPDATE signal_validation
			SET nav_after_30d = ?, return_30d = ?, is_correct_30d = ?, validated_at = ?
			WHERE id = ? AND nav_after_30d IS NULL
		`, navAfter, returnPct, correctInt, now.Format(time.RFC3339), id)
		return err
	}
	_, err := s.db.Exec(`
		UPDATE signal_validation
		SET nav_after_7d = ?, return_7d = ?, is_correct_7d = ?, validated_at = ?
		WHERE id = ? AND nav_after_7d IS NULL
	`, navAfter, returnPct, correctInt, now.Format(time.RFC3339), id)
	return err
}

// RecentCompositeValidations returns the last limit composite-signal
// rows for one fund within the lookback window, newest first. Feeds
// the signal guard.
func (s *Store) RecentCompositeValidations(fundCode string, lookbackDays, limit int, now time.Time) ([]SignalValidation, error) {
	cutoff := now.AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	rows, err := s.db.Query(`
		SELECT id, signal_date, fund_code, strategy_name, signal_type,
			COALESCE(confidence, 0), is_correct_30d
		FROM signal_validation
		WHERE fund_code = ? AND strategy_name = 'composite' AND signal_date >= ?
		ORDER BY signal_date DESC LIMIT ?
	`, fundCode, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalValidation
	for rows.Next() {
		var v SignalValidation
		if err := rows.Scan(&v.ID, &v.SignalDate, &v.FundCode, &v.StrategyName,
			&v.SignalType, &v.Confidence, &v.IsCorrect30d); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ValidationAggregate is the per-(strategy, regime) rollup of validated
// signals used by the learning cycle.
type ValidationAggregate struct {
	StrategyName    string
	Regime          string
	Total           int
	Correct         int
	AvgReturn       float64
	AvgConfidence   float64
	HighConfWinRate float64 // win rate of confidence >= 0.6 rows
	LowConfWinRate  float64 // win rate of confidence < 0.6 rows
}

// AggregateValidations groups validated rows since cutoff by
// (strategy_name, regime) with the confidence-split win rates.
func (s *Store) AggregateValidations(cutoff string) ([]ValidationAggregate, error) {
	rows, err := s.db.Query(`
		SELECT strategy_name, COALESCE(regime, ''),
			COUNT(*),
			COALESCE(SUM(is_correct_30d), 0),
			COALESCE(AVG(return_30d), 0),
			COALESCE(AVG(confidence), 0),
			COALESCE(AVG(CASE WHEN confidence >= 0.6 THEN CAST(is_correct_30d AS REAL) END), 0),
			COALESCE(AVG(CASE WHEN confidence < 0.6 THEN CAST(is_correct_30d AS REAL) END), 0)
		FROM signal_validation
		WHERE signal_date >= ? AND is_correct_30d IS NOT NULL
		GROUP BY strategy_name, regime
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValidationAggregate
	for rows.Next() {
		var a ValidationAggregate
		if err := rows.Scan(&a.StrategyName, &a.Regime, &a.Total, &a.Correct,
			&a.AvgReturn, &a.AvgConfidence, &a.HighConfWinRate, &a.LowConfWinRate); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CompositeWinStats summarizes the realized edge of validated composite
// signals: win rate plus average winning and losing 30d returns (both
// as positive fractions). ok is false until at least minSamples rows
// with a winner and a loser exist, so Kelly sizing stays off for a
// fresh account.
func (s *Store) CompositeWinStats(minSamples int) (winRate, avgWin, avgLoss float64, ok bool) {
	var total int
	var avgWinPct, avgLossPct float64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(AVG(CASE WHEN is_correct_30d = 1 THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(AVG(CASE WHEN return_30d > 0 THEN return_30d END), 0),
			COALESCE(AVG(CASE WHEN return_30d < 0 THEN -return_30d END), 0)
		FROM signal_validation
		WHERE strategy_name = 'composite' AND is_correct_30d IS NOT NULL
	`).Scan(&total, &winRate, &avgWinPct, &avgLossPct)
	if err != nil || total < minSamples || avgWinPct <= 0 || avgLossPct <= 0 {
		return 0, 0, 0, false
	}
	return winRate, avgWinPct / 100, avgLossPct / 100, true
}

// ValidationCounts returns (total, validated-at-30d) row counts.
func (s *Store) ValidationCounts() (total, validated int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM signal_validation`).Scan(&total); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM signal_validation WHERE is_correct_30d IS NOT NULL`).Scan(&validated)
	return
}
