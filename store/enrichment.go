package store

import (
	"encoding/json"

	"fundpilot/market"
)

// Cached-enrichment accessors. These back the middle tier of the
// three-tier fallback: live fetch writes through here, degraded reads
// pull the newest cached row with its date.

// SaveIndexValuation caches a valuation observation.
func (s *Store) SaveIndexValuation(indexCode, tradeDate string, pe, pb, pePercentile, pbPercentile float64) error {
	_, err := s.db.Exec(`
		INSERT INTO index_valuation (index_code, trade_date, pe, pb, pe_percentile, pb_percentile)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_code, trade_date) DO UPDATE SET
			pe = excluded.pe, pb = excluded.pb,
			pe_percentile = excluded.pe_percentile, pb_percentile = excluded.pb_percentile
	`, indexCode, tradeDate, pe, pb, pePercentile, pbPercentile)
	return err
}

// CachedValuation returns the newest cached CSI 300 valuation and its date.
func (s *Store) CachedValuation() (pePercentile float64, tradeDate string, ok bool) {
	err := s.db.QueryRow(`
		SELECT COALESCE(pe_percentile, 50), trade_date FROM index_valuation
		WHERE index_code = '000300' ORDER BY trade_date DESC LIMIT 1
	`).Scan(&pePercentile, &tradeDate)
	return pePercentile, tradeDate, err == nil
}

// SaveMacroIndicator caches one macro series observation (e.g. PMI, M2).
func (s *Store) SaveMacroIndicator(indicator, period string, value float64) error {
	_, err := s.db.Exec(`
		INSERT INTO macro_indicators (indicator, period, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(indicator, period) DO UPDATE SET
			value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, indicator, period, value)
	return err
}

// MacroSeries returns the last n values of one macro indicator, oldest first.
func (s *Store) MacroSeries(indicator string, n int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT value FROM (
			SELECT period, value FROM macro_indicators
			WHERE indicator = ? ORDER BY period DESC LIMIT ?
		) ORDER BY period ASC
	`, indicator, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveSentiment caches a sentiment indicator observation.
func (s *Store) SaveSentiment(indicator, tradeDate string, value, percentile float64) error {
	_, err := s.db.Exec(`
		INSERT INTO sentiment_indicators (indicator, trade_date, value, percentile)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(indicator, trade_date) DO UPDATE SET
			value = excluded.value, percentile = excluded.percentile
	`, indicator, tradeDate, value, percentile)
	return err
}

// CachedSentiment returns the newest cached sentiment percentile.
func (s *Store) CachedSentiment(indicator string) (percentile float64, tradeDate string, ok bool) {
	err := s.db.QueryRow(`
		SELECT COALESCE(percentile, 50), trade_date FROM sentiment_indicators
		WHERE indicator = ? ORDER BY trade_date DESC LIMIT 1
	`, indicator).Scan(&percentile, &tradeDate)
	return percentile, tradeDate, err == nil
}

// SaveManagerScore caches one manager evaluation.
func (s *Store) SaveManagerScore(ms market.ManagerScore) error {
	reasons, _ := json.Marshal(ms.Reasons)
	_, err := s.db.Exec(`
		INSERT INTO fund_managers (fund_code, manager_name, score, grade, reasons_json, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fund_code) DO UPDATE SET
			manager_name = excluded.manager_name, score = excluded.score,
			grade = excluded.grade, reasons_json = excluded.reasons_json,
			updated_at = CURRENT_TIMESTAMP
	`, ms.FundCode, ms.ManagerName, ms.Score, ms.Grade, string(reasons))
	return err
}

// CachedManagerScores returns all cached manager evaluations.
func (s *Store) CachedManagerScores() (map[string]market.ManagerScore, error) {
	rows, err := s.db.Query(`
		SELECT fund_code, COALESCE(manager_name, ''), COALESCE(score, 50),
			COALESCE(grade, 'C'), COALESCE(reasons_json, '[]')
		FROM fund_managers
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]market.ManagerScore)
	for rows.Next() {
		var ms market.ManagerScore
		var reasonsJSON string
		if err := rows.Scan(&ms.FundCode, &ms.ManagerName, &ms.Score, &ms.Grade, &reasonsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(reasonsJSON), &ms.Reasons)
		out[ms.FundCode] = ms
	}
	return out, rows.Err()
}

// SaveHotspot records one sector hotspot from the daily scan.
func (s *Store) SaveHotspot(scanDate, sectorName, hotspotType string, score float64) error {
	_, err := s.db.Exec(`
		INSERT INTO hotspots (scan_date, sector_name, hotspot_type, score)
		VALUES (?, ?, ?, ?)
	`, scanDate, sectorName, hotspotType, score)
	return err
}

// SaveScenario records one scenario-analysis result.
func (s *Store) SaveScenario(analysisDate, horizon, scenariosJSON, recommendation string, expectedValue float64, tokens int) error {
	_, err := s.db.Exec(`
		INSERT INTO scenario_analysis
			(analysis_date, horizon, scenarios_json, expected_value, recommendation, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?)
	`, analysisDate, horizon, scenariosJSON, expectedValue, recommendation, tokens)
	return err
}
