package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fundpilot/market"
)

// Fund is one row of the funds table.
type Fund struct {
	Code              string
	Name              string
	Type              string
	ManagementCompany string
}

// UpsertFund inserts or refreshes a fund's static info.
func (s *Store) UpsertFund(f Fund) error {
	_, err := s.db.Exec(`
		INSERT INTO funds (fund_code, fund_name, fund_type, management_company)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fund_code) DO UPDATE SET
			fund_name = excluded.fund_name,
			fund_type = excluded.fund_type,
			management_company = excluded.management_company,
			updated_at = CURRENT_TIMESTAMP
	`, f.Code, f.Name, f.Type, f.ManagementCompany)
	return err
}

// FundName returns the display name for a code, or the code itself.
func (s *Store) FundName(code string) string {
	var name string
	err := s.db.QueryRow(`SELECT fund_name FROM funds WHERE fund_code = ?`, code).Scan(&name)
	if err != nil || name == "" {
		return code
	}
	return name
}

// UpsertNav writes NAV rows; rows are immutable once written but
// re-ingestion of the same (fund, date) is tolerated.
func (s *Store) UpsertNav(fundCode string, points []market.NavPoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO fund_nav (fund_code, nav_date, nav, acc_nav, daily_return)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fund_code, nav_date) DO UPDATE SET
			nav = excluded.nav,
			acc_nav = excluded.acc_nav,
			daily_return = excluded.daily_return
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(fundCode, p.Date, p.Nav, p.AccNav, p.DailyReturn); err != nil {
			return fmt.Errorf("upsert nav %s/%s: %w", fundCode, p.Date, err)
		}
	}
	return tx.Commit()
}

// NavHistory returns the full NAV series for a fund, date ascending.
func (s *Store) NavHistory(fundCode string) ([]market.NavPoint, error) {
	rows, err := s.db.Query(`
		SELECT nav_date, nav, COALESCE(acc_nav, 0), COALESCE(daily_return, 0)
		FROM fund_nav WHERE fund_code = ? ORDER BY nav_date ASC
	`, fundCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.NavPoint
	for rows.Next() {
		var p market.NavPoint
		if err := rows.Scan(&p.Date, &p.Nav, &p.AccNav, &p.DailyReturn); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NavOnOrAfter finds the first NAV on or after date. ok is false when the
// fund has no NAV on or after date; no earlier NAV is used instead.
func (s *Store) NavOnOrAfter(fundCode, date string) (float64, bool) {
	var nav float64
	err := s.db.QueryRow(`
		SELECT nav FROM fund_nav
		WHERE fund_code = ? AND nav_date >= ?
		ORDER BY nav_date ASC LIMIT 1
	`, fundCode, date).Scan(&nav)
	if err == nil {
		return nav, true
	}
	return 0, false
}

// LatestNav returns the most recent NAV for a fund.
func (s *Store) LatestNav(fundCode string) (float64, bool) {
	var nav float64
	err := s.db.QueryRow(`
		SELECT nav FROM fund_nav WHERE fund_code = ?
		ORDER BY nav_date DESC LIMIT 1
	`, fundCode).Scan(&nav)
	return nav, err == nil
}

// FundCodesWithHistory lists funds having at least minPoints NAV rows.
func (s *Store) FundCodesWithHistory(minPoints int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT fund_code FROM fund_nav
		GROUP BY fund_code HAVING COUNT(*) >= ?
		ORDER BY fund_code
	`, minPoints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// UpsertIndexBars writes index OHLCV rows.
func (s *Store) UpsertIndexBars(indexCode string, bars []market.IndexBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO market_indices (index_code, trade_date, open, high, low, close, volume, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_code, trade_date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume, amount = excluded.amount
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(indexCode, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// IndexCloses returns the close series for an index, date ascending.
func (s *Store) IndexCloses(indexCode string) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT close FROM market_indices
		WHERE index_code = ? AND close IS NOT NULL
		ORDER BY trade_date ASC
	`, indexCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestIndexSnapshot returns the newest bar plus day change for each
// requested index.
type IndexSnapshot struct {
	Code      string
	Name      string
	TradeDate string
	Close     float64
	ChangePct float64
}

func (s *Store) LatestIndexSnapshot(codes map[string]string) []IndexSnapshot {
	var out []IndexSnapshot
	for code, name := range codes {
		rows, err := s.db.Query(`
			SELECT trade_date, close FROM market_indices
			WHERE index_code = ? ORDER BY trade_date DESC LIMIT 2
		`, code)
		if err != nil {
			continue
		}
		var snap IndexSnapshot
		var prev float64
		n := 0
		for rows.Next() {
			var date string
			var close float64
			if rows.Scan(&date, &close) != nil {
				break
			}
			if n == 0 {
				snap = IndexSnapshot{Code: code, Name: name, TradeDate: date, Close: close}
			} else {
				prev = close
			}
			n++
		}
		rows.Close()
		if n == 0 {
			continue
		}
		if prev > 0 {
			snap.ChangePct = (snap.Close - prev) / prev * 100
		}
		out = append(out, snap)
	}
	return out
}

// WatchItem is one watchlist row.
type WatchItem struct {
	FundCode  string
	AddedDate string
	Reason    string
	Category  string
}

// AddToWatchlist inserts a fund into the watch pool, keeping the
// earliest added_date on re-adds.
func (s *Store) AddToWatchlist(item WatchItem) error {
	if item.AddedDate == "" {
		item.AddedDate = time.Now().Format("2006-01-02")
	}
	if item.Category == "" {
		item.Category = "equity"
	}
	_, err := s.db.Exec(`
		INSERT INTO watchlist (fund_code, added_date, reason, category)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fund_code) DO UPDATE SET
			reason = excluded.reason, category = excluded.category
	`, item.FundCode, item.AddedDate, item.Reason, item.Category)
	return err
}

// Watchlist returns the full watch pool.
func (s *Store) Watchlist() ([]WatchItem, error) {
	rows, err := s.db.Query(`
		SELECT fund_code, added_date, COALESCE(reason, ''), COALESCE(category, 'equity')
		FROM watchlist ORDER BY fund_code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WatchItem
	for rows.Next() {
		var w WatchItem
		if err := rows.Scan(&w.FundCode, &w.AddedDate, &w.Reason, &w.Category); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// FundCategory resolves a fund's asset category from the watchlist,
// defaulting to equity.
func (s *Store) FundCategory(fundCode string) string {
	var cat sql.NullString
	err := s.db.QueryRow(`SELECT category FROM watchlist WHERE fund_code = ?`, fundCode).Scan(&cat)
	if err != nil || !cat.Valid || strings.TrimSpace(cat.String) == "" {
		return "equity"
	}
	return cat.String
}

// FundData assembles the immutable per-fund snapshot strategies read:
// funds with >= 60 NAV rows, plus watchlist funds with >= 30.
func (s *Store) FundData() (map[string]*market.FundHistory, error) {
	data := make(map[string]*market.FundHistory)

	codes, err := s.FundCodesWithHistory(60)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		navs, err := s.NavHistory(code)
		if err != nil {
			return nil, err
		}
		data[code] = &market.FundHistory{
			Code:     code,
			Name:     s.FundName(code),
			Category: s.FundCategory(code),
			Navs:     navs,
		}
	}

	watch, err := s.Watchlist()
	if err != nil {
		return data, nil
	}
	for _, w := range watch {
		if _, ok := data[w.FundCode]; ok {
			continue
		}
		navs, err := s.NavHistory(w.FundCode)
		if err != nil || len(navs) < 30 {
			continue
		}
		data[w.FundCode] = &market.FundHistory{
			Code:     w.FundCode,
			Name:     s.FundName(w.FundCode),
			Category: w.Category,
			Navs:     navs,
		}
	}
	return data, nil
}
