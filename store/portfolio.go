package store

import (
	"encoding/json"
	"time"
)

// Holding is one open portfolio row.
type Holding struct {
	ID         int64
	FundCode   string
	Shares     float64
	CostPrice  float64
	CurrentNav float64
	BuyDate    string
}

// Value returns the market value of the holding at its latest NAV.
func (h Holding) Value() float64 {
	nav := h.CurrentNav
	if nav == 0 {
		nav = h.CostPrice
	}
	return nav * h.Shares
}

// Holdings returns all open positions.
func (s *Store) Holdings() ([]Holding, error) {
	rows, err := s.db.Query(`
		SELECT id, fund_code, shares, cost_price, COALESCE(current_nav, 0), buy_date
		FROM portfolio WHERE status = 'holding' ORDER BY buy_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ID, &h.FundCode, &h.Shares, &h.CostPrice, &h.CurrentNav, &h.BuyDate); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Trade is one trade-journal row.
type Trade struct {
	ID         int64
	TradeDate  string
	FundCode   string
	Action     string // buy | sell
	Amount     float64
	Nav        float64
	Shares     float64
	Reason     string
	Confidence float64
	Status     string // pending | executed
}

// RecordTrade journals an executed trade and, for buys, opens the
// matching holding inside the same transaction.
func (s *Store) RecordTrade(t Trade) error {
	if t.Status == "" {
		t.Status = "executed"
	}
	if t.Shares == 0 && t.Nav > 0 {
		t.Shares = t.Amount / t.Nav
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO trades (trade_date, fund_code, action, amount, nav, shares, reason, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TradeDate, t.FundCode, t.Action, t.Amount, t.Nav, t.Shares, t.Reason, t.Confidence, t.Status); err != nil {
		return err
	}

	if t.Action == "buy" && t.Status == "executed" {
		if _, err := tx.Exec(`
			INSERT INTO portfolio (fund_code, shares, cost_price, current_nav, buy_date, status)
			VALUES (?, ?, ?, ?, ?, 'holding')
		`, t.FundCode, t.Shares, t.Nav, t.Nav, t.TradeDate); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SavePendingTrade journals an advisory recommendation as a pending
// trade awaiting manual execution.
func (s *Store) SavePendingTrade(t Trade) error {
	t.Status = "pending"
	_, err := s.db.Exec(`
		INSERT INTO trades (trade_date, fund_code, action, amount, nav, shares, reason, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')
	`, t.TradeDate, t.FundCode, t.Action, t.Amount, t.Nav, t.Shares, t.Reason, t.Confidence)
	return err
}

// ExecutedTradePnls returns realized sell PnL percentages, oldest
// first. Feeds the monte-carlo simulator.
func (s *Store) ExecutedTradePnls() ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT p.profit_loss_pct
		FROM portfolio p
		WHERE p.status = 'sold' AND p.profit_loss_pct IS NOT NULL
		ORDER BY p.sell_date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return nil, err
		}
		out = append(out, pnl)
	}
	return out, rows.Err()
}

// AccountSnapshot is the daily account state row.
type AccountSnapshot struct {
	Date           string
	TotalValue     float64
	Cash           float64
	Invested       float64
	TotalPnL       float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	Holdings       []Holding
}

// SaveSnapshot writes (or rewrites) the snapshot for its date.
func (s *Store) SaveSnapshot(snap AccountSnapshot) error {
	holdingsJSON, _ := json.Marshal(snap.Holdings)
	_, err := s.db.Exec(`
		INSERT INTO account_snapshots
			(snapshot_date, total_value, cash, invested, total_profit_loss,
			 total_return_pct, max_drawdown_pct, holdings_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_date) DO UPDATE SET
			total_value = excluded.total_value,
			cash = excluded.cash,
			invested = excluded.invested,
			total_profit_loss = excluded.total_profit_loss,
			total_return_pct = excluded.total_return_pct,
			max_drawdown_pct = excluded.max_drawdown_pct,
			holdings_json = excluded.holdings_json
	`, snap.Date, snap.TotalValue, snap.Cash, snap.Invested, snap.TotalPnL,
		snap.TotalReturnPct, snap.MaxDrawdownPct, string(holdingsJSON))
	return err
}

// SnapshotValues returns up to limit recent total_value points, oldest
// first, for drawdown computation.
func (s *Store) SnapshotValues(limit int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT total_value FROM (
			SELECT snapshot_date, total_value FROM account_snapshots
			ORDER BY snapshot_date DESC LIMIT ?
		) ORDER BY snapshot_date ASC
	`, limit)
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

// LatestCash returns the cash balance of the newest snapshot.
func (s *Store) LatestCash() (float64, bool) {
	var cash float64
	err := s.db.QueryRow(`
		SELECT cash FROM account_snapshots ORDER BY snapshot_date DESC LIMIT 1
	`).Scan(&cash)
	return cash, err == nil
}

// Today formats now as the canonical YYYY-MM-DD store date.
func Today() string {
	return time.Now().Format("2006-01-02")
}
