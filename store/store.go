package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS funds (
	fund_code TEXT PRIMARY KEY,
	fund_name TEXT NOT NULL,
	fund_type TEXT,
	management_company TEXT,
	establishment_date TEXT,
	benchmark TEXT,
	subscription_fee_rate REAL,
	redemption_fee_rate TEXT,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS fund_nav (
	fund_code TEXT NOT NULL,
	nav_date TEXT NOT NULL,
	nav REAL NOT NULL,
	acc_nav REAL,
	daily_return REAL,
	PRIMARY KEY (fund_code, nav_date)
);

CREATE TABLE IF NOT EXISTS market_indices (
	index_code TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	open REAL,
	high REAL,
	low REAL,
	close REAL,
	volume REAL,
	amount REAL,
	PRIMARY KEY (index_code, trade_date)
);

CREATE TABLE IF NOT EXISTS portfolio (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fund_code TEXT NOT NULL,
	shares REAL NOT NULL,
	cost_price REAL NOT NULL,
	current_nav REAL,
	buy_date TEXT NOT NULL,
	status TEXT DEFAULT 'holding',
	sell_date TEXT,
	sell_nav REAL,
	profit_loss REAL,
	profit_loss_pct REAL,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_date TEXT NOT NULL,
	fund_code TEXT NOT NULL,
	action TEXT NOT NULL,
	amount REAL NOT NULL,
	nav REAL NOT NULL,
	shares REAL,
	fee REAL DEFAULT 0,
	reason TEXT,
	confidence REAL,
	report_path TEXT,
	status TEXT DEFAULT 'pending',
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS account_snapshots (
	snapshot_date TEXT PRIMARY KEY,
	total_value REAL NOT NULL,
	cash REAL NOT NULL,
	invested REAL NOT NULL,
	total_profit_loss REAL,
	total_return_pct REAL,
	max_drawdown_pct REAL,
	holdings_json TEXT
);

CREATE TABLE IF NOT EXISTS watchlist (
	fund_code TEXT PRIMARY KEY,
	added_date TEXT NOT NULL,
	reason TEXT,
	target_action TEXT,
	notes TEXT,
	category TEXT DEFAULT 'equity'
);

CREATE TABLE IF NOT EXISTS index_valuation (
	index_code TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	pe REAL,
	pb REAL,
	pe_percentile REAL,
	pb_percentile REAL,
	PRIMARY KEY (index_code, trade_date)
);

CREATE TABLE IF NOT EXISTS macro_indicators (
	indicator TEXT NOT NULL,
	period TEXT NOT NULL,
	value REAL,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (indicator, period)
);

CREATE TABLE IF NOT EXISTS sentiment_indicators (
	indicator TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	value REAL,
	percentile REAL,
	PRIMARY KEY (indicator, trade_date)
);

CREATE TABLE IF NOT EXISTS sector_snapshots (
	sector_code TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	sector_name TEXT,
	change_pct REAL,
	turnover REAL,
	net_inflow REAL,
	PRIMARY KEY (sector_code, trade_date)
);

CREATE TABLE IF NOT EXISTS hotspots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_date TEXT NOT NULL,
	sector_name TEXT NOT NULL,
	hotspot_type TEXT,
	score REAL,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS fund_managers (
	fund_code TEXT PRIMARY KEY,
	manager_name TEXT,
	company TEXT,
	score REAL,
	grade TEXT,
	reasons_json TEXT,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scenario_analysis (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_date TEXT NOT NULL,
	horizon TEXT,
	scenarios_json TEXT,
	expected_value REAL,
	recommendation TEXT,
	tokens_used INTEGER DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS signal_validation (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_date TEXT NOT NULL,
	fund_code TEXT NOT NULL,
	strategy_name TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	confidence REAL,
	regime TEXT,
	nav_at_signal REAL,
	nav_after_7d REAL,
	nav_after_30d REAL,
	return_7d REAL,
	return_30d REAL,
	is_correct_7d INTEGER,
	is_correct_30d INTEGER,
	validated_at TEXT,
	UNIQUE (signal_date, fund_code, strategy_name)
);

CREATE TABLE IF NOT EXISTS strategy_performance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	period_start TEXT,
	period_end TEXT NOT NULL,
	strategy_name TEXT NOT NULL,
	regime TEXT NOT NULL,
	total_signals INTEGER,
	correct_signals INTEGER,
	win_rate REAL,
	avg_return REAL,
	avg_confidence REAL,
	confidence_accuracy REAL,
	recommended_weight REAL,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (period_end, strategy_name, regime)
);

CREATE TABLE IF NOT EXISTS knowledge_base (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	content TEXT NOT NULL,
	source_reflection_id INTEGER,
	times_validated INTEGER DEFAULT 0,
	is_active INTEGER DEFAULT 1,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agent_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_date TEXT NOT NULL,
	market_context TEXT,
	quant_signals TEXT,
	llm_analysis TEXT,
	llm_decision TEXT,
	confidence REAL,
	reasoning TEXT,
	challenge TEXT,
	model_used TEXT,
	tokens_used INTEGER DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reflections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reflection_date TEXT NOT NULL,
	decision_id INTEGER,
	period TEXT NOT NULL,
	original_signal TEXT,
	actual_outcome TEXT,
	was_correct INTEGER,
	reflection_text TEXT,
	lessons_learned TEXT,
	cognitive_update TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fund_nav_date ON fund_nav(fund_code, nav_date);
CREATE INDEX IF NOT EXISTS idx_signal_validation_pending
	ON signal_validation(signal_date, fund_code);
CREATE INDEX IF NOT EXISTS idx_portfolio_status ON portfolio(status);
CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date);
`

// Store wraps the shared SQLite database. It is the only shared mutable
// resource in the system; all writers go through WAL transactions.
type Store struct {
	db *sql.DB

	ftsAvailable bool
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes access per connection; a single
	// connection avoids table-lock races between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	_, _ = db.Exec(`PRAGMA busy_timeout=5000`)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db}

	// FTS5 mirror of the knowledge base. Silently degrade when the
	// build lacks FTS5; retrieval falls back to a plain query.
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts
		USING fts5(content, category)`); err == nil {
		s.ftsAvailable = true
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for package-internal consumers.
func (s *Store) DB() *sql.DB {
	return s.db
}
