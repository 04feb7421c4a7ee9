// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	suggested_price REAL NOT NULL,
	suggested_quantity INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	urgent INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	sms_sent_at DATETIME,
	user_response TEXT NOT NULL DEFAULT '',
	responded_at DATETIME,
	trade_id INTEGER,
	note TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);

CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	total_value REAL NOT NULL,
	order_id TEXT NOT NULL DEFAULT '',
	signal_id INTEGER,
	buy_price REAL,
	profit_loss REAL,
	profit_loss_pct REAL,
	hold_days INTEGER,
	created_at DATETIME NOT NULL,
	executed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);

CREATE TABLE IF NOT EXISTS holdings (
	symbol TEXT PRIMARY KEY,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	avg_buy_price REAL NOT NULL,
	total_cost REAL NOT NULL,
	current_price REAL NOT NULL DEFAULT 0,
	current_value REAL NOT NULL DEFAULT 0,
	stop_loss_price REAL NOT NULL,
	take_profit_price REAL NOT NULL,
	first_bought_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date DATETIME NOT NULL,
	total_value REAL NOT NULL,
	cash_balance REAL NOT NULL,
	holdings_value REAL NOT NULL,
	daily_pl REAL NOT NULL,
	daily_pl_pct REAL NOT NULL,
	total_pl REAL NOT NULL,
	total_pl_pct REAL NOT NULL,
	peak_value REAL NOT NULL,
	drawdown REAL NOT NULL,
	drawdown_pct REAL NOT NULL,
	num_holdings INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_date ON portfolio_snapshots(date);

CREATE TABLE IF NOT EXISTS trading_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_type TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	trade_id INTEGER,
	signal_id INTEGER,
	extra_data TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_log(created_at);
`
