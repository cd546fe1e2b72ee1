package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tradeocr/internal/application/port"
)

// Repo sqlite 存储：交易流水、持仓、股票基础信息
// 价格以 decimal 规范字符串存 TEXT，日期存 YYYY-MM-DD，保证幂等键等值查询稳定
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS user_trade (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  ts_code TEXT NOT NULL,
  trade_type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL,
  trade_date TEXT NOT NULL,
  profit_loss TEXT,
  note TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_user_code ON user_trade(user_id, ts_code);
CREATE INDEX IF NOT EXISTS idx_trade_date ON user_trade(trade_date);

CREATE TABLE IF NOT EXISTS user_position (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  ts_code TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  avg_price TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(user_id, ts_code)
);

CREATE TABLE IF NOT EXISTS stock_company (
  ts_code TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_name ON stock_company(name);
`)
	return err
}

var _ port.Store = (*Repo)(nil)
