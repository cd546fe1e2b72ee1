package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Repo postgres 存储，表结构与 sqlite 一致；价格 NUMERIC，日期 DATE
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  ts_code VARCHAR(20) NOT NULL,
  trade_type VARCHAR(10) NOT NULL,
  quantity BIGINT NOT NULL,
  price NUMERIC(12,4) NOT NULL,
  trade_date DATE NOT NULL,
  profit_loss NUMERIC(12,4),
  note TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_user_code ON user_trade(user_id, ts_code);

CREATE TABLE IF NOT EXISTS user_position (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  ts_code VARCHAR(20) NOT NULL,
  quantity BIGINT NOT NULL,
  avg_price NUMERIC(20,8) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE(user_id, ts_code)
);

CREATE TABLE IF NOT EXISTS stock_company (
  ts_code VARCHAR(20) PRIMARY KEY,
  symbol VARCHAR(20) NOT NULL,
  name VARCHAR(100) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_name ON stock_company(name);
`)
	return err
}

const tradeColumns = `id, user_id, ts_code, trade_type, quantity, price::text, trade_date, profit_loss::text, note, created_at, updated_at`

func (r *Repo) CreateTrade(ctx context.Context, rec *model.TradeRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	var pl sql.NullString
	if rec.ProfitLoss.Valid {
		pl = sql.NullString{String: rec.ProfitLoss.Decimal.String(), Valid: true}
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO user_trade(user_id, ts_code, trade_type, quantity, price, trade_date, profit_loss, note, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5::numeric, $6::date, $7::numeric, $8, $9, $10)
		RETURNING id
	`, rec.UserID, rec.TsCode, string(rec.TradeType), rec.Quantity, rec.Price.String(),
		rec.TradeDate.Format(model.DateLayout), pl, rec.Note, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
}

func (r *Repo) FindTrade(ctx context.Context, key model.TradeKey) (*model.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM user_trade
		WHERE user_id=$1 AND ts_code=$2 AND trade_date=$3::date AND price=$4::numeric AND quantity=$5 AND trade_type=$6
		LIMIT 1
	`, key.UserID, key.TsCode, key.TradeDate.Format(model.DateLayout), key.Price.String(), key.Quantity, string(key.TradeType))
	return scanTrade(row)
}

func (r *Repo) LatestBuy(ctx context.Context, userID int64, tsCode string) (*model.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM user_trade
		WHERE user_id=$1 AND ts_code=$2 AND trade_type=$3
		ORDER BY trade_date DESC, id DESC
		LIMIT 1
	`, userID, tsCode, string(model.TradeBuy))
	return scanTrade(row)
}

func (r *Repo) ListTrades(ctx context.Context, userID int64, tsCode string) ([]*model.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM user_trade WHERE user_id=$1`
	args := []any{userID}
	if tsCode != "" {
		query += ` AND ts_code=$2`
		args = append(args, tsCode)
	}
	query += ` ORDER BY trade_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []*model.TradeRecord{}
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

func (r *Repo) GetPosition(ctx context.Context, userID int64, tsCode string) (*model.Position, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ts_code, quantity, avg_price::text, created_at, updated_at
		FROM user_position WHERE user_id=$1 AND ts_code=$2
	`, userID, tsCode)
	return scanPosition(row)
}

func (r *Repo) CreatePosition(ctx context.Context, pos *model.Position) error {
	now := time.Now()
	pos.CreatedAt, pos.UpdatedAt = now, now
	return r.db.QueryRowContext(ctx, `
		INSERT INTO user_position(user_id, ts_code, quantity, avg_price, created_at, updated_at)
		VALUES($1, $2, $3, $4::numeric, $5, $6)
		RETURNING id
	`, pos.UserID, pos.TsCode, pos.Quantity, pos.AvgPrice.Round(8).String(), now, now).Scan(&pos.ID)
}

func (r *Repo) UpdatePosition(ctx context.Context, pos *model.Position) error {
	pos.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_position SET quantity=$1, avg_price=$2::numeric, updated_at=$3 WHERE id=$4
	`, pos.Quantity, pos.AvgPrice.Round(8).String(), pos.UpdatedAt, pos.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, pos.ID)
}

func (r *Repo) DeletePosition(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_position WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func (r *Repo) ListPositions(ctx context.Context, userID int64) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, ts_code, quantity, avg_price::text, created_at, updated_at
		FROM user_position WHERE user_id=$1 ORDER BY ts_code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []*model.Position{}
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (r *Repo) FindExact(ctx context.Context, name string) (string, error) {
	return r.findCode(ctx, `SELECT ts_code FROM stock_company WHERE name=$1 LIMIT 1`, name)
}

func (r *Repo) FindContaining(ctx context.Context, name string) (string, error) {
	return r.findCode(ctx, `
		SELECT ts_code FROM stock_company WHERE strpos(name, $1) > 0 ORDER BY ts_code LIMIT 1
	`, name)
}

func (r *Repo) UpsertStock(ctx context.Context, s *model.Stock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_company(ts_code, symbol, name) VALUES($1, $2, $3)
		ON CONFLICT(ts_code) DO UPDATE SET symbol=excluded.symbol, name=excluded.name
	`, s.TsCode, s.Symbol, s.Name)
	return err
}

func (r *Repo) findCode(ctx context.Context, query, name string) (string, error) {
	var code string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	return code, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (*model.TradeRecord, error) {
	var (
		rec              model.TradeRecord
		tradeType, price string
		pl               sql.NullString
	)
	err := s.Scan(&rec.ID, &rec.UserID, &rec.TsCode, &tradeType, &rec.Quantity, &price,
		&rec.TradeDate, &pl, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.TradeType = model.TradeType(tradeType)
	if rec.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("trade %d price %q: %w", rec.ID, price, err)
	}
	if pl.Valid {
		d, err := decimal.NewFromString(pl.String)
		if err != nil {
			return nil, fmt.Errorf("trade %d profit_loss %q: %w", rec.ID, pl.String, err)
		}
		rec.ProfitLoss = decimal.NewNullDecimal(d)
	}
	y, m, d := rec.TradeDate.Date()
	rec.TradeDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &rec, nil
}

func scanPosition(s scanner) (*model.Position, error) {
	var (
		pos model.Position
		avg string
	)
	err := s.Scan(&pos.ID, &pos.UserID, &pos.TsCode, &pos.Quantity, &avg, &pos.CreatedAt, &pos.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pos.AvgPrice, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("position %d avg_price %q: %w", pos.ID, avg, err)
	}
	return &pos, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("position %d: %w", id, model.ErrNotFound)
	}
	return nil
}

var _ port.Store = (*Repo)(nil)
