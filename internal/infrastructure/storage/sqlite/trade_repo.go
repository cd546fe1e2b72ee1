package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeocr/internal/domain/model"
)

const tradeColumns = `id, user_id, ts_code, trade_type, quantity, price, trade_date, profit_loss, note, created_at, updated_at`

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

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_trade(user_id, ts_code, trade_type, quantity, price, trade_date, profit_loss, note, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.TsCode, string(rec.TradeType), rec.Quantity, rec.Price.String(),
		rec.TradeDate.Format(model.DateLayout), pl, rec.Note, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *Repo) FindTrade(ctx context.Context, key model.TradeKey) (*model.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM user_trade
		WHERE user_id=? AND ts_code=? AND trade_date=? AND price=? AND quantity=? AND trade_type=?
		LIMIT 1
	`, key.UserID, key.TsCode, key.TradeDate.Format(model.DateLayout), key.Price.String(), key.Quantity, string(key.TradeType))
	return scanTrade(row)
}

func (r *Repo) LatestBuy(ctx context.Context, userID int64, tsCode string) (*model.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM user_trade
		WHERE user_id=? AND ts_code=? AND trade_type=?
		ORDER BY trade_date DESC, id DESC
		LIMIT 1
	`, userID, tsCode, string(model.TradeBuy))
	return scanTrade(row)
}

func (r *Repo) ListTrades(ctx context.Context, userID int64, tsCode string) ([]*model.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM user_trade WHERE user_id=?`
	args := []any{userID}
	if tsCode != "" {
		query += ` AND ts_code=?`
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (*model.TradeRecord, error) {
	var (
		rec                  model.TradeRecord
		tradeType, price     string
		tradeDate            string
		pl                   sql.NullString
		createdAt, updatedAt int64
	)
	err := s.Scan(&rec.ID, &rec.UserID, &rec.TsCode, &tradeType, &rec.Quantity, &price,
		&tradeDate, &pl, &rec.Note, &createdAt, &updatedAt)
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
	if rec.TradeDate, err = time.Parse(model.DateLayout, tradeDate); err != nil {
		return nil, fmt.Errorf("trade %d date %q: %w", rec.ID, tradeDate, err)
	}
	if pl.Valid {
		d, err := decimal.NewFromString(pl.String)
		if err != nil {
			return nil, fmt.Errorf("trade %d profit_loss %q: %w", rec.ID, pl.String, err)
		}
		rec.ProfitLoss = decimal.NewNullDecimal(d)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	return &rec, nil
}
