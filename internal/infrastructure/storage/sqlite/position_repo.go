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

func (r *Repo) GetPosition(ctx context.Context, userID int64, tsCode string) (*model.Position, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ts_code, quantity, avg_price, created_at, updated_at
		FROM user_position WHERE user_id=? AND ts_code=?
	`, userID, tsCode)
	return scanPosition(row)
}

func (r *Repo) CreatePosition(ctx context.Context, pos *model.Position) error {
	now := time.Now()
	pos.CreatedAt, pos.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_position(user_id, ts_code, quantity, avg_price, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, pos.UserID, pos.TsCode, pos.Quantity, pos.AvgPrice.String(), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	pos.ID = id
	return nil
}

func (r *Repo) UpdatePosition(ctx context.Context, pos *model.Position) error {
	pos.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_position SET quantity=?, avg_price=?, updated_at=? WHERE id=?
	`, pos.Quantity, pos.AvgPrice.String(), pos.UpdatedAt.UnixMilli(), pos.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, pos.ID)
}

func (r *Repo) DeletePosition(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_position WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func (r *Repo) ListPositions(ctx context.Context, userID int64) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, ts_code, quantity, avg_price, created_at, updated_at
		FROM user_position WHERE user_id=? ORDER BY ts_code
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

func scanPosition(s scanner) (*model.Position, error) {
	var (
		pos                  model.Position
		avg                  string
		createdAt, updatedAt int64
	)
	err := s.Scan(&pos.ID, &pos.UserID, &pos.TsCode, &pos.Quantity, &avg, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pos.AvgPrice, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("position %d avg_price %q: %w", pos.ID, avg, err)
	}
	pos.CreatedAt = time.UnixMilli(createdAt)
	pos.UpdatedAt = time.UnixMilli(updatedAt)
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
