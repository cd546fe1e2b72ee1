package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"tradeocr/internal/domain/model"
)

func (r *Repo) FindExact(ctx context.Context, name string) (string, error) {
	return r.findCode(ctx, `SELECT ts_code FROM stock_company WHERE name=? LIMIT 1`, name)
}

func (r *Repo) FindContaining(ctx context.Context, name string) (string, error) {
	return r.findCode(ctx, `
		SELECT ts_code FROM stock_company
		WHERE instr(name, ?) > 0
		ORDER BY ts_code
		LIMIT 1
	`, name)
}

func (r *Repo) UpsertStock(ctx context.Context, s *model.Stock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_company(ts_code, symbol, name) VALUES(?, ?, ?)
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
