package eventlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Repo 交易入库事件追加写入本地 JSON Lines 文件，每行一条
type Repo struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

func New(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &Repo{
		file:   f,
		logger: zerolog.New(f).With().Timestamp().Logger(),
	}, nil
}

func (r *Repo) PublishTradeSaved(ctx context.Context, rec *model.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := r.logger.Log().
		Str("event", "trade_saved").
		Int64("id", rec.ID).
		Int64("user_id", rec.UserID).
		Str("ts_code", rec.TsCode).
		Str("trade_type", string(rec.TradeType)).
		Int64("quantity", rec.Quantity).
		Str("price", rec.Price.String()).
		Str("trade_date", rec.TradeDate.Format(model.DateLayout))
	if rec.ProfitLoss.Valid {
		ev = ev.Str("profit_loss", rec.ProfitLoss.Decimal.String())
	}
	ev.Send()
	return nil
}

func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

var _ port.EventPublisher = (*Repo)(nil)
