package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
	domainservice "tradeocr/internal/domain/service"
)

// Outcome 入库结果
type Outcome int

const (
	OutcomeSaved     Outcome = iota
	OutcomeDuplicate         // 幂等键已存在，跳过
)

func (o Outcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "saved"
}

// ReconcileError 交易已入库，但持仓更新失败
type ReconcileError struct {
	Record *model.TradeRecord
	Err    error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("trade %d saved but position not updated: %v", e.Record.ID, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// LedgerWriterDeps LedgerWriter 依赖
type LedgerWriterDeps struct {
	Trades    port.TradeRepository
	Resolver  *StockResolver
	Positions *PositionService
	Locker    port.Locker
	Events    port.EventPublisher
	Now       func() time.Time
}

// LedgerWriter 把识别出的交易转换为流水并入库
type LedgerWriter struct {
	deps LedgerWriterDeps
}

func NewLedgerWriter(deps LedgerWriterDeps) *LedgerWriter {
	if deps.Locker == nil {
		deps.Locker = domainservice.NewKeyLocker()
	}
	if deps.Events == nil {
		deps.Events = port.NoopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &LedgerWriter{deps: deps}
}

// Convert 校验后的候选交易 -> 待入库流水
// 有成交行时以成交价/成交量为准；卖出时按最近一笔买入计算盈亏
func (w *LedgerWriter) Convert(ctx context.Context, tx *model.RawTransaction, userID int64, tradeDate time.Time) (*model.TradeRecord, error) {
	if err := domainservice.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	tsCode, err := w.deps.Resolver.Resolve(ctx, tx.StockName)
	if err != nil {
		return nil, err
	}

	cls, err := domainservice.ClassifyOrderType(tx.OrderType)
	if err != nil {
		return nil, err
	}

	now := w.deps.Now()
	rec := &model.TradeRecord{
		UserID:    userID,
		TsCode:    tsCode,
		TradeType: cls.TradeType,
		Quantity:  tx.Order.Quantity,
		Price:     tx.Order.Price,
		TradeDate: tradeDate,
		Note:      buildNote(tx),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if ex := tx.Execution; ex != nil && ex.Price.IsPositive() && ex.Quantity > 0 {
		rec.Price = ex.Price
		rec.Quantity = ex.Quantity
		rec.Note += " 成交价:" + ex.Price.String()
	}
	// 按库表精度取整，各存储拿到同一个幂等键
	rec.Price = rec.Price.Round(model.PriceScale)

	if rec.TradeType == model.TradeSell {
		buy, err := w.deps.Trades.LatestBuy(ctx, userID, tsCode)
		switch {
		case err == nil:
			rec.ProfitLoss = domainservice.ProfitLoss(rec.Price, rec.Quantity, buy)
		case errors.Is(err, model.ErrNotFound):
			// 没有买入记录，盈亏留空
		default:
			return nil, fmt.Errorf("latest buy lookup: %w", err)
		}
	}

	return rec, nil
}

// Persist 幂等入库并更新持仓
// 幂等键已存在时返回 OutcomeDuplicate 且不报错；持仓更新失败返回 *ReconcileError，此时流水已提交
func (w *LedgerWriter) Persist(ctx context.Context, rec *model.TradeRecord) (Outcome, error) {
	rec.Price = rec.Price.Round(model.PriceScale)
	if err := domainservice.CheckTrade(rec); err != nil {
		return OutcomeSaved, err
	}

	unlock, err := w.deps.Locker.Lock(ctx, LockKey("ledger", rec.UserID, rec.TsCode))
	if err != nil {
		return OutcomeSaved, fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer unlock()

	existing, err := w.deps.Trades.FindTrade(ctx, rec.Key())
	if err == nil {
		log.Info().
			Int64("id", existing.ID).
			Int64("user_id", rec.UserID).
			Str("ts_code", rec.TsCode).
			Msg("trade already exists, skip")
		return OutcomeDuplicate, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return OutcomeSaved, fmt.Errorf("find trade: %w", err)
	}

	if err := w.deps.Trades.CreateTrade(ctx, rec); err != nil {
		return OutcomeSaved, fmt.Errorf("create trade: %w", err)
	}
	log.Info().
		Int64("id", rec.ID).
		Int64("user_id", rec.UserID).
		Str("ts_code", rec.TsCode).
		Str("type", string(rec.TradeType)).
		Int64("quantity", rec.Quantity).
		Str("price", rec.Price.String()).
		Msg("trade saved")

	if err := w.deps.Events.PublishTradeSaved(ctx, rec); err != nil {
		log.Warn().Err(err).Int64("id", rec.ID).Msg("publish trade event failed")
	}

	if _, err := w.deps.Positions.Apply(ctx, rec); err != nil {
		log.Error().Err(err).Int64("id", rec.ID).Str("ts_code", rec.TsCode).Msg("position reconcile failed")
		return OutcomeSaved, &ReconcileError{Record: rec, Err: err}
	}
	return OutcomeSaved, nil
}

func buildNote(tx *model.RawTransaction) string {
	status := tx.Status()
	if status == "" {
		status = "未知状态"
	}
	return fmt.Sprintf("OCR识别 - %s %s %s", tx.StockName, tx.OrderType, status)
}
