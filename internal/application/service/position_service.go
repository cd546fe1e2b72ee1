package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
	domainservice "tradeocr/internal/domain/service"
)

// PositionService 把已入库的交易应用到持仓
// 同一 (user_id, ts_code) 的读-改-写在 position 锁内完成
type PositionService struct {
	repo   port.PositionRepository
	locker port.Locker
}

func NewPositionService(repo port.PositionRepository, locker port.Locker) *PositionService {
	if locker == nil {
		locker = domainservice.NewKeyLocker()
	}
	return &PositionService{repo: repo, locker: locker}
}

// Apply 按交易方向更新持仓；卖出清仓时返回 nil
func (s *PositionService) Apply(ctx context.Context, rec *model.TradeRecord) (*model.Position, error) {
	switch rec.TradeType {
	case model.TradeBuy:
		return s.Buy(ctx, rec.UserID, rec.TsCode, rec.Quantity, rec.Price)
	case model.TradeSell:
		return s.Sell(ctx, rec.UserID, rec.TsCode, rec.Quantity)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnresolvableTradeType, rec.TradeType)
	}
}

// Buy 加仓，按加权平均重算成本
func (s *PositionService) Buy(ctx context.Context, userID int64, tsCode string, quantity int64, price decimal.Decimal) (*model.Position, error) {
	if err := domainservice.CheckBuy(quantity, price); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, LockKey("position", userID, tsCode))
	if err != nil {
		return nil, fmt.Errorf("acquire position lock: %w", err)
	}
	defer unlock()

	cur, err := s.load(ctx, userID, tsCode)
	if err != nil {
		return nil, err
	}

	next, err := domainservice.ApplyBuy(cur, quantity, price)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		next.UserID = userID
		next.TsCode = tsCode
		if err := s.repo.CreatePosition(ctx, next); err != nil {
			return nil, fmt.Errorf("create position: %w", err)
		}
	} else if err := s.repo.UpdatePosition(ctx, next); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Str("ts_code", tsCode).
		Int64("quantity", next.Quantity).
		Str("avg_price", next.AvgPrice.StringFixed(4)).
		Msg("position increased")
	return next, nil
}

// Sell 减仓；数量归零时删除持仓行
func (s *PositionService) Sell(ctx context.Context, userID int64, tsCode string, quantity int64) (*model.Position, error) {
	if err := domainservice.CheckSell(quantity); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, LockKey("position", userID, tsCode))
	if err != nil {
		return nil, fmt.Errorf("acquire position lock: %w", err)
	}
	defer unlock()

	cur, err := s.load(ctx, userID, tsCode)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("%w: user %d has no holding of %s", model.ErrNoPosition, userID, tsCode)
	}

	next, err := domainservice.ApplySell(cur, quantity)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err := s.repo.DeletePosition(ctx, cur.ID); err != nil {
			return nil, fmt.Errorf("delete position: %w", err)
		}
		log.Info().Int64("user_id", userID).Str("ts_code", tsCode).Msg("position closed")
		return nil, nil
	}

	if err := s.repo.UpdatePosition(ctx, next); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}
	log.Info().
		Int64("user_id", userID).
		Str("ts_code", tsCode).
		Int64("quantity", next.Quantity).
		Msg("position reduced")
	return next, nil
}

// GetPosition 不存在时返回 model.ErrNotFound
func (s *PositionService) GetPosition(ctx context.Context, userID int64, tsCode string) (*model.Position, error) {
	return s.repo.GetPosition(ctx, userID, tsCode)
}

func (s *PositionService) ListPositions(ctx context.Context, userID int64) ([]*model.Position, error) {
	return s.repo.ListPositions(ctx, userID)
}

func (s *PositionService) load(ctx context.Context, userID int64, tsCode string) (*model.Position, error) {
	cur, err := s.repo.GetPosition(ctx, userID, tsCode)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return cur, nil
}

// LockKey 锁的 key：<scope>:<user_id>:<ts_code>
func LockKey(scope string, userID int64, tsCode string) string {
	return fmt.Sprintf("%s:%d:%s", scope, userID, tsCode)
}
