package port

import (
	"context"

	"tradeocr/internal/domain/model"
)

// TradeRepository 交易流水仓储
type TradeRepository interface {
	// CreateTrade 插入记录并回填 ID
	CreateTrade(ctx context.Context, rec *model.TradeRecord) error
	// FindTrade 按幂等键查找，不存在返回 model.ErrNotFound
	FindTrade(ctx context.Context, key model.TradeKey) (*model.TradeRecord, error)
	// LatestBuy 最近一笔买入（trade_date desc, id desc），不存在返回 model.ErrNotFound
	LatestBuy(ctx context.Context, userID int64, tsCode string) (*model.TradeRecord, error)
	// ListTrades tsCode 为空时返回用户全部流水
	ListTrades(ctx context.Context, userID int64, tsCode string) ([]*model.TradeRecord, error)
}

// PositionRepository 持仓仓储
type PositionRepository interface {
	// GetPosition 不存在返回 model.ErrNotFound
	GetPosition(ctx context.Context, userID int64, tsCode string) (*model.Position, error)
	CreatePosition(ctx context.Context, pos *model.Position) error
	UpdatePosition(ctx context.Context, pos *model.Position) error
	DeletePosition(ctx context.Context, id int64) error
	ListPositions(ctx context.Context, userID int64) ([]*model.Position, error)
}

// StockDirectory 股票名称 -> 代码，未命中返回 model.ErrNotFound
type StockDirectory interface {
	FindExact(ctx context.Context, name string) (string, error)
	FindContaining(ctx context.Context, name string) (string, error)
}

// StockWriter 维护股票基础信息
type StockWriter interface {
	UpsertStock(ctx context.Context, s *model.Stock) error
}

// Store 一个后端同时提供的全部仓储
type Store interface {
	TradeRepository
	PositionRepository
	StockDirectory
	StockWriter
	Close() error
}
