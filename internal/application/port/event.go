package port

import (
	"context"

	"tradeocr/internal/domain/model"
)

// EventPublisher 交易入库事件
type EventPublisher interface {
	PublishTradeSaved(ctx context.Context, rec *model.TradeRecord) error
}

// NoopPublisher 不发布任何事件
type NoopPublisher struct{}

func (NoopPublisher) PublishTradeSaved(context.Context, *model.TradeRecord) error { return nil }
