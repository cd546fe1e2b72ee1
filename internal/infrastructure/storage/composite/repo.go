package composite

import (
	"context"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Publisher 依次调用全部发布器，返回第一个错误
type Publisher struct {
	pubs []port.EventPublisher
}

func New(pubs ...port.EventPublisher) *Publisher {
	// nil publishers are allowed; filter in constructor
	out := make([]port.EventPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

func (p *Publisher) Len() int { return len(p.pubs) }

func (p *Publisher) PublishTradeSaved(ctx context.Context, rec *model.TradeRecord) error {
	var firstErr error
	for _, pub := range p.pubs {
		if err := pub.PublishTradeSaved(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.EventPublisher = (*Publisher)(nil)
