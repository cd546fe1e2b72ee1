package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tradeocr/internal/domain/model"
)

// mockStore 内存版仓储
type mockStore struct {
	mu        sync.Mutex
	nextID    int64
	trades    []*model.TradeRecord
	positions map[string]*model.Position
	stocks    map[string]string // name -> ts_code

	failCreateTrade error
}

func newMockStore() *mockStore {
	return &mockStore{
		positions: make(map[string]*model.Position),
		stocks:    make(map[string]string),
	}
}

func posKey(userID int64, tsCode string) string { return LockKey("pos", userID, tsCode) }

func (m *mockStore) CreateTrade(ctx context.Context, rec *model.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateTrade != nil {
		return m.failCreateTrade
	}
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	// 与 NUMERIC(12,4) 列一样按精度存储
	cp.Price = rec.Price.Round(model.PriceScale)
	m.trades = append(m.trades, &cp)
	return nil
}

func (m *mockStore) FindTrade(ctx context.Context, key model.TradeKey) (*model.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.UserID == key.UserID && t.TsCode == key.TsCode && t.TradeDate.Equal(key.TradeDate) &&
			t.Price.Equal(key.Price) && t.Quantity == key.Quantity && t.TradeType == key.TradeType {
			cp := *t
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *mockStore) LatestBuy(ctx context.Context, userID int64, tsCode string) (*model.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.TradeRecord
	for _, t := range m.trades {
		if t.UserID != userID || t.TsCode != tsCode || t.TradeType != model.TradeBuy {
			continue
		}
		if best == nil || t.TradeDate.After(best.TradeDate) ||
			(t.TradeDate.Equal(best.TradeDate) && t.ID > best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, model.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockStore) ListTrades(ctx context.Context, userID int64, tsCode string) ([]*model.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.TradeRecord{}
	for _, t := range m.trades {
		if t.UserID == userID && (tsCode == "" || t.TsCode == tsCode) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) GetPosition(ctx context.Context, userID int64, tsCode string) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[posKey(userID, tsCode)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) CreatePosition(ctx context.Context, pos *model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	pos.ID = m.nextID
	cp := *pos
	m.positions[posKey(pos.UserID, pos.TsCode)] = &cp
	return nil
}

func (m *mockStore) UpdatePosition(ctx context.Context, pos *model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pos
	m.positions[posKey(pos.UserID, pos.TsCode)] = &cp
	return nil
}

func (m *mockStore) DeletePosition(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.positions {
		if p.ID == id {
			delete(m.positions, k)
		}
	}
	return nil
}

func (m *mockStore) ListPositions(ctx context.Context, userID int64) ([]*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Position{}
	for _, p := range m.positions {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsCode < out[j].TsCode })
	return out, nil
}

func (m *mockStore) FindExact(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, ok := m.stocks[name]; ok {
		return code, nil
	}
	return "", model.ErrNotFound
}

func (m *mockStore) FindContaining(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stocks))
	for n := range m.stocks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if strings.Contains(n, name) {
			return m.stocks[n], nil
		}
	}
	return "", model.ErrNotFound
}
