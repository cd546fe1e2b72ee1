package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeocr/internal/domain/model"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(s string) time.Time {
	d, _ := time.Parse(model.DateLayout, s)
	return d
}

func TestSQLiteRepoCreateAndFindTrade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &model.TradeRecord{
		UserID:    1,
		TsCode:    "300558.SZ",
		TradeType: model.TradeBuy,
		Quantity:  5600,
		Price:     decimal.RequireFromString("68.7500"),
		TradeDate: day("2025-03-14"),
		Note:      "OCR识别 - 贝达药业 collateral_buy 已成",
	}
	if err := repo.CreateTrade(ctx, rec); err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected ID to be assigned")
	}

	// 68.75 与 68.7500 为同一幂等键
	key := rec.Key()
	key.Price = decimal.RequireFromString("68.75")
	got, err := repo.FindTrade(ctx, key)
	if err != nil {
		t.Fatalf("FindTrade failed: %v", err)
	}
	if got.ID != rec.ID || got.Quantity != 5600 || !got.TradeDate.Equal(day("2025-03-14")) {
		t.Errorf("unexpected trade: %+v", got)
	}
	if got.ProfitLoss.Valid {
		t.Errorf("buy should have empty profit_loss")
	}

	key.Quantity = 5601
	if _, err := repo.FindTrade(ctx, key); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRepoLatestBuy(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestBuy(ctx, 1, "300007.SZ"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	trades := []*model.TradeRecord{
		{UserID: 1, TsCode: "300007.SZ", TradeType: model.TradeBuy, Quantity: 100, Price: decimal.NewFromInt(20), TradeDate: day("2025-03-10")},
		{UserID: 1, TsCode: "300007.SZ", TradeType: model.TradeBuy, Quantity: 200, Price: decimal.NewFromInt(21), TradeDate: day("2025-03-12")},
		{UserID: 1, TsCode: "300007.SZ", TradeType: model.TradeBuy, Quantity: 300, Price: decimal.NewFromInt(22), TradeDate: day("2025-03-12")},
		{UserID: 1, TsCode: "300007.SZ", TradeType: model.TradeSell, Quantity: 50, Price: decimal.NewFromInt(25), TradeDate: day("2025-03-13"),
			ProfitLoss: decimal.NewNullDecimal(decimal.RequireFromString("-5350.0000"))},
	}
	for _, tr := range trades {
		if err := repo.CreateTrade(ctx, tr); err != nil {
			t.Fatalf("CreateTrade failed: %v", err)
		}
	}

	got, err := repo.LatestBuy(ctx, 1, "300007.SZ")
	if err != nil {
		t.Fatalf("LatestBuy failed: %v", err)
	}
	if got.ID != trades[2].ID {
		t.Errorf("expected trade %d (same date, higher id), got %d", trades[2].ID, got.ID)
	}

	all, err := repo.ListTrades(ctx, 1, "")
	if err != nil {
		t.Fatalf("ListTrades failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 trades, got %d", len(all))
	}
	if !all[0].ProfitLoss.Valid || !all[0].ProfitLoss.Decimal.Equal(decimal.NewFromInt(-5350)) {
		t.Errorf("expected sell with profit_loss first, got %+v", all[0])
	}
}

func TestSQLiteRepoPositionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pos := &model.Position{UserID: 1, TsCode: "300454.SZ", Quantity: 100, AvgPrice: decimal.RequireFromString("80.5")}
	if err := repo.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("CreatePosition failed: %v", err)
	}

	pos.Quantity = 300
	pos.AvgPrice = decimal.RequireFromString("82.1666666666666667")
	if err := repo.UpdatePosition(ctx, pos); err != nil {
		t.Fatalf("UpdatePosition failed: %v", err)
	}

	got, err := repo.GetPosition(ctx, 1, "300454.SZ")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if got.Quantity != 300 || !got.AvgPrice.Equal(pos.AvgPrice) {
		t.Errorf("unexpected position: %+v", got)
	}

	list, err := repo.ListPositions(ctx, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListPositions: %v, len=%d", err, len(list))
	}

	if err := repo.DeletePosition(ctx, pos.ID); err != nil {
		t.Fatalf("DeletePosition failed: %v", err)
	}
	if _, err := repo.GetPosition(ctx, 1, "300454.SZ"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeletePosition(ctx, pos.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSQLiteRepoStockDirectory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stocks := []*model.Stock{
		{TsCode: "600519.SH", Symbol: "600519", Name: "贵州茅台"},
		{TsCode: "300750.SZ", Symbol: "300750", Name: "宁德时代"},
	}
	for _, s := range stocks {
		if err := repo.UpsertStock(ctx, s); err != nil {
			t.Fatalf("UpsertStock failed: %v", err)
		}
	}

	if code, err := repo.FindExact(ctx, "贵州茅台"); err != nil || code != "600519.SH" {
		t.Errorf("FindExact = %s, %v", code, err)
	}
	if code, err := repo.FindContaining(ctx, "茅台"); err != nil || code != "600519.SH" {
		t.Errorf("FindContaining = %s, %v", code, err)
	}
	if _, err := repo.FindExact(ctx, "茅台"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// upsert 覆盖名称
	if err := repo.UpsertStock(ctx, &model.Stock{TsCode: "300750.SZ", Symbol: "300750", Name: "宁德时代新能源"}); err != nil {
		t.Fatalf("UpsertStock failed: %v", err)
	}
	if code, err := repo.FindExact(ctx, "宁德时代新能源"); err != nil || code != "300750.SZ" {
		t.Errorf("FindExact after upsert = %s, %v", code, err)
	}
}
