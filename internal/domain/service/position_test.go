package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradeocr/internal/domain/model"
)

// TestApplyBuyWeightedAverage 两次买入的加权平均成本
func TestApplyBuyWeightedAverage(t *testing.T) {
	p1 := decimal.RequireFromString("10.50")
	p2 := decimal.RequireFromString("12.25")

	pos, err := ApplyBuy(nil, 300, p1)
	if err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if pos.Quantity != 300 || !pos.AvgPrice.Equal(p1) {
		t.Fatalf("first buy mismatch: %+v", pos)
	}

	pos, err = ApplyBuy(pos, 700, p2)
	if err != nil {
		t.Fatalf("second buy failed: %v", err)
	}
	if pos.Quantity != 1000 {
		t.Fatalf("expected quantity 1000, got %d", pos.Quantity)
	}

	want := (300*10.50 + 700*12.25) / 1000
	got := pos.AvgPrice.InexactFloat64()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg price mismatch: expected %.10f, got %.10f", want, got)
	}
}

func TestApplyBuyDoesNotMutateInput(t *testing.T) {
	orig := &model.Position{TsCode: "300558.SZ", Quantity: 100, AvgPrice: decimal.NewFromInt(10)}
	_, _ = ApplyBuy(orig, 100, decimal.NewFromInt(20))
	if orig.Quantity != 100 || !orig.AvgPrice.Equal(decimal.NewFromInt(10)) {
		t.Errorf("input position mutated: %+v", orig)
	}
}

func TestApplySell(t *testing.T) {
	pos := &model.Position{TsCode: "300558.SZ", Quantity: 500, AvgPrice: decimal.NewFromInt(10)}

	next, err := ApplySell(pos, 200)
	if err != nil {
		t.Fatalf("partial sell failed: %v", err)
	}
	if next.Quantity != 300 || !next.AvgPrice.Equal(pos.AvgPrice) {
		t.Errorf("partial sell mismatch: %+v", next)
	}

	next, err = ApplySell(pos, 500)
	if err != nil {
		t.Fatalf("full sell failed: %v", err)
	}
	if next != nil {
		t.Errorf("full sell should delete position, got %+v", next)
	}

	if _, err := ApplySell(pos, 501); !errors.Is(err, model.ErrInsufficientPosition) {
		t.Errorf("expected ErrInsufficientPosition, got %v", err)
	}
	if pos.Quantity != 500 {
		t.Errorf("oversell mutated position: %+v", pos)
	}

	if _, err := ApplySell(nil, 1); !errors.Is(err, model.ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
}

// TestApplyRejectsNonPositive 数量或价格非正时拒绝，且不触发除零
func TestApplyRejectsNonPositive(t *testing.T) {
	held := &model.Position{TsCode: "300558.SZ", Quantity: 100, AvgPrice: decimal.NewFromInt(10)}

	buys := []struct {
		name  string
		qty   int64
		price decimal.Decimal
	}{
		{"zero quantity", 0, decimal.NewFromInt(10)},
		{"negative quantity cancels holding", -100, decimal.NewFromInt(10)},
		{"zero price", 100, decimal.Zero},
		{"negative price", 100, decimal.NewFromInt(-1)},
	}
	for _, tc := range buys {
		t.Run("buy "+tc.name, func(t *testing.T) {
			if _, err := ApplyBuy(held, tc.qty, tc.price); !errors.Is(err, model.ErrInvalidTransaction) {
				t.Errorf("expected ErrInvalidTransaction, got %v", err)
			}
			if _, err := ApplyBuy(nil, tc.qty, tc.price); !errors.Is(err, model.ErrInvalidTransaction) {
				t.Errorf("expected ErrInvalidTransaction for new position, got %v", err)
			}
		})
	}

	for _, qty := range []int64{0, -50} {
		if _, err := ApplySell(held, qty); !errors.Is(err, model.ErrInvalidTransaction) {
			t.Errorf("sell %d: expected ErrInvalidTransaction, got %v", qty, err)
		}
	}
	if held.Quantity != 100 {
		t.Errorf("rejected trades mutated position: %+v", held)
	}
}

func TestProfitLoss(t *testing.T) {
	buy := &model.TradeRecord{Price: decimal.RequireFromString("68.75"), Quantity: 5600}

	pl := ProfitLoss(decimal.RequireFromString("70.00"), 5600, buy)
	if !pl.Valid {
		t.Fatal("profit loss should be set")
	}
	// 70*5600 - 68.75*5600 = 7000
	if !pl.Decimal.Equal(decimal.NewFromInt(7000)) {
		t.Errorf("expected 7000, got %s", pl.Decimal)
	}

	// 使用买入记录自身数量，不按卖出数量摊分
	pl = ProfitLoss(decimal.RequireFromString("70.00"), 1000, buy)
	want := decimal.RequireFromString("-315000")
	if !pl.Decimal.Equal(want) {
		t.Errorf("expected %s, got %s", want, pl.Decimal)
	}

	if pl := ProfitLoss(decimal.NewFromInt(1), 1, nil); pl.Valid {
		t.Errorf("no buy record should yield absent profit loss")
	}
}
