package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeocr/internal/domain/model"
)

// CheckBuy 买入数量与价格必须为正
func CheckBuy(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: buy quantity %d", model.ErrInvalidTransaction, quantity)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: buy price %s", model.ErrInvalidTransaction, price)
	}
	return nil
}

// CheckTrade 待入库流水的数量与价格必须为正
func CheckTrade(rec *model.TradeRecord) error {
	if rec.Quantity <= 0 || !rec.Price.IsPositive() {
		return fmt.Errorf("%w: %s %s x %d", model.ErrInvalidTransaction, rec.TradeType, rec.Price, rec.Quantity)
	}
	return nil
}

// CheckSell 卖出数量必须为正
func CheckSell(quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: sell quantity %d", model.ErrInvalidTransaction, quantity)
	}
	return nil
}

// ApplyBuy 买入后的持仓：加权平均成本
// pos 为 nil 表示尚无持仓，返回新建的持仓（未入库）
func ApplyBuy(pos *model.Position, quantity int64, price decimal.Decimal) (*model.Position, error) {
	if err := CheckBuy(quantity, price); err != nil {
		return nil, err
	}
	if pos == nil {
		return &model.Position{Quantity: quantity, AvgPrice: price}, nil
	}

	oldQty := decimal.NewFromInt(pos.Quantity)
	addQty := decimal.NewFromInt(quantity)
	newQty := pos.Quantity + quantity

	totalCost := oldQty.Mul(pos.AvgPrice).Add(addQty.Mul(price))

	next := *pos
	next.Quantity = newQty
	next.AvgPrice = totalCost.Div(decimal.NewFromInt(newQty))
	return &next, nil
}

// ApplySell 卖出后的持仓，返回 nil 表示持仓清空需删除
func ApplySell(pos *model.Position, quantity int64) (*model.Position, error) {
	if err := CheckSell(quantity); err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, model.ErrNoPosition
	}
	if pos.Quantity < quantity {
		return nil, fmt.Errorf("%w: sell %d exceeds holding %d of %s",
			model.ErrInsufficientPosition, quantity, pos.Quantity, pos.TsCode)
	}

	next := *pos
	next.Quantity -= quantity
	if next.Quantity == 0 {
		return nil, nil
	}
	return &next, nil
}

// ProfitLoss 卖出盈亏 = 卖出金额 - 最近一笔买入金额，保留 4 位小数
// 按最近一笔买入记录整笔计算，不做分批成本摊分
func ProfitLoss(sellPrice decimal.Decimal, sellQty int64, buy *model.TradeRecord) decimal.NullDecimal {
	if buy == nil || !buy.Price.IsPositive() || !sellPrice.IsPositive() {
		return decimal.NullDecimal{}
	}
	sellAmount := sellPrice.Mul(decimal.NewFromInt(sellQty))
	buyAmount := buy.Price.Mul(decimal.NewFromInt(buy.Quantity))
	return decimal.NewNullDecimal(sellAmount.Sub(buyAmount).Round(model.PriceScale))
}
