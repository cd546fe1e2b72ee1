package service

import (
	"fmt"

	"tradeocr/internal/domain/model"
)

// AccountTag 委托的账户类别
type AccountTag string

const (
	AccountCollateral AccountTag = "collateral" // 担保品
	AccountMargin     AccountTag = "margin"     // 融资
	AccountNormal     AccountTag = "normal"     // 普通
)

// Classification 委托类型归一化结果
type Classification struct {
	TradeType model.TradeType
	Account   AccountTag
}

var classifications = map[model.OrderType]Classification{
	model.OrderCollateralBuy:  {model.TradeBuy, AccountCollateral},
	model.OrderMarginBuy:      {model.TradeBuy, AccountMargin},
	model.OrderNormalBuy:      {model.TradeBuy, AccountNormal},
	model.OrderCollateralSell: {model.TradeSell, AccountCollateral},
	model.OrderMarginSell:     {model.TradeSell, AccountMargin},
	model.OrderNormalSell:     {model.TradeSell, AccountNormal},
}

// ClassifyOrderType 把委托类型映射为买卖方向
func ClassifyOrderType(t model.OrderType) (Classification, error) {
	c, ok := classifications[t]
	if !ok {
		return Classification{}, fmt.Errorf("%w: %q", model.ErrUnresolvableTradeType, t)
	}
	return c, nil
}
