package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout 交易日期格式
const DateLayout = "2006-01-02"

// ========== OCR Models ==========

// OrderType 委托类型标签
type OrderType string

const (
	OrderCollateralBuy  OrderType = "collateral_buy"  // 担保品买入
	OrderCollateralSell OrderType = "collateral_sell" // 担保品卖出
	OrderMarginBuy      OrderType = "margin_buy"      // 融资买入
	OrderMarginSell     OrderType = "margin_sell"     // 融资卖出
	OrderNormalBuy      OrderType = "normal_buy"      // 普通买入
	OrderNormalSell     OrderType = "normal_sell"     // 普通卖出
	OrderUnknown        OrderType = "unknown"
)

// Fill 截图中的一行 "价格 数量 文本"
type Fill struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Text     string          `json:"text"`
}

// RawTransaction 解析器输出的候选交易
// Order 为委托行，Execution 为成交行；nil 表示该行未识别到
type RawTransaction struct {
	StockName string    `json:"stock_name"`
	OrderTime string    `json:"order_time"`
	Order     *Fill     `json:"order,omitempty"`
	Execution *Fill     `json:"execution,omitempty"`
	OrderType OrderType `json:"order_type"`
}

// Status 成交行上的状态文本（已成/部撤/撤单）
func (t *RawTransaction) Status() string {
	if t.Execution == nil {
		return ""
	}
	return t.Execution.Text
}

// ========== Ledger Models ==========

// TradeType 买卖方向
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// TradeRecord 用户交易流水
type TradeRecord struct {
	ID         int64               `json:"id"`
	UserID     int64               `json:"user_id"`
	TsCode     string              `json:"ts_code"`
	TradeType  TradeType           `json:"trade_type"`
	Quantity   int64               `json:"quantity"`
	Price      decimal.Decimal     `json:"price"`
	TradeDate  time.Time           `json:"trade_date"`
	ProfitLoss decimal.NullDecimal `json:"profit_loss"` // 仅卖出
	Note       string              `json:"note,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// PriceScale 流水价格与盈亏的小数位，与库表 NUMERIC(12,4) 一致
const PriceScale int32 = 4

// TradeKey 幂等键：同一键的交易只入库一次
type TradeKey struct {
	UserID    int64
	TsCode    string
	TradeDate time.Time
	Price     decimal.Decimal
	Quantity  int64
	TradeType TradeType
}

// Key 返回记录的幂等键
func (r *TradeRecord) Key() TradeKey {
	return TradeKey{
		UserID:    r.UserID,
		TsCode:    r.TsCode,
		TradeDate: r.TradeDate,
		Price:     r.Price,
		Quantity:  r.Quantity,
		TradeType: r.TradeType,
	}
}

// Position 用户持仓，入库的行 Quantity 恒大于 0
type Position struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	TsCode    string          `json:"ts_code"`
	Quantity  int64           `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stock 股票基础信息（名称 -> 代码）
type Stock struct {
	TsCode string `json:"ts_code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ParseTradeDate 解析 YYYY-MM-DD，空串返回 now 所在日期
func ParseTradeDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(DateLayout, s)
}
