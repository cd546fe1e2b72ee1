package service

import (
	"fmt"

	"tradeocr/internal/domain/model"
)

// ValidateTransaction 检查必要字段：股票名称、委托时间、委托价格 > 0、委托数量 > 0
func ValidateTransaction(tx *model.RawTransaction) error {
	switch {
	case tx == nil:
		return fmt.Errorf("%w: nil transaction", model.ErrInvalidTransaction)
	case tx.StockName == "":
		return fmt.Errorf("%w: missing stock_name", model.ErrInvalidTransaction)
	case tx.OrderTime == "":
		return fmt.Errorf("%w: missing order_time", model.ErrInvalidTransaction)
	case tx.Order == nil:
		return fmt.Errorf("%w: missing order_price", model.ErrInvalidTransaction)
	case !tx.Order.Price.IsPositive():
		return fmt.Errorf("%w: order_price %s not positive", model.ErrInvalidTransaction, tx.Order.Price)
	case tx.Order.Quantity <= 0:
		return fmt.Errorf("%w: order_quantity %d not positive", model.ErrInvalidTransaction, tx.Order.Quantity)
	}
	return nil
}
