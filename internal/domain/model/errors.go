package model

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")

	// ErrImageUnreadable 图片无法读取或解码
	ErrImageUnreadable = errors.New("image unreadable")

	// ErrRecognitionFailure 文字识别失败或超时
	ErrRecognitionFailure = errors.New("text recognition failed")

	// ErrInvalidTransaction 交易缺少必要字段或数值非正
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrUnresolvableStock 股票名称无法映射到代码
	ErrUnresolvableStock = errors.New("unresolvable stock")

	// ErrUnresolvableTradeType 委托类型无法映射到买卖方向
	ErrUnresolvableTradeType = errors.New("unresolvable trade type")

	// ErrInsufficientPosition 卖出数量超过持仓
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrNoPosition 卖出时没有持仓记录
	ErrNoPosition = errors.New("no position")

	// ErrUnsupportedFormat 不支持的图片格式
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
