package order

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOutTradeNo = errors.New("out_trade_no is required")
)
