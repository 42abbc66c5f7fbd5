package model

import "github.com/shopspring/decimal"

// Position is a pure function of the COMPLETE orders for one symbol plus the
// current LTP. It has no lifecycle of its own.
type Position struct {
	Symbol    string          `json:"symbol"`
	BuyQty    int64           `json:"buy_qty"`
	BuyValue  decimal.Decimal `json:"buy_value"`
	BuyAvg    decimal.Decimal `json:"buy_avg"`
	SellQty   int64           `json:"sell_qty"`
	SellValue decimal.Decimal `json:"sell_value"`
	SellAvg   decimal.Decimal `json:"sell_avg"`
	NetQty    int64           `json:"net_qty"`
	LTP       decimal.Decimal `json:"ltp"`
	MTM       decimal.Decimal `json:"mtm"`
	NetValue  decimal.Decimal `json:"net_value"`
}
