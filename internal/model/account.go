package model

import "github.com/shopspring/decimal"

// EventEntry is one line of the account's notification log.
type EventEntry struct {
	Time string `json:"time"`
	Msg  string `json:"msg"`
}

// ExposureEntry is the per-symbol locked-margin ledger: how much margin is
// currently locked against a symbol and for how many units. The ratio gives
// the per-unit rate used when an opposing order or a square-off releases
// margin.
type ExposureEntry struct {
	Locked decimal.Decimal `json:"locked"`
	Qty    int64           `json:"qty"`
}

// AccountState is the whole persisted document for one account. It is
// idempotently overwritten on every save, so at-least-once delivery is fine.
type AccountState struct {
	Funds    Funds                    `json:"funds"`
	Orders   []Order                  `json:"orders"`
	Events   []EventEntry             `json:"events"`
	Exposure map[string]ExposureEntry `json:"exposure"`
}
