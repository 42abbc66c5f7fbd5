package model

import (
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable contract on the watchlist. Volatility is the
// per-tick price budget used by the feed's random walk.
type Instrument struct {
	Symbol     string                `json:"symbol"`
	Underlying string                `json:"underlying"`
	Exchange   string                `json:"exchange"`
	Token      string                `json:"token"`
	Class      types.InstrumentClass `json:"class"`
	Expiry     string                `json:"expiry"`
	Strike     decimal.Decimal       `json:"strike"`
	BasePrice  float64               `json:"-"`
	PrevClose  float64               `json:"-"`
	Volatility float64               `json:"-"`
}

// Tick is an ephemeral quote for one instrument; replaced wholesale each
// feed cycle.
type Tick struct {
	Symbol    string          `json:"symbol"`
	LTP       decimal.Decimal `json:"ltp"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Change    decimal.Decimal `json:"change"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	BidQty    int64           `json:"bid_qty"`
	AskQty    int64           `json:"ask_qty"`
	At        int64           `json:"ts"`
}
