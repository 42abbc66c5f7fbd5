package model

import "github.com/shopspring/decimal"

// Funds is one account's cash and margin view. Available is derived, never
// stored independently of its inputs.
type Funds struct {
	Opening       decimal.Decimal `json:"opening"`
	Payin         decimal.Decimal `json:"payin"`
	Payout        decimal.Decimal `json:"payout"`
	UsedMargin    decimal.Decimal `json:"used_margin"`
	RealizedMTM   decimal.Decimal `json:"realized_mtm"`
	UnrealizedMTM decimal.Decimal `json:"unrealized_mtm"`
}

func (f Funds) Available() decimal.Decimal {
	return f.Opening.Add(f.Payin).Sub(f.Payout).Sub(f.UsedMargin)
}

func DefaultFunds(opening decimal.Decimal) Funds {
	return Funds{Opening: opening}
}
