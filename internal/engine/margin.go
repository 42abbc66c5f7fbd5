package engine

import (
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

// Margin base rates for exposure-style trades. Option purchases are
// premium-based instead: the full premium is locked, no leverage.
var (
	indexMarginRate = decimal.NewFromFloat(0.17)
	stockMarginRate = decimal.NewFromFloat(0.23)

	intradayLeverage = decimal.NewFromInt(5)
)

// RequiredMargin computes the margin to lock for a position-opening trade.
// Buying an option costs the full premium; everything else (futures, option
// sales) locks notional times the base rate, divided by the intraday
// leverage when the product mode allows it.
func RequiredMargin(class types.InstrumentClass, side types.OrderSide, qty int64, price decimal.Decimal, product types.ProductMode) decimal.Decimal {
	notional := price.Mul(decimal.NewFromInt(qty))
	if class.Option() && side == types.OrderSideBuy {
		return notional
	}
	rate := stockMarginRate
	if class.Index() {
		rate = indexMarginRate
	}
	margin := notional.Mul(rate)
	if product == types.ProductIntraday {
		margin = margin.Div(intradayLeverage)
	}
	return margin
}
