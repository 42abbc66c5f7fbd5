package positions

import (
	"sort"

	"paperprop/internal/model"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

// Recompute folds the COMPLETE subset of orders into per-symbol net
// positions marked against the current LTP. It is a pure function: calling
// it twice with the same inputs yields the same output, and it never mutates
// its arguments. Symbols with no tick mark at zero.
func Recompute(orders []model.Order, ticks map[string]model.Tick) []model.Position {
	bySymbol := make(map[string]*model.Position)
	for _, o := range orders {
		if o.Status != types.OrderStatusComplete {
			continue
		}
		pos, ok := bySymbol[o.Symbol]
		if !ok {
			pos = &model.Position{Symbol: o.Symbol}
			bySymbol[o.Symbol] = pos
		}
		value := o.Price.Mul(decimal.NewFromInt(o.Qty))
		if o.Side == types.OrderSideBuy {
			pos.BuyQty += o.Qty
			pos.BuyValue = pos.BuyValue.Add(value)
		} else {
			pos.SellQty += o.Qty
			pos.SellValue = pos.SellValue.Add(value)
		}
	}

	out := make([]model.Position, 0, len(bySymbol))
	for sym, pos := range bySymbol {
		if tick, ok := ticks[sym]; ok {
			pos.LTP = tick.LTP
		}
		pos.NetQty = pos.BuyQty - pos.SellQty
		if pos.BuyQty > 0 {
			pos.BuyAvg = pos.BuyValue.Div(decimal.NewFromInt(pos.BuyQty))
		}
		if pos.SellQty > 0 {
			pos.SellAvg = pos.SellValue.Div(decimal.NewFromInt(pos.SellQty))
		}
		net := decimal.NewFromInt(pos.NetQty)
		pos.NetValue = net.Mul(pos.LTP)
		// Realized and unrealized P&L fold into one figure by construction:
		// cash flow of completed trades plus the marked value of what is
		// still held.
		pos.MTM = pos.SellValue.Sub(pos.BuyValue).Add(pos.NetValue)
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TotalMTM sums mark-to-market across positions.
func TotalMTM(list []model.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range list {
		total = total.Add(p.MTM)
	}
	return total
}

// NetQty returns the net completed exposure for one symbol.
func NetQty(orders []model.Order, symbol string) int64 {
	var net int64
	for _, o := range orders {
		if o.Status != types.OrderStatusComplete || o.Symbol != symbol {
			continue
		}
		if o.Side == types.OrderSideBuy {
			net += o.Qty
		} else {
			net -= o.Qty
		}
	}
	return net
}
