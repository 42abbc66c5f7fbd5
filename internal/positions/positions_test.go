package positions

import (
	"testing"

	"paperprop/internal/model"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(symbol string, side types.OrderSide, qty int64, price string, status types.OrderStatus) model.Order {
	return model.Order{
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  decimal.RequireFromString(price),
		Status: status,
	}
}

func TestRecomputeFoldsCompletedOrders(t *testing.T) {
	orders := []model.Order{
		order("XFUT", types.OrderSideBuy, 50, "100", types.OrderStatusComplete),
		order("XFUT", types.OrderSideSell, 20, "110", types.OrderStatusComplete),
		order("XFUT", types.OrderSideBuy, 999, "90", types.OrderStatusOpen),
		order("XFUT", types.OrderSideBuy, 999, "90", types.OrderStatusCancelled),
	}
	ticks := map[string]model.Tick{
		"XFUT": {Symbol: "XFUT", LTP: decimal.RequireFromString("105")},
	}

	out := Recompute(orders, ticks)
	require.Len(t, out, 1)
	p := out[0]
	assert.Equal(t, int64(50), p.BuyQty)
	assert.Equal(t, int64(20), p.SellQty)
	assert.Equal(t, int64(30), p.NetQty)
	assert.Equal(t, "100", p.BuyAvg.String())
	assert.Equal(t, "110", p.SellAvg.String())
	// 2200 - 5000 + 30*105
	assert.Equal(t, "350", p.MTM.String())
}

func TestRecomputeFlatPositionIsPureCashFlow(t *testing.T) {
	orders := []model.Order{
		order("XFUT", types.OrderSideBuy, 50, "100", types.OrderStatusComplete),
		order("XFUT", types.OrderSideSell, 50, "103", types.OrderStatusComplete),
	}
	ticks := map[string]model.Tick{
		"XFUT": {Symbol: "XFUT", LTP: decimal.RequireFromString("97")},
	}

	out := Recompute(orders, ticks)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].NetQty)
	// LTP moves must not change a closed position's P&L.
	assert.Equal(t, "150", out[0].MTM.String())
}

func TestRecomputeSortsBySymbol(t *testing.T) {
	orders := []model.Order{
		order("ZFUT", types.OrderSideBuy, 10, "100", types.OrderStatusComplete),
		order("AFUT", types.OrderSideBuy, 10, "100", types.OrderStatusComplete),
	}

	out := Recompute(orders, nil)
	require.Len(t, out, 2)
	assert.Equal(t, "AFUT", out[0].Symbol)
	assert.Equal(t, "ZFUT", out[1].Symbol)
}

func TestNetQty(t *testing.T) {
	orders := []model.Order{
		order("XFUT", types.OrderSideBuy, 50, "100", types.OrderStatusComplete),
		order("XFUT", types.OrderSideSell, 80, "100", types.OrderStatusComplete),
		order("XFUT", types.OrderSideBuy, 999, "100", types.OrderStatusOpen),
		order("YFUT", types.OrderSideBuy, 10, "100", types.OrderStatusComplete),
	}

	assert.Equal(t, int64(-30), NetQty(orders, "XFUT"))
	assert.Equal(t, int64(10), NetQty(orders, "YFUT"))
	assert.Equal(t, int64(0), NetQty(orders, "ZFUT"))
}

func TestTotalMTM(t *testing.T) {
	list := []model.Position{
		{MTM: decimal.RequireFromString("150")},
		{MTM: decimal.RequireFromString("-90")},
	}
	assert.Equal(t, "60", TotalMTM(list).String())
}
