package feed

import (
	"math/rand"
	"testing"

	"paperprop/internal/model"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	a := NewGenerator(DefaultWatchlist(), rand.New(rand.NewSource(42)))
	b := NewGenerator(DefaultWatchlist(), rand.New(rand.NewSource(42)))

	for step := 0; step < 100; step++ {
		ta := a.Next()
		tb := b.Next()
		require.Len(t, tb, len(ta))
		for i := range ta {
			assert.Equal(t, ta[i].Symbol, tb[i].Symbol)
			assert.True(t, ta[i].LTP.Equal(tb[i].LTP), "step %d %s: %s != %s", step, ta[i].Symbol, ta[i].LTP, tb[i].LTP)
		}
	}
}

func TestGeneratorAlwaysEmitsFullWatchlist(t *testing.T) {
	watch := DefaultWatchlist()
	g := NewGenerator(watch, rand.New(rand.NewSource(1)))

	for step := 0; step < 10; step++ {
		snapshot := g.Next()
		require.Len(t, snapshot, len(watch))
		for i, tk := range snapshot {
			assert.Equal(t, watch[i].Symbol, tk.Symbol)
		}
	}
}

func TestGeneratorPriceNeverBelowFloor(t *testing.T) {
	// High volatility against a tiny base price forces the walk into the
	// floor over and over.
	instr := []model.Instrument{{
		Symbol:     "XPEN",
		Class:      types.InstrumentStockOption,
		BasePrice:  0.10,
		PrevClose:  5.00,
		Volatility: 2.0,
	}}
	g := NewGenerator(instr, rand.New(rand.NewSource(7)))

	floor := decimal.RequireFromString("0.05")
	for step := 0; step < 1000; step++ {
		tk := g.Next()[0]
		assert.True(t, tk.LTP.GreaterThanOrEqual(floor), "step %d: ltp %s", step, tk.LTP)
		assert.True(t, tk.Bid.GreaterThanOrEqual(floor), "step %d: bid %s", step, tk.Bid)
	}
}

func TestGeneratorQuoteShape(t *testing.T) {
	g := NewGenerator(DefaultWatchlist(), rand.New(rand.NewSource(3)))
	halfSpread := decimal.RequireFromString("0.05")

	for _, tk := range g.Next() {
		assert.True(t, tk.Ask.Equal(tk.LTP.Add(halfSpread)), "%s ask", tk.Symbol)
		if tk.LTP.GreaterThan(decimal.RequireFromString("0.10")) {
			assert.True(t, tk.Bid.Equal(tk.LTP.Sub(halfSpread)), "%s bid", tk.Symbol)
		}
		assert.Zero(t, tk.BidQty%25)
		assert.Zero(t, tk.AskQty%25)
		assert.Positive(t, tk.BidQty)
		assert.Positive(t, tk.AskQty)
	}
}
