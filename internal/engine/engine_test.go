package engine

import (
	"context"
	"testing"
	"time"

	"paperprop/internal/model"
	"paperprop/internal/store"
	"paperprop/internal/stream"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	futSymbol = "XFUT"
	optSymbol = "XOPT"
)

func testInstruments() map[string]model.Instrument {
	return map[string]model.Instrument{
		futSymbol: {Symbol: futSymbol, Class: types.InstrumentIndexFuture},
		optSymbol: {Symbol: optSymbol, Class: types.InstrumentIndexOption},
	}
}

func newTestEngine(t *testing.T, opening string) (*Engine, chan []model.Tick) {
	t.Helper()
	ticks := make(chan []model.Tick)
	state := model.AccountState{Funds: model.DefaultFunds(decimal.RequireFromString(opening))}
	e := New(Config{
		AccountID:   "acc-1",
		StaleAfter:  time.Hour,
		Instruments: testInstruments(),
	}, state, ticks, stream.NewBus(), store.NewMemory(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	return e, ticks
}

func tickAt(symbol string, price float64) model.Tick {
	return model.Tick{Symbol: symbol, LTP: decimal.NewFromFloat(price), At: time.Now().UnixMilli()}
}

func snapOf(t *testing.T, e *Engine) AccountSnapshot {
	t.Helper()
	s, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

// pushTick delivers a snapshot and waits until the engine has absorbed it,
// observed through the marked LTP of the symbol.
func pushTick(t *testing.T, e *Engine, ticks chan []model.Tick, tk model.Tick) {
	t.Helper()
	ticks <- []model.Tick{tk}
	require.Eventually(t, func() bool {
		s, err := e.Snapshot(context.Background())
		if err != nil || s.Stale {
			return false
		}
		for _, p := range s.Positions {
			if p.Symbol == tk.Symbol {
				return p.LTP.Equal(tk.LTP)
			}
		}
		// No position on the symbol yet: staleness clearing is the only
		// observable effect.
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

// orderStatusIs builds an Eventually condition on the newest order's status.
func orderStatusIs(e *Engine, status types.OrderStatus) func() bool {
	return func() bool {
		s, err := e.Snapshot(context.Background())
		return err == nil && len(s.Orders) > 0 && s.Orders[0].Status == status
	}
}

func TestPlaceLimitOrderLocksMargin(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusOpen, res.Order.Status)
	requireDecimal(t, "850", res.Order.MarginLocked)
	requireDecimal(t, "850", res.Funds.UsedMargin)
	requireDecimal(t, "99150", res.Funds.Available)
}

func TestPlacementRejectedOnInsufficientMargin(t *testing.T) {
	e, _ := newTestEngine(t, "100")

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.ErrorIs(t, err, ErrInsufficientMargin)

	s := snapOf(t, e)
	assert.Empty(t, s.Orders)
	requireDecimal(t, "0", s.Funds.UsedMargin)
}

func TestLimitOrderFillsAtCrossingPrice(t *testing.T) {
	e, ticks := newTestEngine(t, "100000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	ticks <- []model.Tick{tickAt(futSymbol, 99)}
	require.Eventually(t, orderStatusIs(e, types.OrderStatusComplete), 2*time.Second, 5*time.Millisecond)

	s := snapOf(t, e)
	require.Equal(t, res.Order.ID, s.Orders[0].ID)
	requireDecimal(t, "99", s.Orders[0].Price)
	// Margin stays locked at the price the order was accepted at.
	requireDecimal(t, "850", s.Funds.UsedMargin)
}

func TestOppositeFillReleasesLockedMargin(t *testing.T) {
	e, ticks := newTestEngine(t, "100000")

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	ticks <- []model.Tick{tickAt(futSymbol, 99)}
	require.Eventually(t, orderStatusIs(e, types.OrderStatusComplete), 2*time.Second, 5*time.Millisecond)

	pushTick(t, e, ticks, tickAt(futSymbol, 102))

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideSell,
		Qty:     50,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusComplete, res.Order.Status)
	requireDecimal(t, "102", res.Order.Price)
	// The round trip fully covers the long, so every rupee locked for it
	// comes back.
	requireDecimal(t, "0", res.Order.MarginLocked)
	requireDecimal(t, "0", res.Funds.UsedMargin)
	requireDecimal(t, "150", res.Funds.RealizedMTM)
	requireDecimal(t, "0", res.Funds.UnrealizedMTM)
}

func TestStopMarketTriggersExactlyOnce(t *testing.T) {
	e, ticks := newTestEngine(t, "1000000")

	pushTick(t, e, ticks, tickAt(futSymbol, 100))

	trig := decimal.NewFromInt(105)
	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:    futSymbol,
		Side:      types.OrderSideBuy,
		Qty:       10,
		TrigPrice: &trig,
		Kind:      types.OrderKindStopMarket,
		Product:   types.ProductCarry,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusTriggerPending, res.Order.Status)

	// Below the trigger: nothing happens.
	pushTick(t, e, ticks, tickAt(futSymbol, 104.9))
	assert.Equal(t, types.OrderStatusTriggerPending, snapOf(t, e).Orders[0].Status)

	ticks <- []model.Tick{tickAt(futSymbol, 106)}
	require.Eventually(t, orderStatusIs(e, types.OrderStatusComplete), 2*time.Second, 5*time.Millisecond)
	requireDecimal(t, "106", snapOf(t, e).Orders[0].Price)

	// Later ticks must not re-fire the trigger or move the fill price.
	pushTick(t, e, ticks, tickAt(futSymbol, 107))
	s := snapOf(t, e)
	require.Len(t, s.Orders, 1)
	requireDecimal(t, "106", s.Orders[0].Price)
}

func TestStopLimitBecomesOpenBeforeFilling(t *testing.T) {
	e, ticks := newTestEngine(t, "1000000")

	pushTick(t, e, ticks, tickAt(futSymbol, 100))

	trig := decimal.NewFromInt(105)
	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:    futSymbol,
		Side:      types.OrderSideBuy,
		Qty:       10,
		Price:     decimal.NewFromInt(110),
		TrigPrice: &trig,
		Kind:      types.OrderKindStopLimit,
		Product:   types.ProductCarry,
	})
	require.NoError(t, err)

	// The triggering tick converts the order but must not fill it on the
	// same snapshot, even though 106 is under the 110 limit.
	ticks <- []model.Tick{tickAt(futSymbol, 106)}
	require.Eventually(t, orderStatusIs(e, types.OrderStatusOpen), 2*time.Second, 5*time.Millisecond)

	ticks <- []model.Tick{tickAt(futSymbol, 107)}
	require.Eventually(t, orderStatusIs(e, types.OrderStatusComplete), 2*time.Second, 5*time.Millisecond)
	requireDecimal(t, "107", snapOf(t, e).Orders[0].Price)
}

func TestCancelRefundsMarginExactlyOnce(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)
	requireDecimal(t, "850", res.Funds.UsedMargin)

	cancelled, err := e.CancelOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Order.Status)
	requireDecimal(t, "0", cancelled.Funds.UsedMargin)

	_, err = e.CancelOrder(context.Background(), res.Order.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	requireDecimal(t, "0", snapOf(t, e).Funds.UsedMargin)
}

func TestCancelUnknownOrder(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	_, err := e.CancelOrder(context.Background(), "no-such-order")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestModifyRepricesMargin(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	modified, err := e.ModifyOrder(context.Background(), res.Order.ID, ModifyRequest{
		Qty:   100,
		Price: decimal.NewFromInt(100),
		Kind:  types.OrderKindLimit,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), modified.Order.Qty)
	requireDecimal(t, "1700", modified.Order.MarginLocked)
	requireDecimal(t, "1700", modified.Funds.UsedMargin)
}

func TestModifyInsufficientMarginLeavesOrderUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, "1000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	_, err = e.ModifyOrder(context.Background(), res.Order.ID, ModifyRequest{
		Qty:   500,
		Price: decimal.NewFromInt(100),
		Kind:  types.OrderKindLimit,
	})
	require.ErrorIs(t, err, ErrInsufficientMargin)

	s := snapOf(t, e)
	assert.Equal(t, int64(50), s.Orders[0].Qty)
	requireDecimal(t, "850", s.Orders[0].MarginLocked)
	requireDecimal(t, "850", s.Funds.UsedMargin)
}

func TestMarketOrderRejectedWithoutFreshPrice(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     10,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOptionBuyLocksFullPremium(t *testing.T) {
	e, _ := newTestEngine(t, "100000")

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  optSymbol,
		Side:    types.OrderSideBuy,
		Qty:     75,
		Price:   decimal.NewFromInt(200),
		Kind:    types.OrderKindLimit,
		Product: types.ProductIntraday,
	})
	require.NoError(t, err)
	// Premium-based: qty * price with no leverage, intraday or not.
	requireDecimal(t, "15000", res.Order.MarginLocked)
}

func TestSquareOffClosesNetPositions(t *testing.T) {
	e, ticks := newTestEngine(t, "100000")

	pushTick(t, e, ticks, tickAt(futSymbol, 100))

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)
	requireDecimal(t, "850", snapOf(t, e).Funds.UsedMargin)

	pushTick(t, e, ticks, tickAt(futSymbol, 110))

	res, err := e.SquareOff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, types.OrderSideSell, res.Orders[0].Side)
	assert.Equal(t, int64(50), res.Orders[0].Qty)
	requireDecimal(t, "110", res.Orders[0].Price)
	requireDecimal(t, "0", res.Funds.UsedMargin)
	requireDecimal(t, "500", res.Funds.RealizedMTM)

	s := snapOf(t, e)
	for _, p := range s.Positions {
		assert.Equal(t, int64(0), p.NetQty)
	}
}

func TestUnrealizedMTMTracksTicks(t *testing.T) {
	e, ticks := newTestEngine(t, "100000")

	pushTick(t, e, ticks, tickAt(futSymbol, 100))

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	pushTick(t, e, ticks, tickAt(futSymbol, 103))

	s := snapOf(t, e)
	requireDecimal(t, "150", s.Funds.UnrealizedMTM)
	requireDecimal(t, "0", s.Funds.RealizedMTM)
}

func TestStateSurvivesRestart(t *testing.T) {
	mem := store.NewMemory()
	ticks := make(chan []model.Tick)
	state := model.AccountState{Funds: model.DefaultFunds(decimal.NewFromInt(100000))}
	e := New(Config{
		AccountID:   "acc-1",
		StaleAfter:  time.Hour,
		Instruments: testInstruments(),
	}, state, ticks, stream.NewBus(), mem, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     50,
		Price:   decimal.NewFromInt(100),
		Kind:    types.OrderKindLimit,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		saved, ok, err := mem.Load(context.Background(), "acc-1")
		return err == nil && ok && len(saved.Orders) == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	saved, ok, err := mem.Load(context.Background(), "acc-1")
	require.NoError(t, err)
	require.True(t, ok)

	ticks2 := make(chan []model.Tick)
	e2 := New(Config{
		AccountID:   "acc-1",
		StaleAfter:  time.Hour,
		Instruments: testInstruments(),
	}, saved, ticks2, stream.NewBus(), mem, zap.NewNop())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go e2.Run(ctx2)

	s, err := e2.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Orders, 1)
	assert.Equal(t, res.Order.ID, s.Orders[0].ID)
	requireDecimal(t, "850", s.Funds.UsedMargin)
}

func TestEventRingCapsAtFifty(t *testing.T) {
	e, _ := newTestEngine(t, "10000000")

	for i := 0; i < 60; i++ {
		_, err := e.PlaceOrder(context.Background(), OrderRequest{
			Symbol:  futSymbol,
			Side:    types.OrderSideBuy,
			Qty:     1,
			Price:   decimal.NewFromInt(1),
			Kind:    types.OrderKindLimit,
			Product: types.ProductCarry,
		})
		require.NoError(t, err)
	}

	s := snapOf(t, e)
	assert.Len(t, s.Events, 50)
	// Newest first.
	assert.Contains(t, s.Events[0].Msg, "Order Placed")
}

func TestStaleWatchdogSuspendsAndResumes(t *testing.T) {
	ticks := make(chan []model.Tick)
	state := model.AccountState{Funds: model.DefaultFunds(decimal.NewFromInt(100000))}
	e := New(Config{
		AccountID:   "acc-1",
		StaleAfter:  40 * time.Millisecond,
		Instruments: testInstruments(),
	}, state, ticks, stream.NewBus(), store.NewMemory(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)

	pushTick(t, e, ticks, tickAt(futSymbol, 100))
	require.False(t, snapOf(t, e).Stale)

	// Starve the feed until the watchdog trips.
	require.Eventually(t, func() bool {
		s, err := e.Snapshot(context.Background())
		return err == nil && s.Stale
	}, 2*time.Second, 5*time.Millisecond)

	_, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     10,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.ErrorIs(t, err, ErrValidation)

	// A fresh snapshot resumes evaluation and market orders.
	pushTick(t, e, ticks, tickAt(futSymbol, 100))
	res, err := e.PlaceOrder(context.Background(), OrderRequest{
		Symbol:  futSymbol,
		Side:    types.OrderSideBuy,
		Qty:     10,
		Kind:    types.OrderKindMarket,
		Product: types.ProductCarry,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusComplete, res.Order.Status)
}
