package engine

import (
	"context"
	"fmt"
	"time"

	"paperprop/internal/model"
	"paperprop/internal/positions"
	"paperprop/internal/stream"
	"paperprop/internal/types"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxEvents = 50

// Store persists one account's state. Saves are best-effort and asynchronous:
// the in-memory engine is the source of truth, a failed write is only logged
// and never rolled back.
type Store interface {
	Save(ctx context.Context, accountID string, state model.AccountState) error
}

type Config struct {
	AccountID   string
	StaleAfter  time.Duration
	Instruments map[string]model.Instrument
}

// OrderRequest is the inbound order shape.
type OrderRequest struct {
	Symbol    string
	Side      types.OrderSide
	Qty       int64
	Price     decimal.Decimal
	TrigPrice *decimal.Decimal
	Kind      types.OrderKind
	Product   types.ProductMode
}

type ModifyRequest struct {
	Qty   int64
	Price decimal.Decimal
	Kind  types.OrderKind
}

// FundsView is Funds plus the derived available figure, for the wire.
type FundsView struct {
	model.Funds
	Available decimal.Decimal `json:"available"`
}

func viewFunds(f model.Funds) FundsView {
	return FundsView{Funds: f, Available: f.Available()}
}

type OrderResult struct {
	Order model.Order `json:"order"`
	Funds FundsView   `json:"funds"`
}

type SquareOffResult struct {
	Closed int           `json:"closed"`
	Orders []model.Order `json:"orders"`
	Funds  FundsView     `json:"funds"`
}

type AccountSnapshot struct {
	AccountID string             `json:"account_id"`
	Funds     FundsView          `json:"funds"`
	Orders    []model.Order      `json:"orders"`
	Positions []model.Position   `json:"positions"`
	Events    []model.EventEntry `json:"events"`
	Stale     bool               `json:"stale"`
}

// Engine is the single authoritative order & margin engine for one account.
// One goroutine owns the ledger, order list and exposure map exclusively;
// operations and feed snapshots arrive as serialized messages, so a user's
// order submission can never race a tick-driven fill.
type Engine struct {
	log   *zap.Logger
	cfg   Config
	bus   *stream.Bus
	store Store

	ledger   *Ledger
	orders   []model.Order
	exposure map[string]model.ExposureEntry
	events   []model.EventEntry

	last   map[string]model.Tick
	lastAt time.Time
	stale  bool

	cmds  chan func()
	ticks chan []model.Tick
	saves chan model.AccountState
}

func New(cfg Config, state model.AccountState, ticks chan []model.Tick, bus *stream.Bus, store Store, log *zap.Logger) *Engine {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Second
	}
	exposure := state.Exposure
	if exposure == nil {
		exposure = make(map[string]model.ExposureEntry)
	}
	return &Engine{
		log:      log.With(zap.String("account", cfg.AccountID)),
		cfg:      cfg,
		bus:      bus,
		store:    store,
		ledger:   NewLedger(state.Funds),
		orders:   state.Orders,
		exposure: exposure,
		events:   state.Events,
		last:     make(map[string]model.Tick),
		stale:    true,
		cmds:     make(chan func()),
		ticks:    ticks,
		saves:    make(chan model.AccountState, 1),
	}
}

// Run processes commands, feed snapshots and the staleness watchdog until
// the context is cancelled. It must be started exactly once.
func (e *Engine) Run(ctx context.Context) {
	go e.saver(ctx)
	watchdog := time.NewTicker(e.cfg.StaleAfter / 2)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.cmds:
			fn()
		case snapshot, ok := <-e.ticks:
			if !ok {
				return
			}
			e.onTick(snapshot)
		case <-watchdog.C:
			e.checkStale()
		}
	}
}

func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// --- public operations -------------------------------------------------

func (e *Engine) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var res OrderResult
	var err error
	if derr := e.do(ctx, func() { res, err = e.placeOrder(req) }); derr != nil {
		return OrderResult{}, derr
	}
	return res, err
}

func (e *Engine) CancelOrder(ctx context.Context, orderID string) (OrderResult, error) {
	var res OrderResult
	var err error
	if derr := e.do(ctx, func() { res, err = e.cancelOrder(orderID) }); derr != nil {
		return OrderResult{}, derr
	}
	return res, err
}

func (e *Engine) ModifyOrder(ctx context.Context, orderID string, req ModifyRequest) (OrderResult, error) {
	var res OrderResult
	var err error
	if derr := e.do(ctx, func() { res, err = e.modifyOrder(orderID, req) }); derr != nil {
		return OrderResult{}, derr
	}
	return res, err
}

func (e *Engine) SquareOff(ctx context.Context, symbols []string) (SquareOffResult, error) {
	var res SquareOffResult
	var err error
	if derr := e.do(ctx, func() { res, err = e.squareOff(symbols) }); derr != nil {
		return SquareOffResult{}, derr
	}
	return res, err
}

func (e *Engine) Snapshot(ctx context.Context) (AccountSnapshot, error) {
	var snap AccountSnapshot
	if derr := e.do(ctx, func() { snap = e.snapshot() }); derr != nil {
		return AccountSnapshot{}, derr
	}
	return snap, nil
}

func (e *Engine) Positions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	if derr := e.do(ctx, func() { out = positions.Recompute(e.orders, e.last) }); derr != nil {
		return nil, derr
	}
	return out, nil
}

// --- placement ---------------------------------------------------------

func (e *Engine) placeOrder(req OrderRequest) (OrderResult, error) {
	if !req.Side.Valid() {
		return OrderResult{}, fmt.Errorf("%w: invalid side", ErrValidation)
	}
	if !req.Kind.Valid() {
		return OrderResult{}, fmt.Errorf("%w: invalid order kind", ErrValidation)
	}
	if !req.Product.Valid() {
		return OrderResult{}, fmt.Errorf("%w: invalid product mode", ErrValidation)
	}
	if req.Qty <= 0 {
		return OrderResult{}, fmt.Errorf("%w: qty must be positive", ErrValidation)
	}
	instr, ok := e.cfg.Instruments[req.Symbol]
	if !ok {
		return OrderResult{}, fmt.Errorf("%w: unknown symbol %s", ErrValidation, req.Symbol)
	}
	if req.Kind == types.OrderKindLimit || req.Kind == types.OrderKindStopLimit {
		if !req.Price.IsPositive() {
			return OrderResult{}, fmt.Errorf("%w: price must be positive", ErrValidation)
		}
	}
	if req.Kind.Stop() {
		if req.TrigPrice == nil || !req.TrigPrice.IsPositive() {
			return OrderResult{}, fmt.Errorf("%w: trigger price required for stop orders", ErrValidation)
		}
	}

	now := time.Now().UTC()
	price := req.Price
	switch req.Kind {
	case types.OrderKindMarket:
		tick, ok := e.last[req.Symbol]
		if !ok || e.stale {
			return OrderResult{}, fmt.Errorf("%w: market price unavailable", ErrValidation)
		}
		price = tick.LTP
	case types.OrderKindStopMarket:
		price = *req.TrigPrice
	}

	total := RequiredMargin(instr.Class, req.Side, req.Qty, price, req.Product)
	perUnitNew := total.Div(decimal.NewFromInt(req.Qty))

	netQty := positions.NetQty(e.orders, req.Symbol)
	opposing := (req.Side == types.OrderSideBuy && netQty < 0) ||
		(req.Side == types.OrderSideSell && netQty > 0)

	charge := total
	chargedQty := req.Qty
	release := decimal.Zero
	var coverQty int64
	if opposing {
		coverQty = min64(abs64(netQty), req.Qty)
		chargedQty = req.Qty - coverQty
		charge = perUnitNew.Mul(decimal.NewFromInt(chargedQty))
		release = e.releaseEstimate(req.Symbol, coverQty, perUnitNew)
	}
	delta := charge.Sub(release)

	if delta.IsPositive() && delta.GreaterThan(e.ledger.Available()) {
		return OrderResult{}, fmt.Errorf("%w: need %s, available %s",
			ErrInsufficientMargin, delta.StringFixed(2), e.ledger.Available().StringFixed(2))
	}

	// Commit.
	e.ledger.Apply(delta)
	if opposing && coverQty > 0 {
		e.consumeExposure(req.Symbol, coverQty, release)
	}
	if charge.IsPositive() || chargedQty > 0 {
		e.addExposure(req.Symbol, chargedQty, charge)
	}

	status := types.OrderStatusOpen
	switch {
	case req.Kind == types.OrderKindMarket:
		status = types.OrderStatusComplete
	case req.Kind.Stop():
		status = types.OrderStatusTriggerPending
	}

	order := model.Order{
		ID:           ulid.Make().String(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Qty:          req.Qty,
		Price:        price,
		TrigPrice:    req.TrigPrice,
		Kind:         req.Kind,
		Product:      req.Product,
		Status:       status,
		MarginLocked: charge,
		LockedQty:    chargedQty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.orders = append([]model.Order{order}, e.orders...)

	e.addEvent(fmt.Sprintf("Order Placed: %s %s (%s)", order.Side, order.Symbol, order.Kind))
	if order.Status == types.OrderStatusComplete {
		e.addEvent(fmt.Sprintf("Order Executed: %s %s at %s", order.Side, order.Symbol, order.Price.StringFixed(2)))
	}
	e.refreshMTM()
	e.publishAccount(order)
	e.scheduleSave()
	return OrderResult{Order: order, Funds: viewFunds(e.ledger.Funds())}, nil
}

// --- cancel / modify ---------------------------------------------------

func (e *Engine) cancelOrder(orderID string) (OrderResult, error) {
	idx := e.findOrder(orderID)
	if idx < 0 {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o := e.orders[idx]
	if o.Status.Terminal() {
		return OrderResult{}, fmt.Errorf("%w: cannot cancel %s order", ErrInvalidStateTransition, o.Status)
	}
	e.ledger.Release(o.MarginLocked)
	e.consumeExposure(o.Symbol, o.LockedQty, o.MarginLocked)
	o.Status = types.OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
	e.orders[idx] = o

	e.addEvent(fmt.Sprintf("Order Cancelled: %s", o.Symbol))
	e.refreshMTM()
	e.publishAccount(o)
	e.scheduleSave()
	return OrderResult{Order: o, Funds: viewFunds(e.ledger.Funds())}, nil
}

func (e *Engine) modifyOrder(orderID string, req ModifyRequest) (OrderResult, error) {
	idx := e.findOrder(orderID)
	if idx < 0 {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o := e.orders[idx]
	if o.Status.Terminal() {
		return OrderResult{}, fmt.Errorf("%w: cannot modify %s order", ErrInvalidStateTransition, o.Status)
	}
	if req.Qty <= 0 {
		return OrderResult{}, fmt.Errorf("%w: qty must be positive", ErrValidation)
	}
	if !req.Kind.Valid() || req.Kind == types.OrderKindMarket {
		return OrderResult{}, fmt.Errorf("%w: invalid order kind for modify", ErrValidation)
	}
	if !req.Price.IsPositive() {
		return OrderResult{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if req.Kind.Stop() && o.TrigPrice == nil {
		return OrderResult{}, fmt.Errorf("%w: order has no trigger price", ErrValidation)
	}
	instr := e.cfg.Instruments[o.Symbol]

	newMargin := RequiredMargin(instr.Class, o.Side, req.Qty, req.Price, o.Product)
	delta := newMargin.Sub(o.MarginLocked)
	if delta.IsPositive() && delta.GreaterThan(e.ledger.Available()) {
		return OrderResult{}, fmt.Errorf("%w: need %s more, available %s",
			ErrInsufficientMargin, delta.StringFixed(2), e.ledger.Available().StringFixed(2))
	}

	e.ledger.Apply(delta)
	e.adjustExposure(o.Symbol, req.Qty-o.LockedQty, delta)

	o.Qty = req.Qty
	o.Price = req.Price
	o.Kind = req.Kind
	o.MarginLocked = newMargin
	o.LockedQty = req.Qty
	if req.Kind.Stop() {
		o.Status = types.OrderStatusTriggerPending
	} else {
		o.Status = types.OrderStatusOpen
	}
	o.UpdatedAt = time.Now().UTC()
	e.orders[idx] = o

	e.addEvent(fmt.Sprintf("Order Modified: %s", o.ID))
	e.publishAccount(o)
	e.scheduleSave()
	return OrderResult{Order: o, Funds: viewFunds(e.ledger.Funds())}, nil
}

// --- square-off --------------------------------------------------------

func (e *Engine) squareOff(symbols []string) (SquareOffResult, error) {
	if e.stale {
		return SquareOffResult{}, fmt.Errorf("%w: market price unavailable", ErrValidation)
	}
	if len(symbols) == 0 {
		for _, p := range positions.Recompute(e.orders, e.last) {
			if p.NetQty != 0 {
				symbols = append(symbols, p.Symbol)
			}
		}
	}
	now := time.Now().UTC()
	var closed []model.Order
	for _, sym := range symbols {
		netQty := positions.NetQty(e.orders, sym)
		if netQty == 0 {
			continue
		}
		tick, ok := e.last[sym]
		if !ok {
			continue
		}
		side := types.OrderSideSell
		if netQty < 0 {
			side = types.OrderSideBuy
		}
		qty := abs64(netQty)
		order := model.Order{
			ID:        ulid.Make().String(),
			Symbol:    sym,
			Side:      side,
			Qty:       qty,
			Price:     tick.LTP,
			Kind:      types.OrderKindMarket,
			Product:   types.ProductCarry,
			Status:    types.OrderStatusComplete,
			CreatedAt: now,
			UpdatedAt: now,
		}
		released := e.releaseForUnits(sym, qty)
		e.ledger.Release(released)
		e.orders = append([]model.Order{order}, e.orders...)
		closed = append(closed, order)
	}
	if len(closed) == 0 {
		return SquareOffResult{Funds: viewFunds(e.ledger.Funds())}, nil
	}
	e.addEvent(fmt.Sprintf("Bulk Square Off: %d positions closed.", len(closed)))
	e.refreshMTM()
	e.publishAccountAll()
	e.scheduleSave()
	return SquareOffResult{Closed: len(closed), Orders: closed, Funds: viewFunds(e.ledger.Funds())}, nil
}

// --- tick evaluation ---------------------------------------------------

// onTick evaluates every live order against exactly one snapshot. Each order
// is visited once per pass, and the whole pass runs inside the actor loop,
// so no order can see two different "current" snapshots.
func (e *Engine) onTick(snapshot []model.Tick) {
	wasStale := e.stale
	e.stale = false
	e.lastAt = time.Now()
	for _, t := range snapshot {
		e.last[t.Symbol] = t
	}
	if wasStale && len(e.orders) > 0 {
		e.log.Info("feed fresh, order evaluation resumed")
	}

	changed := false
	for i := range e.orders {
		o := e.orders[i]
		if o.Status != types.OrderStatusOpen && o.Status != types.OrderStatusTriggerPending {
			continue
		}
		tick, ok := e.last[o.Symbol]
		if !ok {
			continue
		}
		ltp := tick.LTP

		switch o.Status {
		case types.OrderStatusTriggerPending:
			trig := *o.TrigPrice
			triggered := (o.Side == types.OrderSideBuy && ltp.GreaterThanOrEqual(trig)) ||
				(o.Side == types.OrderSideSell && ltp.LessThanOrEqual(trig))
			if !triggered {
				continue
			}
			e.addEvent(fmt.Sprintf("Stop Loss Triggered for %s at %s", o.Symbol, ltp.StringFixed(2)))
			if o.Kind == types.OrderKindStopMarket {
				o.Status = types.OrderStatusComplete
				o.Price = ltp
				e.addEvent(fmt.Sprintf("Order Executed: %s %s at %s", o.Side, o.Symbol, ltp.StringFixed(2)))
			} else {
				// A triggered stop-limit becomes a live limit order at its
				// original limit price; it fills on a later snapshot.
				o.Status = types.OrderStatusOpen
			}
			o.UpdatedAt = time.Now().UTC()
			e.orders[i] = o
			changed = true

		case types.OrderStatusOpen:
			filled := (o.Side == types.OrderSideBuy && ltp.LessThanOrEqual(o.Price)) ||
				(o.Side == types.OrderSideSell && ltp.GreaterThanOrEqual(o.Price))
			if !filled {
				continue
			}
			// Gaps through the limit fill at the more favorable crossing LTP.
			o.Status = types.OrderStatusComplete
			o.Price = ltp
			o.UpdatedAt = time.Now().UTC()
			e.orders[i] = o
			e.addEvent(fmt.Sprintf("Order Executed: %s %s at %s", o.Side, o.Symbol, ltp.StringFixed(2)))
			changed = true
		}
	}

	e.refreshMTM()
	e.bus.Publish(stream.Event{Type: "funds", Account: e.cfg.AccountID, Data: viewFunds(e.ledger.Funds())})
	if changed {
		e.publishAccountAll()
		e.scheduleSave()
	}
}

func (e *Engine) checkStale() {
	if e.stale || e.lastAt.IsZero() {
		return
	}
	if time.Since(e.lastAt) < e.cfg.StaleAfter {
		return
	}
	e.stale = true
	e.log.Warn("feed stale, order evaluation suspended", zap.Duration("since", time.Since(e.lastAt)))
	e.addEvent("Market feed stale: order evaluation suspended")
	e.bus.Publish(stream.Event{Type: "feed-status", Account: e.cfg.AccountID, Data: map[string]bool{"stale": true}})
}

// --- exposure ledger ---------------------------------------------------

func (e *Engine) addExposure(symbol string, qty int64, margin decimal.Decimal) {
	x := e.exposure[symbol]
	x.Locked = x.Locked.Add(margin)
	x.Qty += qty
	e.exposure[symbol] = x
}

// releaseEstimate prices a covering quantity at the symbol's existing
// per-unit locked rate, falling back to the incoming order's own rate when
// nothing is tracked yet.
func (e *Engine) releaseEstimate(symbol string, coverQty int64, fallbackPerUnit decimal.Decimal) decimal.Decimal {
	x := e.exposure[symbol]
	if x.Qty <= 0 || !x.Locked.IsPositive() {
		return fallbackPerUnit.Mul(decimal.NewFromInt(coverQty))
	}
	perUnit := x.Locked.Div(decimal.NewFromInt(x.Qty))
	units := min64(coverQty, x.Qty)
	rel := perUnit.Mul(decimal.NewFromInt(units))
	if rel.GreaterThan(x.Locked) {
		rel = x.Locked
	}
	return rel
}

func (e *Engine) consumeExposure(symbol string, qty int64, margin decimal.Decimal) {
	x := e.exposure[symbol]
	x.Locked = x.Locked.Sub(margin)
	if x.Locked.IsNegative() {
		x.Locked = decimal.Zero
	}
	x.Qty -= qty
	if x.Qty < 0 {
		x.Qty = 0
	}
	e.exposure[symbol] = x
}

func (e *Engine) adjustExposure(symbol string, qtyDelta int64, marginDelta decimal.Decimal) {
	x := e.exposure[symbol]
	x.Locked = x.Locked.Add(marginDelta)
	if x.Locked.IsNegative() {
		x.Locked = decimal.Zero
	}
	x.Qty += qtyDelta
	if x.Qty < 0 {
		x.Qty = 0
	}
	e.exposure[symbol] = x
}

// releaseForUnits releases margin for a closed quantity at the tracked
// per-unit rate and consumes it from the exposure ledger.
func (e *Engine) releaseForUnits(symbol string, qty int64) decimal.Decimal {
	x := e.exposure[symbol]
	if x.Qty <= 0 || !x.Locked.IsPositive() {
		return decimal.Zero
	}
	perUnit := x.Locked.Div(decimal.NewFromInt(x.Qty))
	units := min64(qty, x.Qty)
	rel := perUnit.Mul(decimal.NewFromInt(units))
	if rel.GreaterThan(x.Locked) {
		rel = x.Locked
	}
	e.consumeExposure(symbol, units, rel)
	return rel
}

// --- derived state, events, persistence --------------------------------

func (e *Engine) refreshMTM() {
	realized := decimal.Zero
	unrealized := decimal.Zero
	for _, p := range positions.Recompute(e.orders, e.last) {
		if p.NetQty == 0 {
			realized = realized.Add(p.MTM)
		} else {
			unrealized = unrealized.Add(p.MTM)
		}
	}
	e.ledger.SetMTM(realized, unrealized)
}

func (e *Engine) snapshot() AccountSnapshot {
	orders := make([]model.Order, len(e.orders))
	copy(orders, e.orders)
	events := make([]model.EventEntry, len(e.events))
	copy(events, e.events)
	return AccountSnapshot{
		AccountID: e.cfg.AccountID,
		Funds:     viewFunds(e.ledger.Funds()),
		Orders:    orders,
		Positions: positions.Recompute(e.orders, e.last),
		Events:    events,
		Stale:     e.stale,
	}
}

func (e *Engine) findOrder(orderID string) int {
	for i := range e.orders {
		if e.orders[i].ID == orderID {
			return i
		}
	}
	return -1
}

func (e *Engine) addEvent(msg string) {
	entry := model.EventEntry{Time: time.Now().UTC().Format("15:04:05"), Msg: msg}
	e.events = append([]model.EventEntry{entry}, e.events...)
	if len(e.events) > maxEvents {
		e.events = e.events[:maxEvents]
	}
	e.bus.Publish(stream.Event{Type: "log", Account: e.cfg.AccountID, Data: entry})
}

func (e *Engine) publishAccount(order model.Order) {
	e.bus.Publish(stream.Event{Type: "order", Account: e.cfg.AccountID, Data: order})
	e.bus.Publish(stream.Event{Type: "funds", Account: e.cfg.AccountID, Data: viewFunds(e.ledger.Funds())})
	e.bus.Publish(stream.Event{Type: "positions", Account: e.cfg.AccountID, Data: positions.Recompute(e.orders, e.last)})
}

func (e *Engine) publishAccountAll() {
	orders := make([]model.Order, len(e.orders))
	copy(orders, e.orders)
	e.bus.Publish(stream.Event{Type: "orders", Account: e.cfg.AccountID, Data: orders})
	e.bus.Publish(stream.Event{Type: "funds", Account: e.cfg.AccountID, Data: viewFunds(e.ledger.Funds())})
	e.bus.Publish(stream.Event{Type: "positions", Account: e.cfg.AccountID, Data: positions.Recompute(e.orders, e.last)})
}

// scheduleSave hands the current state to the saver with latest-wins
// semantics so a slow store never stalls the actor loop.
func (e *Engine) scheduleSave() {
	if e.store == nil {
		return
	}
	orders := make([]model.Order, len(e.orders))
	copy(orders, e.orders)
	events := make([]model.EventEntry, len(e.events))
	copy(events, e.events)
	exposure := make(map[string]model.ExposureEntry, len(e.exposure))
	for k, v := range e.exposure {
		exposure[k] = v
	}
	state := model.AccountState{
		Funds:    e.ledger.Funds(),
		Orders:   orders,
		Events:   events,
		Exposure: exposure,
	}
	select {
	case e.saves <- state:
	default:
		select {
		case <-e.saves:
		default:
		}
		select {
		case e.saves <- state:
		default:
		}
	}
}

func (e *Engine) saver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-e.saves:
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := e.store.Save(sctx, e.cfg.AccountID, state); err != nil {
				e.log.Warn("account save failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
