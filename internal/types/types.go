package types

type OrderSide string

type OrderKind string

type OrderStatus string

type ProductMode string

type InstrumentClass string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderKindMarket     OrderKind = "MARKET"
	OrderKindLimit      OrderKind = "LIMIT"
	OrderKindStopLimit  OrderKind = "STOP_LIMIT"
	OrderKindStopMarket OrderKind = "STOP_MARKET"
)

const (
	OrderStatusOpen           OrderStatus = "OPEN"
	OrderStatusTriggerPending OrderStatus = "TRIGGER_PENDING"
	OrderStatusComplete       OrderStatus = "COMPLETE"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusRejected       OrderStatus = "REJECTED"
)

const (
	ProductIntraday ProductMode = "INTRADAY"
	ProductCarry    ProductMode = "CARRY"
)

const (
	InstrumentIndexOption InstrumentClass = "OPTIDX"
	InstrumentStockOption InstrumentClass = "OPTSTK"
	InstrumentIndexFuture InstrumentClass = "FUTIDX"
	InstrumentStockFuture InstrumentClass = "FUTSTK"
)

// Terminal reports whether an order in this status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusComplete || s == OrderStatusCancelled || s == OrderStatusRejected
}

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindMarket, OrderKindLimit, OrderKindStopLimit, OrderKindStopMarket:
		return true
	}
	return false
}

// Stop kinds wait in TRIGGER_PENDING until the trigger price is crossed.
func (k OrderKind) Stop() bool {
	return k == OrderKindStopLimit || k == OrderKindStopMarket
}

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

func (p ProductMode) Valid() bool {
	return p == ProductIntraday || p == ProductCarry
}

func (c InstrumentClass) Option() bool {
	return c == InstrumentIndexOption || c == InstrumentStockOption
}

func (c InstrumentClass) Index() bool {
	return c == InstrumentIndexOption || c == InstrumentIndexFuture
}
