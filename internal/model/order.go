package model

import (
	"time"

	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID           string            `json:"id"`
	Symbol       string            `json:"symbol"`
	Side         types.OrderSide   `json:"side"`
	Qty          int64             `json:"qty"`
	Price        decimal.Decimal   `json:"price"`
	TrigPrice    *decimal.Decimal  `json:"trig_price,omitempty"`
	Kind         types.OrderKind   `json:"kind"`
	Product      types.ProductMode `json:"product"`
	Status       types.OrderStatus `json:"status"`
	MarginLocked decimal.Decimal   `json:"margin_locked"`
	// LockedQty is the number of units MarginLocked was charged for. An
	// opposing order that partly covers existing exposure locks margin only
	// for its remaining-exposure portion.
	LockedQty int64     `json:"locked_qty,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
