package engine

import (
	"paperprop/internal/model"

	"github.com/shopspring/decimal"
)

// Ledger is pure bookkeeping over one account's funds. It is owned by the
// engine goroutine and never accessed concurrently. Callers pre-validate
// against Available before charging; the ledger itself only guarantees the
// usedMargin >= 0 floor.
type Ledger struct {
	funds model.Funds
}

func NewLedger(funds model.Funds) *Ledger {
	return &Ledger{funds: funds}
}

func (l *Ledger) Funds() model.Funds {
	return l.funds
}

func (l *Ledger) Available() decimal.Decimal {
	return l.funds.Available()
}

func (l *Ledger) Charge(amount decimal.Decimal) {
	l.Apply(amount)
}

func (l *Ledger) Release(amount decimal.Decimal) {
	l.Apply(amount.Neg())
}

// Apply adjusts used margin by a signed delta, flooring at zero.
func (l *Ledger) Apply(delta decimal.Decimal) {
	next := l.funds.UsedMargin.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	l.funds.UsedMargin = next
}

// SetMTM updates the display decomposition of mark-to-market. It never
// feeds back into Available.
func (l *Ledger) SetMTM(realized, unrealized decimal.Decimal) {
	l.funds.RealizedMTM = realized
	l.funds.UnrealizedMTM = unrealized
}
