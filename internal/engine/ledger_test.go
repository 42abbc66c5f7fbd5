package engine

import (
	"testing"

	"paperprop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedgerChargeAndRelease(t *testing.T) {
	l := NewLedger(model.DefaultFunds(decimal.NewFromInt(10000)))

	l.Charge(decimal.NewFromInt(850))
	assert.Equal(t, "850", l.Funds().UsedMargin.String())
	assert.Equal(t, "9150", l.Available().String())

	l.Release(decimal.NewFromInt(850))
	assert.Equal(t, "0", l.Funds().UsedMargin.String())
	assert.Equal(t, "10000", l.Available().String())
}

func TestLedgerUsedMarginFloorsAtZero(t *testing.T) {
	l := NewLedger(model.DefaultFunds(decimal.NewFromInt(10000)))

	l.Charge(decimal.NewFromInt(100))
	l.Release(decimal.NewFromInt(500))
	assert.Equal(t, "0", l.Funds().UsedMargin.String())
}

func TestLedgerMTMIsDisplayOnly(t *testing.T) {
	l := NewLedger(model.DefaultFunds(decimal.NewFromInt(10000)))

	l.SetMTM(decimal.NewFromInt(-2000), decimal.NewFromInt(300))
	assert.Equal(t, "-2000", l.Funds().RealizedMTM.String())
	assert.Equal(t, "300", l.Funds().UnrealizedMTM.String())
	// A losing book must not shrink what can be locked for new orders.
	assert.Equal(t, "10000", l.Available().String())
}
