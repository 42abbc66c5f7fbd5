package feed

import (
	"paperprop/internal/model"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

// DefaultWatchlist returns the contracts the terminal tracks out of the box.
// Base prices and previous closes seed the random walk; volatility is the
// per-tick budget in price units.
func DefaultWatchlist() []model.Instrument {
	return []model.Instrument{
		{
			Symbol:     "SENSEX26JAN84900CE",
			Underlying: "SENSEX",
			Exchange:   "BSEFO",
			Token:      "1158569",
			Class:      types.InstrumentIndexOption,
			Expiry:     "01Jan2026",
			Strike:     decimal.NewFromInt(84900),
			BasePrice:  235.50,
			PrevClose:  459.85,
			Volatility: 0.25,
		},
		{
			Symbol:     "RELIANCE30DEC1540CE",
			Underlying: "RELIANCE",
			Exchange:   "NSEFO",
			Token:      "143955",
			Class:      types.InstrumentStockOption,
			Expiry:     "30Dec2025",
			Strike:     decimal.NewFromInt(1540),
			BasePrice:  8.60,
			PrevClose:  19.80,
			Volatility: 0.10,
		},
		{
			Symbol:     "BANKNIFTY30DEC59500CE",
			Underlying: "Nifty Bank",
			Exchange:   "NSEFO",
			Token:      "51475",
			Class:      types.InstrumentIndexOption,
			Expiry:     "30Dec2025",
			Strike:     decimal.NewFromInt(59500),
			BasePrice:  17.00,
			PrevClose:  40.25,
			Volatility: 0.15,
		},
		{
			Symbol:     "NIFTY30DECFUT",
			Underlying: "Nifty 50",
			Exchange:   "NSEFO",
			Token:      "53001",
			Class:      types.InstrumentIndexFuture,
			Expiry:     "30Dec2025",
			Strike:     decimal.Zero,
			BasePrice:  24550.00,
			PrevClose:  24480.50,
			Volatility: 6.00,
		},
		{
			Symbol:     "RELIANCE30DECFUT",
			Underlying: "RELIANCE",
			Exchange:   "NSEFO",
			Token:      "53425",
			Class:      types.InstrumentStockFuture,
			Expiry:     "30Dec2025",
			Strike:     decimal.Zero,
			BasePrice:  1552.40,
			PrevClose:  1540.10,
			Volatility: 1.20,
		},
	}
}
