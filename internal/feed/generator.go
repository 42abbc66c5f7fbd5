package feed

import (
	"math/rand"
	"time"

	"paperprop/internal/model"

	"github.com/shopspring/decimal"
)

// minPrice keeps the walk strictly positive; prices never reach zero.
const minPrice = 0.05

const halfSpread = 0.05

// biasProbability and biasFraction shape the mild trend persistence: with
// probability 0.4 a tick gets an extra nudge of 0.2*volatility in the
// direction of the instrument's move versus previous close.
const (
	biasProbability = 0.4
	biasFraction    = 0.2
)

type walkState struct {
	instr model.Instrument
	price float64
}

// Generator advances a bounded random walk for every watchlist instrument.
// The rand source is injected so a fixed seed reproduces the exact same
// price series, and therefore the same fill and trigger sequence.
type Generator struct {
	rng    *rand.Rand
	states []walkState
}

func NewGenerator(instruments []model.Instrument, rng *rand.Rand) *Generator {
	states := make([]walkState, 0, len(instruments))
	for _, in := range instruments {
		states = append(states, walkState{instr: in, price: in.BasePrice})
	}
	return &Generator{rng: rng, states: states}
}

// Next advances every instrument one step and returns the full snapshot.
// Output is always the whole watchlist, never a delta.
func (g *Generator) Next() []model.Tick {
	now := time.Now().UnixMilli()
	ticks := make([]model.Tick, 0, len(g.states))
	for i := range g.states {
		st := &g.states[i]
		v := st.instr.Volatility
		noise := (g.rng.Float64()*2 - 1) * v
		bias := 0.0
		if g.rng.Float64() < biasProbability {
			bias = biasFraction * v
			if st.price < st.instr.PrevClose {
				bias = -bias
			}
		}
		st.price += noise + bias
		if st.price < minPrice {
			st.price = minPrice
		}

		ltp := decimal.NewFromFloat(st.price).Round(2)
		prev := decimal.NewFromFloat(st.instr.PrevClose).Round(2)
		bid := ltp.Sub(decimal.NewFromFloat(halfSpread))
		if bid.LessThan(decimal.NewFromFloat(minPrice)) {
			bid = decimal.NewFromFloat(minPrice)
		}
		change := decimal.Zero
		if prev.IsPositive() {
			change = ltp.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		}
		ticks = append(ticks, model.Tick{
			Symbol:    st.instr.Symbol,
			LTP:       ltp,
			PrevClose: prev,
			Change:    change,
			Bid:       bid,
			Ask:       ltp.Add(decimal.NewFromFloat(halfSpread)),
			BidQty:    int64(1+g.rng.Intn(40)) * 25,
			AskQty:    int64(1+g.rng.Intn(40)) * 25,
			At:        now,
		})
	}
	return ticks
}
