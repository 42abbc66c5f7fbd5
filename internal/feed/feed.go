package feed

import (
	"context"
	"sync"
	"time"

	"paperprop/internal/model"
	"paperprop/internal/stream"

	"go.uber.org/zap"
)

// Feed owns the price generator and fans full snapshots out on a fixed
// cadence: once to the stream bus for WebSocket clients and once to every
// engine subscription. Engine subscriptions hold at most one snapshot; a
// slow engine only ever sees the latest one.
type Feed struct {
	log      *zap.Logger
	gen      *Generator
	bus      *stream.Bus
	interval time.Duration

	mu      sync.RWMutex
	subs    map[chan []model.Tick]struct{}
	watch   []model.Instrument
	bySym   map[string]model.Instrument
}

func New(instruments []model.Instrument, gen *Generator, bus *stream.Bus, interval time.Duration, log *zap.Logger) *Feed {
	bySym := make(map[string]model.Instrument, len(instruments))
	for _, in := range instruments {
		bySym[in.Symbol] = in
	}
	return &Feed{
		log:      log,
		gen:      gen,
		bus:      bus,
		interval: interval,
		subs:     make(map[chan []model.Tick]struct{}),
		watch:    instruments,
		bySym:    bySym,
	}
}

func (f *Feed) Instruments() []model.Instrument {
	return f.watch
}

func (f *Feed) Instrument(symbol string) (model.Instrument, bool) {
	in, ok := f.bySym[symbol]
	return in, ok
}

// Subscribe returns a latest-wins snapshot channel. The feed never blocks on
// a subscriber: when the buffer is full the stale snapshot is dropped and
// replaced with the fresh one.
func (f *Feed) Subscribe() chan []model.Tick {
	ch := make(chan []model.Tick, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) Unsubscribe(ch chan []model.Tick) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// Run publishes one snapshot per interval until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	f.log.Info("price feed started",
		zap.Int("instruments", len(f.watch)),
		zap.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			f.log.Info("price feed stopped")
			return
		case <-ticker.C:
			f.Publish(f.gen.Next())
		}
	}
}

// Publish fans one snapshot out to the bus and all engine subscriptions.
// Exported so tests can drive the feed without the timer.
func (f *Feed) Publish(snapshot []model.Tick) {
	f.bus.Publish(stream.Event{Type: "market-tick", Data: snapshot})
	f.mu.RLock()
	for ch := range f.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
	f.mu.RUnlock()
}
