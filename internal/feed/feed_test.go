package feed

import (
	"math/rand"
	"testing"
	"time"

	"paperprop/internal/model"
	"paperprop/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFeed() *Feed {
	watch := DefaultWatchlist()
	gen := NewGenerator(watch, rand.New(rand.NewSource(1)))
	return New(watch, gen, stream.NewBus(), time.Second, zap.NewNop())
}

func TestSubscriberSeesLatestSnapshot(t *testing.T) {
	f := newTestFeed()
	sub := f.Subscribe()

	// Two publishes with nobody reading: the first snapshot is stale and
	// must be replaced, not queued.
	f.Publish([]model.Tick{{Symbol: "A"}})
	f.Publish([]model.Tick{{Symbol: "B"}})

	snapshot := <-sub
	require.Len(t, snapshot, 1)
	assert.Equal(t, "B", snapshot[0].Symbol)
	select {
	case extra := <-sub:
		t.Fatalf("unexpected queued snapshot: %v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	f := newTestFeed()
	sub := f.Subscribe()
	f.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic on the closed channel.
	f.Publish([]model.Tick{{Symbol: "A"}})
}

func TestInstrumentLookup(t *testing.T) {
	f := newTestFeed()

	in, ok := f.Instrument("NIFTY30DECFUT")
	require.True(t, ok)
	assert.Equal(t, "NIFTY30DECFUT", in.Symbol)

	_, ok = f.Instrument("UNKNOWN")
	assert.False(t, ok)
}
