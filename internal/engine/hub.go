package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paperprop/internal/feed"
	"paperprop/internal/model"
	"paperprop/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountStore loads and saves whole account documents.
type AccountStore interface {
	Store
	Load(ctx context.Context, accountID string) (model.AccountState, bool, error)
}

type HubConfig struct {
	StaleAfter     time.Duration
	OpeningBalance decimal.Decimal
}

// Hub owns one engine per account, created lazily on first access. Every
// engine gets its own feed subscription and runs until the hub closes.
type Hub struct {
	log         *zap.Logger
	cfg         HubConfig
	feed        *feed.Feed
	bus         *stream.Bus
	store       AccountStore
	instruments map[string]model.Instrument

	mu      sync.Mutex
	engines map[string]*Engine

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(cfg HubConfig, f *feed.Feed, bus *stream.Bus, store AccountStore, log *zap.Logger) *Hub {
	instruments := make(map[string]model.Instrument)
	for _, in := range f.Instruments() {
		instruments[in.Symbol] = in
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:         log,
		cfg:         cfg,
		feed:        f,
		bus:         bus,
		store:       store,
		instruments: instruments,
		engines:     make(map[string]*Engine),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Get returns the account's engine, starting one from persisted state (or a
// fresh default ledger) on first access.
func (h *Hub) Get(ctx context.Context, accountID string) (*Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.engines[accountID]; ok {
		return e, nil
	}
	state, found, err := h.store.Load(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if !found {
		state = model.AccountState{Funds: model.DefaultFunds(h.cfg.OpeningBalance)}
	}
	e := New(Config{
		AccountID:   accountID,
		StaleAfter:  h.cfg.StaleAfter,
		Instruments: h.instruments,
	}, state, h.feed.Subscribe(), h.bus, h.store, h.log)
	h.engines[accountID] = e
	go e.Run(h.ctx)
	h.log.Info("engine started", zap.String("account", accountID))
	return e, nil
}

// Close stops every running engine.
func (h *Hub) Close() {
	h.cancel()
}
