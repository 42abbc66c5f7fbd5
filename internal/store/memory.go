package store

import (
	"context"
	"sync"

	"paperprop/internal/model"
)

// Memory is an in-process store for running without a database and for tests.
type Memory struct {
	mu     sync.RWMutex
	states map[string]model.AccountState
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]model.AccountState)}
}

func (m *Memory) Load(_ context.Context, accountID string) (model.AccountState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[accountID]
	return state, ok, nil
}

func (m *Memory) Save(_ context.Context, accountID string, state model.AccountState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[accountID] = state
	return nil
}
