package auth

import (
	"context"
	"sync"
)

type memoryUser struct {
	id           string
	email        string
	passwordHash string
}

// MemoryUsers keeps credentials in process, for running without a database
// and for tests.
type MemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]memoryUser
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byEmail: make(map[string]memoryUser)}
}

func (m *MemoryUsers) CreateUser(_ context.Context, id, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return ErrEmailTaken
	}
	m.byEmail[email] = memoryUser{id: id, email: email, passwordHash: passwordHash}
	return nil
}

func (m *MemoryUsers) Credentials(_ context.Context, email string) (string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byEmail[email]
	if !ok {
		return "", "", ErrUserNotFound
	}
	return u.id, u.passwordHash, nil
}

func (m *MemoryUsers) GetUser(_ context.Context, userID string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byEmail {
		if u.id == userID {
			return User{ID: u.id, Email: u.email}, nil
		}
	}
	return User{}, ErrUserNotFound
}
