package auth

import (
	"context"
	"sync"
	"time"
)

// UserStore describes persistence operations required by the auth subsystem.
type UserStore interface {
	Count(ctx context.Context) (int, error)
	// Create inserts a user and fails with ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, username, passwordHash string) (User, error)
	// FindByUsername returns ErrUserNotFound when no row matches exactly.
	FindByUsername(ctx context.Context, username string) (User, error)
}

// MemoryUsers is an in-process UserStore.
type MemoryUsers struct {
	mu     sync.RWMutex
	seq    int64
	byName map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byName: make(map[string]User)}
}

func (m *MemoryUsers) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName), nil
}

func (m *MemoryUsers) Create(ctx context.Context, username, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return User{}, ErrUsernameTaken
	}
	m.seq++
	u := User{ID: m.seq, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	m.byName[username] = u
	return u, nil
}

func (m *MemoryUsers) FindByUsername(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byName[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
