package directory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryDirectory is an in-memory Directory useful for tests.
// It is not intended for production use.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[string]*User // by ID
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]*User)}
}

// Add registers a user with a plaintext password, hashing it on the way in.
func (m *MemoryDirectory) Add(u User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
	return nil
}

func (m *MemoryDirectory) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	u, err := m.UserByEmail(ctx, email)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if !u.Active {
		return nil, ErrBadCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

func (m *MemoryDirectory) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryDirectory) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	u.LastLoginAt = &t
	return nil
}

// Remove deletes a user; test helper for deleted-account scenarios.
func (m *MemoryDirectory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

// SetRoles replaces a user's roles; test helper for live-role scenarios.
func (m *MemoryDirectory) SetRoles(id string, roles []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Roles = roles
	}
}
