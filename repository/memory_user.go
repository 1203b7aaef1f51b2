package repository

import (
	"context"
	"sync"

	"github.com/agroadvisor/community/models"
)

// MemoryUserRepository keeps accounts in process memory.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*models.User
	nextID     uint
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byUsername: make(map[string]*models.User),
		nextID:     1,
	}
}

func (m *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUsername[user.Username]; exists {
		return ErrUsernameTaken
	}
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.byUsername[user.Username] = &stored
	return nil
}

func (m *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *u
	return &found, nil
}
