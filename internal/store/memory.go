package store

import (
	"context"
	"sync"

	"github.com/searchapi-console/internal/model"
)

// Memory keeps credentials for the lifetime of the process.
type Memory struct {
	mu    sync.RWMutex
	creds model.Credentials
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = model.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = model.Credentials{}
	return nil
}

func (m *Memory) Load(_ context.Context) (model.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

func (m *Memory) Close() error { return nil }
