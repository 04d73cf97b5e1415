package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps blobs in a map. Used by tests and the dev server.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	deadline map[string]time.Time
	closed   bool
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		deadline: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, fail("get", key, errClosed)
	}
	if d, ok := m.deadline[key]; ok && !m.now().Before(d) {
		return "", false, nil
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fail("set", key, errClosed)
	}
	m.data[key] = value
	delete(m.deadline, key)
	return nil
}

func (m *Memory) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return m.Set(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fail("set", key, errClosed)
	}
	now := m.now()
	for k, d := range m.deadline {
		if !now.Before(d) {
			delete(m.data, k)
			delete(m.deadline, k)
		}
	}
	m.data[key] = value
	m.deadline[key] = now.Add(ttl)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fail("remove", key, errClosed)
	}
	delete(m.data, key)
	delete(m.deadline, key)
	return nil
}

// Len counts the keys still held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
