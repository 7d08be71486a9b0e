package localstore

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxDevices = 10000

// Memory keeps device entries in a bounded LRU. Evicting a device drops its whole cache,
// which the funnel treats the same as a browser with cleared storage.
type Memory struct {
	mu      sync.Mutex
	devices *lru.Cache[string, map[string][]byte]
}

// NewMemory returns a memory store holding at most maxDevices devices.
func NewMemory(maxDevices int) (*Memory, error) {
	if maxDevices <= 0 {
		maxDevices = defaultMaxDevices
	}
	cache, err := lru.New[string, map[string][]byte](maxDevices)
	if err != nil {
		return nil, fmt.Errorf("create device cache: %w", err)
	}
	return &Memory{devices: cache}, nil
}

func (m *Memory) Get(_ context.Context, device, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.devices.Get(device)
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(_ context.Context, device, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.devices.Get(device)
	if !ok {
		entries = make(map[string][]byte, len(FunnelKeys))
	}
	entries[key] = append([]byte(nil), value...)
	m.devices.Add(device, entries)
	return nil
}

func (m *Memory) Delete(ctx context.Context, device, key string) error {
	return m.Clear(ctx, device, key)
}

func (m *Memory) Clear(_ context.Context, device string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.devices.Peek(device)
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(entries, key)
	}
	if len(entries) == 0 {
		m.devices.Remove(device)
	}
	return nil
}

// Devices returns the number of devices currently cached.
func (m *Memory) Devices() int {
	return m.devices.Len()
}
