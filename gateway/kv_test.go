package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/store"
)

var errDisk = errors.New("disk full")

// memKV is an in-memory store.KV. failGet/failSet force errors.
type memKV struct {
	mu      sync.Mutex
	values  map[string]string
	failGet bool
	failSet bool
}

func newMemKV() *memKV {
	return &memKV{values: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet {
		return "", false, errDisk
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSet {
		return errDisk
	}
	m.values[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.values[key]
	return ok
}

// memMirror hands out one memKV per device.
type memMirror struct {
	mu      sync.Mutex
	devices map[string]*memKV
}

func (m *memMirror) Device(id string) store.KV {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devices == nil {
		m.devices = make(map[string]*memKV)
	}
	if m.devices[id] == nil {
		m.devices[id] = newMemKV()
	}
	return m.devices[id]
}
