package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Memory is an in-process store used by tests and one-shot runs.
type Memory struct {
	mu      sync.RWMutex
	data    map[string][]byte
	history []PublishRecord
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, storeErr("decode value", key, err)
	}
	return true, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return storeErr("encode value", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// RecordPublish implements History.
func (m *Memory) RecordPublish(_ context.Context, rec PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, rec)
	return nil
}

// History implements History, newest first.
func (m *Memory) History(_ context.Context, limit int) ([]PublishRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.history)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements KV.
func (m *Memory) Close() error { return nil }
