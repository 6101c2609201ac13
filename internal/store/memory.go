package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is the in-process store backend. It is the default driver and
// the backend used by tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]json.RawMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]json.RawMessage)}
}

// Read returns a copy of the collection. Missing collections read as empty.
func (m *Memory) Read(_ context.Context, collection string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		cp := make(json.RawMessage, len(r))
		copy(cp, r)
		out[i] = cp
	}
	return out, nil
}

// Write replaces the collection with a copy of records.
func (m *Memory) Write(_ context.Context, collection string, records []json.RawMessage) error {
	cp := make([]json.RawMessage, len(records))
	for i, r := range records {
		c := make(json.RawMessage, len(r))
		copy(c, r)
		cp[i] = c
	}

	m.mu.Lock()
	m.collections[collection] = cp
	m.mu.Unlock()
	return nil
}
