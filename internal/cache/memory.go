// Package cache provides verdict cache backends: a process-scoped in-memory
// store and an optional SQLite-backed persistent store.
package cache

import (
	"sync"

	"github.com/raysh454/miru/internal/assert"
)

// MemoryStore is an unbounded in-memory verdict cache scoped to one test
// session. Safe for concurrent use. Under a racing pair of identical queries
// both callers may briefly run inference; last write wins, which is fine
// because verdicts for the same key are semantically equivalent.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[assert.Key]*assert.Verdict
}

var _ assert.VerdictCache = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[assert.Key]*assert.Verdict)}
}

func (m *MemoryStore) Get(key assert.Key) (*assert.Verdict, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(key assert.Key, v *assert.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = v
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[assert.Key]*assert.Verdict)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len reports the number of cached verdicts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
