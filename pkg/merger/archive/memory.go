package archive

import (
	"sort"
	"sync"

	"github.com/invoicestream/merger/pkg/merger/record"
)

// MemoryStore is an in-memory archive for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]record.DeadLetter
	closed bool
}

// NewMemoryStore creates a new in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]record.DeadLetter),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(dl record.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.data[dl.ID] = dl
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (record.DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return record.DeadLetter{}, ErrStoreClosed
	}
	dl, ok := m.data[id]
	if !ok {
		return record.DeadLetter{}, ErrNotFound
	}
	return dl, nil
}

// List implements Store.
func (m *MemoryStore) List(limit int) ([]record.DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	all := make([]record.DeadLetter, 0, len(m.data))
	for _, dl := range m.data {
		all = append(all, dl)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FailedAt.After(all[j].FailedAt) })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, id)
	return nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.data), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
