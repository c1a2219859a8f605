// internal/journal/memory.go
package journal

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryJournal is an in-memory implementation of Journal for testing.
type MemoryJournal struct {
	records map[string]*Record
	hashes  map[string]string
	mu      sync.RWMutex
}

var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates a new in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		records: make(map[string]*Record),
		hashes:  make(map[string]string),
	}
}

// Create stores a new record.
func (m *MemoryJournal) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return ErrAlreadyExists
	}
	m.put(rec)
	return nil
}

// Update replaces an existing record.
func (m *MemoryJournal) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; !exists {
		return &NotFoundError{Key: "id", Value: rec.ID}
	}
	m.put(rec)
	return nil
}

func (m *MemoryJournal) put(rec *Record) {
	// Store a copy to avoid mutation
	copy := *rec
	m.records[rec.ID] = &copy
	if rec.TxHash != "" {
		m.hashes[strings.ToUpper(rec.TxHash)] = rec.ID
	}
}

// Get retrieves a record by ID.
func (m *MemoryJournal) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[id]
	if !exists {
		return nil, &NotFoundError{Key: "id", Value: id}
	}
	copy := *rec
	return &copy, nil
}

// FindByHash retrieves the record that submitted txHash.
func (m *MemoryJournal) FindByHash(ctx context.Context, txHash string) (*Record, error) {
	m.mu.RLock()
	id, exists := m.hashes[strings.ToUpper(txHash)]
	m.mu.RUnlock()
	if !exists {
		return nil, &NotFoundError{Key: "tx hash", Value: txHash}
	}
	return m.Get(ctx, id)
}

// List returns records newest first.
func (m *MemoryJournal) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	var records []*Record
	for _, id := range ids {
		if opts.Limit > 0 && len(records) >= opts.Limit {
			break
		}
		rec := m.records[id]
		if opts.State != "" && rec.State != opts.State {
			continue
		}
		copy := *rec
		records = append(records, &copy)
	}
	return records, nil
}

// Close is a no-op.
func (m *MemoryJournal) Close() error {
	return nil
}
