package vault

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string][]Record)}
}

func (r *memoryRepository) Create(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records[record.PairID] {
		if existing.ID == record.ID {
			return errors.New("memory exists")
		}
	}
	r.records[record.PairID] = append(r.records[record.PairID], record)
	return nil
}

func (r *memoryRepository) Latest(_ context.Context, pairID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.records[pairID]
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	latest := records[0]
	for _, rec := range records[1:] {
		if !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest, nil
}
