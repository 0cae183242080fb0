package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	pairs   map[string]Pair
	tokens  map[string]string
	order   []string
	nowFunc func() time.Time
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		pairs:   make(map[string]Pair),
		tokens:  make(map[string]string),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tokens[token]
	if !ok {
		return Pair{}, ErrNotFound
	}
	return r.pairs[id], nil
}

func (r *memoryRepository) FindOpenExcluding(_ context.Context, token string) (Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pair, ok := r.oldestOpenExcluding(token); ok {
		return pair, nil
	}
	return Pair{}, ErrNotFound
}

func (r *memoryRepository) CreateOpen(_ context.Context, token string) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, claimed := r.tokens[token]; claimed {
		return Pair{}, ErrConflict
	}
	if _, waiting := r.oldestOpenExcluding(token); waiting {
		return Pair{}, ErrConflict
	}
	pair := Pair{ID: uuid.NewString(), FirstToken: token, CreatedAt: r.nowFunc()}
	r.insert(pair)
	return pair, nil
}

func (r *memoryRepository) CompleteAtomically(_ context.Context, pairID, secondToken string) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair, ok := r.pairs[pairID]
	if !ok {
		return Pair{}, ErrNotFound
	}
	if pair.IsComplete() || pair.FirstToken == secondToken {
		return Pair{}, ErrConflict
	}
	if _, claimed := r.tokens[secondToken]; claimed {
		return Pair{}, ErrConflict
	}
	pair.SecondToken = secondToken
	pair.CompletedAt = r.nowFunc()
	r.pairs[pairID] = pair
	r.tokens[secondToken] = pairID
	return pair, nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pair, ok := r.pairs[id]
	if !ok {
		return Pair{}, ErrNotFound
	}
	return pair, nil
}

// oldestOpenExcluding walks pairs in creation order. Callers hold mu.
func (r *memoryRepository) oldestOpenExcluding(token string) (Pair, bool) {
	for _, id := range r.order {
		pair := r.pairs[id]
		if !pair.IsComplete() && pair.FirstToken != token {
			return pair, true
		}
	}
	return Pair{}, false
}

func (r *memoryRepository) insert(pair Pair) {
	r.pairs[pair.ID] = pair
	r.order = append(r.order, pair.ID)
	r.tokens[pair.FirstToken] = pair.ID
	if pair.SecondToken != "" {
		r.tokens[pair.SecondToken] = pair.ID
	}
}
