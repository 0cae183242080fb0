package pairing

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// SeedPair is a test helper that inserts a pair directly into the in-memory
// repository, bypassing the open-pair guard on CreateOpen. Pass an empty
// second token to seed an open pair. Any other repository fails the test.
func SeedPair(t testing.TB, repo Repository, first, second string) Pair {
	t.Helper()
	mem, ok := repo.(*memoryRepository)
	if !ok {
		t.Fatalf("SeedPair needs the in-memory repository, got %T", repo)
		return Pair{}
	}

	pair := Pair{ID: uuid.NewString(), FirstToken: first, SecondToken: second, CreatedAt: time.Now().UTC()}
	if second != "" {
		pair.CompletedAt = pair.CreatedAt
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.insert(pair)
	return pair
}
