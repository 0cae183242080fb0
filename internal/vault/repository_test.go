package vault

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pairvault/pairvault/internal/blob"
	"github.com/pairvault/pairvault/internal/infra"
	"github.com/pairvault/pairvault/internal/pairing"
	"github.com/pairvault/pairvault/internal/payload"
)

// PAIRVAULT_TEST_DATABASE_URL names a disposable database; its pairs and
// memories are truncated.
func TestPostgresRepositoriesBackTheVault(t *testing.T) {
	url := os.Getenv("PAIRVAULT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PAIRVAULT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	if err := infra.RunMigrations(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := infra.NewPostgresPool(ctx, url, infra.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, `TRUNCATE pairs CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	pairs := pairing.NewService(pairing.NewPostgresRepository(pool), nil, nil, nil)
	if _, err := pairs.Resolve(ctx, "T1"); err != nil {
		t.Fatalf("resolve T1: %v", err)
	}
	res, err := pairs.Resolve(ctx, "T2")
	if err != nil {
		t.Fatalf("resolve T2: %v", err)
	}

	records := NewPostgresRepository(pool)
	if _, err := records.Latest(ctx, res.Pair.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := records.Latest(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a malformed id, got %v", err)
	}

	svc, err := NewService(pairs, records, blob.NewMemoryStore(), WithClock(steppingClock(time.Now().UTC())))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Lock(ctx, res.Pair, payload.Contents{Note: "first", Image: testImage}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	ref, err := svc.Lock(ctx, res.Pair, payload.Contents{Note: "second", Image: testImage})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	latest, err := records.Latest(ctx, res.Pair.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != ref.RecordID || len(latest.Salt) != 16 || len(latest.Nonce) != 12 {
		t.Fatalf("unexpected latest record %+v", latest)
	}

	got, err := svc.Open(ctx, res.Pair)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Note != "second" {
		t.Fatalf("expected the latest memory, got %q", got.Note)
	}
}
