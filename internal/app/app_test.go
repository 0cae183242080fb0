package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/logging"
	"github.com/pairvault/pairvault/internal/payload"
)

func TestOpenSQLiteWithRedisBlobs(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := config.Config{
		AppEnv:        "production",
		SQLitePath:    filepath.Join(t.TempDir(), "pairvault.db"),
		RedisURL:      "redis://" + mr.Addr(),
		BlobBackend:   config.BlobBackendRedis,
		SchemaVersion: 2,
		MaxImageBytes: 1 << 20,
	}

	b, err := Open(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close(ctx) // nolint:errcheck

	checks := b.HealthChecks()
	for _, name := range []string{"sqlite", "redis"} {
		check, ok := checks[name]
		if !ok {
			t.Fatalf("expected %s health check", name)
		}
		if err := check(ctx); err != nil {
			t.Fatalf("%s ping: %v", name, err)
		}
	}

	svc, err := NewServices(b, cfg, nil, logging.Discard())
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if _, err := svc.Pairing.Resolve(ctx, "T1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res, err := svc.Pairing.Resolve(ctx, "T2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ref, err := svc.Vault.Lock(ctx, res.Pair, payload.Contents{Note: "hello", Image: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists("blob:v1:" + ref.BlobKey) {
		t.Fatalf("expected ciphertext in redis under %s", ref.BlobKey)
	}
	got, err := svc.Vault.Open(ctx, res.Pair)
	if err != nil || got.Note != "hello" {
		t.Fatalf("open: %+v (%v)", got, err)
	}
}

func TestOpenRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := config.Config{AppEnv: "production", BlobBackend: config.BlobBackendMemory}
	if _, err := Open(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected an error without a database")
	}
}

func TestOpenDevFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{AppEnv: "development", BlobBackend: config.BlobBackendMemory, SchemaVersion: 2, MaxImageBytes: 1024}
	b, err := Open(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close(ctx) // nolint:errcheck
	if len(b.HealthChecks()) != 0 {
		t.Fatalf("expected no backends to ping")
	}
	if _, err := NewServices(b, cfg, nil, logging.Discard()); err != nil {
		t.Fatalf("services: %v", err)
	}
}
