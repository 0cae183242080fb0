package blob

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "memories/7f1c/abc-123"

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before put, got %v", err)
	}

	data := []byte{0x00, 0x01, 0xfe, 0xff}
	if err := s.Put(ctx, key, data); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 0x42 // caller mutation must not leak into the store

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte{0x00, 0x01, 0xfe, 0xff}) {
		t.Fatalf("unexpected blob %x", got)
	}

	if err := s.Put(ctx, key, []byte("replaced")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get(ctx, key)
	if string(got) != "replaced" {
		t.Fatalf("expected overwrite, got %q", got)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	for _, bad := range []string{"", "../escape", "a//b", "a/./b", "space key", "/abs"} {
		if err := s.Put(ctx, bad, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Put(context.Background(), "memories/p/r", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "memories", "p", "r.blob"))
	if err != nil {
		t.Fatalf("stat blob: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client))

	if err := NewRedisStore(client).Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists(redisKeyPrefix + "k") {
		t.Fatalf("expected namespaced redis key")
	}
	if ttl := mr.TTL(redisKeyPrefix + "k"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"a", "memories/1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed/3f2c", "x.y_z-1"} {
		if err := ValidateKey(ok); err != nil {
			t.Fatalf("key %q: unexpected error %v", ok, err)
		}
	}
}
