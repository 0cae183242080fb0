package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pairvault/pairvault/internal/blob"
	"github.com/pairvault/pairvault/internal/config"
)

// NewBlobStore builds the ciphertext store selected by BLOB_BACKEND. The
// returned close func releases any connection the store opened itself.
func NewBlobStore(ctx context.Context, cfg config.Config, cache *redis.Client) (blob.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.BlobBackend {
	case config.BlobBackendRedis:
		if cache == nil {
			return nil, nil, fmt.Errorf("blob backend %s needs a redis client", cfg.BlobBackend)
		}
		return blob.NewRedisStore(cache), noop, nil
	case config.BlobBackendFile:
		store, err := blob.NewFileStore(cfg.BlobDir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.BlobBackendMongo:
		client, err := NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		return blob.NewMongoStore(coll), client.Disconnect, nil
	case config.BlobBackendMemory:
		return blob.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
