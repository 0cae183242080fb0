// Package app opens the configured backends and assembles the pairing and
// vault services on top of them. The HTTP server and the device CLI share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pairvault/pairvault/internal/blob"
	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/infra"
	"github.com/pairvault/pairvault/internal/metrics"
	"github.com/pairvault/pairvault/internal/notification"
	"github.com/pairvault/pairvault/internal/pairing"
	"github.com/pairvault/pairvault/internal/vault"
)

const connectTimeout = 5 * time.Second

// Backends holds the open store connections.
type Backends struct {
	Postgres *pgxpool.Pool
	SQLite   *sql.DB
	Cache    *redis.Client
	Blobs    blob.Store

	closers []func(context.Context) error
}

// Open connects every backend the configuration names. PostgreSQL wins over
// SQLite when both are set; with neither, development runs keep pairs in
// memory.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}

	switch {
	case cfg.DatabaseURL != "":
		if cfg.AutoMigrate {
			if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
		if err != nil {
			return nil, err
		}
		b.Postgres = pool
		b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
	case cfg.SQLitePath != "":
		db, err := infra.NewSQLiteDB(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.SQLite = db
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
	case cfg.IsDev():
		logger.Warn("no database configured, pairs and memories are kept in memory")
	default:
		return nil, fmt.Errorf("database is required when APP_ENV=%s", cfg.AppEnv)
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, poolOptions(cfg))
		if err != nil {
			b.Close(ctx) // nolint:errcheck
			return nil, err
		}
		b.Cache = cache
		b.closers = append(b.closers, func(context.Context) error { return cache.Close() })
	}

	blobs, closeBlobs, err := infra.NewBlobStore(ctx, cfg, b.Cache)
	if err != nil {
		b.Close(ctx) // nolint:errcheck
		return nil, err
	}
	b.Blobs = blobs
	b.closers = append(b.closers, closeBlobs)

	return b, nil
}

func poolOptions(cfg config.Config) infra.PoolOptions {
	return infra.PoolOptions{MaxConns: int32(cfg.MaxConns), ConnectTimeout: connectTimeout}
}

// Close releases every backend in reverse opening order.
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// PairRepository selects the pair store matching the open database.
func (b *Backends) PairRepository() pairing.Repository {
	switch {
	case b.Postgres != nil:
		return pairing.NewPostgresRepository(b.Postgres)
	case b.SQLite != nil:
		return pairing.NewSQLiteRepository(b.SQLite)
	default:
		return pairing.NewMemoryRepository()
	}
}

// MemoryRepository selects the memory record store matching the open database.
func (b *Backends) MemoryRepository() vault.Repository {
	switch {
	case b.Postgres != nil:
		return vault.NewPostgresRepository(b.Postgres)
	case b.SQLite != nil:
		return vault.NewSQLiteRepository(b.SQLite)
	default:
		return vault.NewMemoryRepository()
	}
}

// HealthChecks returns a ping per open backend, keyed by backend name.
func (b *Backends) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if b.Postgres != nil {
		checks["postgres"] = b.Postgres.Ping
	}
	if b.SQLite != nil {
		checks["sqlite"] = b.SQLite.PingContext
	}
	if b.Cache != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Cache.Ping(ctx).Err() }
	}
	return checks
}

// Services holds the domain services built over a set of backends.
type Services struct {
	Pairing *pairing.Service
	Vault   *vault.Service
}

// NewServices wires the pairing and vault services. recorder may be nil.
func NewServices(b *Backends, cfg config.Config, recorder metrics.Recorder, logger *slog.Logger) (Services, error) {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	notifier := notification.NewLoggerNotifier(logger)

	pairSvc := pairing.NewService(b.PairRepository(), notifier, recorder, logger)
	vaultSvc, err := vault.NewService(pairSvc, b.MemoryRepository(), b.Blobs,
		vault.WithSchemaVersion(cfg.SchemaVersion),
		vault.WithMaxImageBytes(cfg.MaxImageBytes),
		vault.WithNotifier(notifier),
		vault.WithMetrics(recorder),
		vault.WithLogger(logger),
	)
	if err != nil {
		return Services{}, err
	}
	return Services{Pairing: pairSvc, Vault: vaultSvc}, nil
}
