package vault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists memory metadata. The most recently created record per
// pair is authoritative.
type Repository interface {
	Create(ctx context.Context, record Record) error
	Latest(ctx context.Context, pairID string) (Record, error)
}

// PostgresRepository stores memory records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a memory record.
func (r *PostgresRepository) Create(ctx context.Context, record Record) error {
	recordID, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	pairID, err := uuid.Parse(record.PairID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO memories (id, pair_id, blob_key, nonce, salt, schema_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		recordID, pairID, record.BlobKey, record.Nonce, record.Salt, record.SchemaVersion, record.CreatedAt.UTC())
	return err
}

// Latest fetches the newest record for a pair.
func (r *PostgresRepository) Latest(ctx context.Context, pairID string) (Record, error) {
	pairUUID, err := uuid.Parse(pairID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, pair_id, blob_key, nonce, salt, schema_version, created_at
        FROM memories WHERE pair_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1`, pairUUID)

	var (
		rec       Record
		idVal     uuid.UUID
		pairVal   uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&idVal, &pairVal, &rec.BlobKey, &rec.Nonce, &rec.Salt, &rec.SchemaVersion, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.ID = idVal.String()
	rec.PairID = pairVal.String()
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}
