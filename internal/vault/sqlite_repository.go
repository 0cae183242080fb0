package vault

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepository stores memory records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository builds a repository backed by SQLite.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, record Record) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO memories (id, pair_id, blob_key, nonce, salt, schema_version, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PairID, record.BlobKey, record.Nonce, record.Salt, record.SchemaVersion, record.CreatedAt.UnixNano())
	return err
}

func (r *SQLiteRepository) Latest(ctx context.Context, pairID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, pair_id, blob_key, nonce, salt, schema_version, created_at
        FROM memories WHERE pair_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1`, pairID)

	var (
		rec       Record
		createdAt int64
	)
	if err := row.Scan(&rec.ID, &rec.PairID, &rec.BlobKey, &rec.Nonce, &rec.Salt, &rec.SchemaVersion, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}
