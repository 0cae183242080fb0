package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists pairs. CreateOpen and CompleteAtomically are
// conditional writes: they fail with ErrConflict instead of overwriting a
// concurrent caller's result.
type Repository interface {
	FindByToken(ctx context.Context, token string) (Pair, error)
	FindOpenExcluding(ctx context.Context, token string) (Pair, error)
	CreateOpen(ctx context.Context, token string) (Pair, error)
	CompleteAtomically(ctx context.Context, pairID, secondToken string) (Pair, error)
	Get(ctx context.Context, id string) (Pair, error)
}

// pairingLockKey serialises pair writes through pg_advisory_xact_lock.
const pairingLockKey int64 = 0x70616972

const uniqueViolation = "23505"

const pairColumns = `p.id, p.first_token, COALESCE(p.second_token, ''), p.created_at, p.completed_at`

// PostgresRepository stores pairs in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByToken looks the token up in either slot through the pair_tokens index.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (Pair, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pairColumns+`
        FROM pair_tokens t JOIN pairs p ON p.id = t.pair_id
        WHERE t.token = $1`, token)
	return scanPair(row)
}

// FindOpenExcluding returns the oldest open pair waiting on a token other than the given one.
func (r *PostgresRepository) FindOpenExcluding(ctx context.Context, token string) (Pair, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pairColumns+`
        FROM pairs p
        WHERE p.second_token IS NULL AND p.first_token <> $1
        ORDER BY p.created_at, p.id
        LIMIT 1`, token)
	return scanPair(row)
}

// CreateOpen inserts a new open pair unless the token is already claimed or
// another open pair is waiting for a second token.
func (r *PostgresRepository) CreateOpen(ctx context.Context, token string) (Pair, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return Pair{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var blocked bool
	if err := tx.QueryRow(ctx, `SELECT
            EXISTS (SELECT 1 FROM pair_tokens WHERE token = $1)
            OR EXISTS (SELECT 1 FROM pairs WHERE second_token IS NULL AND first_token <> $1)`, token).Scan(&blocked); err != nil {
		return Pair{}, err
	}
	if blocked {
		return Pair{}, ErrConflict
	}

	pair := Pair{ID: uuid.NewString(), FirstToken: token, CreatedAt: time.Now().UTC()}
	if _, err := tx.Exec(ctx, `INSERT INTO pairs (id, first_token, created_at) VALUES ($1, $2, $3)`,
		uuid.MustParse(pair.ID), token, pair.CreatedAt); err != nil {
		return Pair{}, mapWriteErr(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO pair_tokens (token, pair_id) VALUES ($1, $2)`,
		token, uuid.MustParse(pair.ID)); err != nil {
		return Pair{}, mapWriteErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Pair{}, mapWriteErr(err)
	}
	return pair, nil
}

// CompleteAtomically fills the second slot only while the pair is still open.
func (r *PostgresRepository) CompleteAtomically(ctx context.Context, pairID, secondToken string) (Pair, error) {
	id, err := uuid.Parse(pairID)
	if err != nil {
		return Pair{}, ErrNotFound
	}

	tx, err := r.begin(ctx)
	if err != nil {
		return Pair{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE pairs p SET second_token = $2, completed_at = $3
        WHERE p.id = $1 AND p.second_token IS NULL AND p.first_token <> $2
        RETURNING `+pairColumns, id, secondToken, time.Now().UTC())
	pair, err := scanPair(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pairs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return Pair{}, err
		}
		if !exists {
			return Pair{}, ErrNotFound
		}
		return Pair{}, ErrConflict
	}
	if err != nil {
		return Pair{}, mapWriteErr(err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO pair_tokens (token, pair_id) VALUES ($1, $2)`, secondToken, id); err != nil {
		return Pair{}, mapWriteErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Pair{}, mapWriteErr(err)
	}
	return pair, nil
}

// Get fetches a pair by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Pair, error) {
	pairID, err := uuid.Parse(id)
	if err != nil {
		return Pair{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+pairColumns+` FROM pairs p WHERE p.id = $1`, pairID)
	return scanPair(row)
}

func (r *PostgresRepository) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin pair tx: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pairingLockKey); err != nil {
		tx.Rollback(ctx) // nolint:errcheck
		return nil, fmt.Errorf("lock pairs: %w", err)
	}
	return tx, nil
}

func scanPair(row pgx.Row) (Pair, error) {
	var (
		p           Pair
		id          uuid.UUID
		completedAt *time.Time
	)
	if err := row.Scan(&id, &p.FirstToken, &p.SecondToken, &p.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pair{}, ErrNotFound
		}
		return Pair{}, err
	}
	p.ID = id.String()
	p.CreatedAt = p.CreatedAt.UTC()
	if completedAt != nil {
		p.CompletedAt = completedAt.UTC()
	}
	return p, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
