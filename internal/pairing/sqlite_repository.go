package pairing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository stores pairs in a single-file SQLite database. The
// database must be opened with _txlock=immediate so every transaction takes
// the write lock up front.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository builds a repository backed by SQLite.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqlitePairColumns = `id, first_token, second_token, created_at, completed_at`

func (r *SQLiteRepository) FindByToken(ctx context.Context, token string) (Pair, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlitePairColumns+`
        FROM pair_tokens JOIN pairs ON pairs.id = pair_tokens.pair_id
        WHERE pair_tokens.token = ?`, token)
	return scanSQLitePair(row)
}

func (r *SQLiteRepository) FindOpenExcluding(ctx context.Context, token string) (Pair, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlitePairColumns+`
        FROM pairs
        WHERE second_token IS NULL AND first_token <> ?
        ORDER BY created_at, id
        LIMIT 1`, token)
	return scanSQLitePair(row)
}

func (r *SQLiteRepository) CreateOpen(ctx context.Context, token string) (Pair, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Pair{}, fmt.Errorf("begin pair tx: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var blocked bool
	if err := tx.QueryRowContext(ctx, `SELECT
            EXISTS (SELECT 1 FROM pair_tokens WHERE token = ?1)
            OR EXISTS (SELECT 1 FROM pairs WHERE second_token IS NULL AND first_token <> ?1)`, token).Scan(&blocked); err != nil {
		return Pair{}, err
	}
	if blocked {
		return Pair{}, ErrConflict
	}

	pair := Pair{ID: uuid.NewString(), FirstToken: token, CreatedAt: time.Now().UTC()}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pairs (id, first_token, created_at) VALUES (?, ?, ?)`,
		pair.ID, token, pair.CreatedAt.UnixNano()); err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pair_tokens (token, pair_id) VALUES (?, ?)`, token, pair.ID); err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}
	return pair, nil
}

func (r *SQLiteRepository) CompleteAtomically(ctx context.Context, pairID, secondToken string) (Pair, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Pair{}, fmt.Errorf("begin pair tx: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	row := tx.QueryRowContext(ctx, `UPDATE pairs SET second_token = ?2, completed_at = ?3
        WHERE id = ?1 AND second_token IS NULL AND first_token <> ?2
        RETURNING `+sqlitePairColumns, pairID, secondToken, time.Now().UTC().UnixNano())
	pair, err := scanSQLitePair(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pairs WHERE id = ?)`, pairID).Scan(&exists); err != nil {
			return Pair{}, err
		}
		if !exists {
			return Pair{}, ErrNotFound
		}
		return Pair{}, ErrConflict
	}
	if err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO pair_tokens (token, pair_id) VALUES (?, ?)`, secondToken, pairID); err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return Pair{}, mapSQLiteWriteErr(err)
	}
	return pair, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Pair, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlitePairColumns+` FROM pairs WHERE id = ?`, id)
	return scanSQLitePair(row)
}

func scanSQLitePair(row *sql.Row) (Pair, error) {
	var (
		p           Pair
		second      sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.FirstToken, &second, &createdAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pair{}, ErrNotFound
		}
		return Pair{}, err
	}
	p.SecondToken = second.String
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	if completedAt.Valid {
		p.CompletedAt = time.Unix(0, completedAt.Int64).UTC()
	}
	return p, nil
}

func mapSQLiteWriteErr(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrConflict
		}
	}
	return err
}
