// Package postgres implements store.Store on PostgreSQL through sqlx and
// lib/pq. Uniqueness and foreign keys are enforced by the schema; SQLSTATE
// codes are mapped onto the store sentinels.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ledgerbook/backend/internal/store"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	// A malformed uuid can never match a row.
	codeInvalidText = "22P02"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) RunInTx(ctx context.Context, companyID string, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	// A cancelled caller must not commit.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type pgTx struct {
	tx *sqlx.Tx
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", store.ErrForeignKey, pqErr.Constraint)
		case codeInvalidText:
			return store.ErrNotFound
		}
	}
	return err
}

// execOne runs a statement that must touch exactly one row.
func (t *pgTx) execOne(ctx context.Context, query string, args ...any) error {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) LockCompany(ctx context.Context, companyID string) error {
	var id string
	err := t.tx.QueryRowxContext(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, companyID).Scan(&id)
	return mapError(err)
}

var _ store.Tx = (*pgTx)(nil)
