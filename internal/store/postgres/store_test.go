package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_RunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM companies WHERE id = \\$1 FOR UPDATE").
			WithArgs("company1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("company1"))
		mock.ExpectCommit()

		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			return tx.LockCompany(ctx, "company1")
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the callback fails", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does not commit a cancelled unit of work", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		cctx, cancel := context.WithCancel(ctx)
		err := s.RunInTx(cctx, "company1", func(ctx context.Context, tx store.Tx) error {
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.Equal(t, store.ErrNotFound, mapError(sql.ErrNoRows))

	dup := mapError(&pq.Error{Code: "23505", Constraint: "accounts_company_id_code_key"})
	assert.ErrorIs(t, dup, store.ErrDuplicate)
	assert.Contains(t, dup.Error(), "accounts_company_id_code_key")

	fk := mapError(&pq.Error{Code: "23503", Constraint: "entry_lines_account_id_fkey"})
	assert.ErrorIs(t, fk, store.ErrForeignKey)

	assert.Equal(t, store.ErrNotFound, mapError(&pq.Error{Code: "22P02"}))

	other := &pq.Error{Code: "40001"}
	assert.Equal(t, error(other), mapError(other))
}

func TestPgTx_Company(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("missing company", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, name, created_at, updated_at FROM companies").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))
		mock.ExpectRollback()

		err := s.RunInTx(ctx, "missing", func(ctx context.Context, tx store.Tx) error {
			_, err := tx.GetCompany(ctx, "missing")
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update touching no row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE companies").
			WithArgs("Acme", now, "company1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			return tx.UpdateCompany(ctx, &models.Company{ID: "company1", Name: "Acme", UpdatedAt: now})
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user email is stored lowercase", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WithArgs("user1", "company1", "owner@acme.test", "hash", now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			return tx.InsertUser(ctx, &models.AppUser{
				ID: "user1", CompanyID: "company1", Email: "Owner@Acme.test",
				PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
			})
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTx_Transactions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	date := models.NewDate(2024, time.January, 15)

	t.Run("insert assigns the generated id", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs("company1", "2024-01-15", nil, nil, now, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectExec("INSERT INTO entry_lines").
			WithArgs("line1", int64(42), 1, "cash", nil, sqlmock.AnyArg(), "100", nil, now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO entry_lines").
			WithArgs("line2", int64(42), 2, "revenue", nil, sqlmock.AnyArg(), "100", nil, now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn := &models.Transaction{CompanyID: "company1", TransactionDate: date, CreatedAt: now, UpdatedAt: now}
		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				return err
			}
			return tx.InsertEntryLines(ctx, []models.EntryLine{
				{ID: "line1", TransactionID: txn.ID, LineNumber: 1, AccountID: "cash", Side: models.SideDebit, Amount: decimal.NewFromInt(100), CreatedAt: now, UpdatedAt: now},
				{ID: "line2", TransactionID: txn.ID, LineNumber: 2, AccountID: "revenue", Side: models.SideCredit, Amount: decimal.NewFromInt(100), CreatedAt: now, UpdatedAt: now},
			})
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(42), txn.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("line insert maps foreign key violations", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO entry_lines").
			WillReturnError(&pq.Error{Code: "23503", Constraint: "entry_lines_account_id_fkey"})
		mock.ExpectRollback()

		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			return tx.InsertEntryLines(ctx, []models.EntryLine{
				{ID: "line1", TransactionID: 1, LineNumber: 1, AccountID: "gone", Side: models.SideDebit, Amount: decimal.NewFromInt(1)},
			})
		})
		assert.ErrorIs(t, err, store.ErrForeignKey)
		assert.Contains(t, err.Error(), "insert line 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get loads lines in order", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE company_id = \\$1 AND id = \\$2").
			WithArgs("company1", int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "transaction_date", "description", "created_by_user_id", "created_at", "updated_at"}).
				AddRow(int64(7), "company1", date.Time(), "Sale", nil, now, now))
		mock.ExpectQuery("SELECT (.+) FROM entry_lines WHERE transaction_id = \\$1 ORDER BY line_number").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "line_number", "account_id", "partner_id", "side", "amount", "memo", "created_at", "updated_at"}).
				AddRow("l1", int64(7), 1, "cash", nil, int64(1), "250.50", nil, now, now).
				AddRow("l2", int64(7), 2, "revenue", nil, int64(2), "250.50", nil, now, now))
		mock.ExpectCommit()

		var got *models.Transaction
		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			var err error
			got, err = tx.GetTransaction(ctx, "company1", 7)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, date, got.TransactionDate)
		require.NotNil(t, got.Description)
		assert.Equal(t, "Sale", *got.Description)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, models.SideDebit, got.Lines[0].Side)
		assert.Equal(t, models.SideCredit, got.Lines[1].Side)
		assert.True(t, got.Lines[0].Amount.Equal(decimal.RequireFromString("250.5")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list builds the keyset query", func(t *testing.T) {
		s, mock := newMockStore(t)
		from := models.NewDate(2024, time.January, 1)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE company_id = \\$1 AND transaction_date >= \\$2 AND \\(transaction_date, id\\) > \\(\\$3, \\$4\\) ORDER BY transaction_date, id LIMIT \\$5").
			WithArgs("company1", "2024-01-01", "2024-01-15", int64(3), 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "transaction_date", "description", "created_by_user_id", "created_at", "updated_at"}))
		mock.ExpectCommit()

		var got []models.Transaction
		err := s.RunInTx(ctx, "company1", func(ctx context.Context, tx store.Tx) error {
			var err error
			got, err = tx.ListTransactions(ctx, "company1", store.TransactionFilter{
				From:  &from,
				After: &store.Cursor{Date: date, ID: 3},
				Limit: 10,
			})
			return err
		})
		assert.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete of another tenant's transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM transactions").
			WithArgs("company2", int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := s.RunInTx(ctx, "company2", func(ctx context.Context, tx store.Tx) error {
			return tx.DeleteTransaction(ctx, "company2", 7)
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
