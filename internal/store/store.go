// Package store defines the storage boundary of the ledger. Implementations
// must run every RunInTx callback as one atomic unit: either all writes made
// through the Tx become visible, or none do.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerbook/backend/internal/models"
)

var (
	ErrNotFound   = errors.New("store: not found")
	ErrDuplicate  = errors.New("store: duplicate key")
	ErrForeignKey = errors.New("store: foreign key violation")
)

// Store is the entry point to persisted state.
type Store interface {
	// RunInTx executes fn inside one atomic unit of work scoped to
	// companyID. A non-nil error from fn, a cancelled context or a failed
	// commit leaves no trace of the writes made by fn.
	RunInTx(ctx context.Context, companyID string, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// TransactionFilter selects a page of transactions ordered by
// (transaction_date, id).
type TransactionFilter struct {
	From  *models.Date
	To    *models.Date
	After *Cursor
	Limit int
}

// Cursor is a keyset position in the (transaction_date, id) ordering.
type Cursor struct {
	Date models.Date
	ID   int64
}

// Tx exposes every row operation the services need. All lookups of
// company-owned rows take the company id and never match another tenant.
type Tx interface {
	// LockCompany serializes writers of one company's account hierarchy.
	LockCompany(ctx context.Context, companyID string) error

	InsertCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, companyID string) (*models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error

	InsertUser(ctx context.Context, u *models.AppUser) error
	GetUser(ctx context.Context, companyID, userID string) (*models.AppUser, error)
	GetUserByEmail(ctx context.Context, email string) (*models.AppUser, error)
	DeleteUser(ctx context.Context, companyID, userID string) error
	// ClearTransactionCreator nulls created_by_user_id on the user's
	// transactions and returns their ids.
	ClearTransactionCreator(ctx context.Context, companyID, userID string, at time.Time) ([]int64, error)

	InsertAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, companyID, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, companyID string) ([]models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, companyID, accountID string) error
	CountChildAccounts(ctx context.Context, companyID, accountID string) (int, error)
	CountAccountLines(ctx context.Context, companyID, accountID string) (int, error)

	InsertPartner(ctx context.Context, p *models.Partner) error
	GetPartner(ctx context.Context, companyID, partnerID string) (*models.Partner, error)
	ListPartners(ctx context.Context, companyID string, partnerType *models.PartnerType) ([]models.Partner, error)
	UpdatePartner(ctx context.Context, p *models.Partner) error
	DeletePartner(ctx context.Context, companyID, partnerID string) error
	// UnlinkPartnerLines clears partner_id on every line referencing the
	// partner and returns the ids of the transactions touched.
	UnlinkPartnerLines(ctx context.Context, companyID, partnerID string, at time.Time) ([]int64, error)

	// InsertTransaction stores the header and assigns t.ID.
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	InsertEntryLines(ctx context.Context, lines []models.EntryLine) error
	GetTransaction(ctx context.Context, companyID string, transactionID int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, companyID string, filter TransactionFilter) ([]models.Transaction, error)
	// DeleteTransaction removes the header and all of its lines.
	DeleteTransaction(ctx context.Context, companyID string, transactionID int64) error
}
