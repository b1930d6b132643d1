package services

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/ledgerbook/backend/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) LogPosted(companyID string, transactionID int64, lines int, total decimal.Decimal) {
	m.Called(companyID, transactionID, lines, total)
}

func (m *MockAuditRecorder) LogDeleted(companyID string, transactionID int64) {
	m.Called(companyID, transactionID)
}

func (m *MockAuditRecorder) LogError(companyID, operation string, err error) {
	m.Called(companyID, operation, err)
}

// newPermissiveAudit accepts every call; tests assert on the ones they
// care about.
func newPermissiveAudit() *MockAuditRecorder {
	m := &MockAuditRecorder{}
	m.On("LogPosted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("LogDeleted", mock.Anything, mock.Anything).Return().Maybe()
	m.On("LogError", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	return m
}

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// testEnv is a memory store with two companies and the services over it.
type testEnv struct {
	store    *memory.Store
	audit    *MockAuditRecorder
	tenants  *TenantService
	accounts *AccountService
	partners *PartnerService
	ledger   *LedgerService
	users    *UserService
}

const (
	companyA = "00000000-0000-0000-0000-00000000000a"
	companyB = "00000000-0000-0000-0000-00000000000b"
	userA    = "user-a"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	for _, id := range []string{companyA, companyB} {
		err := st.RunInTx(context.Background(), id, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertCompany(ctx, &models.Company{ID: id, Name: "Company " + id[len(id)-1:], CreatedAt: fixedNow, UpdatedAt: fixedNow})
		})
		require.NoError(t, err)
	}
	err := st.RunInTx(context.Background(), companyA, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertUser(ctx, &models.AppUser{ID: userA, CompanyID: companyA, Email: "owner@a.test", CreatedAt: fixedNow, UpdatedAt: fixedNow})
	})
	require.NoError(t, err)

	env := &testEnv{
		store:    st,
		audit:    newPermissiveAudit(),
		tenants:  NewTenantService(st),
		accounts: NewAccountService(st, nil),
		partners: NewPartnerService(st, nil),
		users:    NewUserService(st, nil),
	}
	env.ledger = NewLedgerService(st, nil, env.audit, config.LedgerConfig{MaxLines: 10, ListPageSize: 2})
	env.tenants.now = fixedClock
	env.accounts.now = fixedClock
	env.partners.now = fixedClock
	env.ledger.now = fixedClock
	env.users.now = fixedClock
	return env
}

func (e *testEnv) account(t *testing.T, companyID, code string) *models.Account {
	t.Helper()
	a, err := e.accounts.CreateAccount(context.Background(), companyID, CreateAccountRequest{Code: code, Name: "Account " + code})
	require.NoError(t, err)
	return a
}

func (e *testEnv) partner(t *testing.T, companyID, name string) *models.Partner {
	t.Helper()
	p, err := e.partners.CreatePartner(context.Background(), companyID, CreatePartnerRequest{Type: models.PartnerTypeCustomer, Name: name})
	require.NoError(t, err)
	return p
}

// countRows returns the number of transactions and lines of companyID.
func (e *testEnv) countRows(t *testing.T, companyID string) (txns, lines int) {
	t.Helper()
	err := e.store.RunInTx(context.Background(), companyID, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.ListTransactions(ctx, companyID, store.TransactionFilter{})
		for _, txn := range list {
			lines += len(txn.Lines)
		}
		txns = len(list)
		return err
	})
	require.NoError(t, err)
	return txns, lines
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }
