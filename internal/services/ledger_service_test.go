package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func saleInput(cash, revenue *models.Account, debit, credit string) PostTransactionInput {
	return PostTransactionInput{
		TransactionDate: models.NewDate(2024, time.January, 5),
		Lines: []PostLine{
			{AccountID: cash.ID, Side: models.SideDebit, Amount: amount(debit)},
			{AccountID: revenue.ID, Side: models.SideCredit, Amount: amount(credit)},
		},
	}
}

func TestLedgerService_PostTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("balanced transaction is posted", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		in := saleInput(cash, revenue, "100.00", "100.00")
		in.Description = strPtr("  Cash sale  ")
		in.CreatedByUserID = strPtr(userA)

		txn, err := env.ledger.PostTransaction(ctx, companyA, in)
		require.NoError(t, err)

		assert.NotZero(t, txn.ID)
		assert.Equal(t, companyA, txn.CompanyID)
		assert.Equal(t, "Cash sale", *txn.Description)
		assert.Equal(t, fixedNow, txn.CreatedAt)
		assert.Equal(t, fixedNow, txn.UpdatedAt)
		require.Len(t, txn.Lines, 2)
		for i, l := range txn.Lines {
			assert.Equal(t, i+1, l.LineNumber)
			assert.Equal(t, txn.ID, l.TransactionID)
			assert.NotEmpty(t, l.ID)
			assert.Equal(t, fixedNow, l.CreatedAt)
			assert.Equal(t, fixedNow, l.UpdatedAt)
		}
		assert.Equal(t, cash.ID, txn.Lines[0].AccountID)
		assert.Equal(t, revenue.ID, txn.Lines[1].AccountID)

		stored, err := env.ledger.GetTransaction(ctx, companyA, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, txn, stored)

		env.audit.AssertCalled(t, "LogPosted", companyA, txn.ID, 2, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(amount("100"))
		}))
	})

	t.Run("unbalanced transaction reports both totals", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		_, err := env.ledger.PostTransaction(ctx, companyA, saleInput(cash, revenue, "100.00", "99.99"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "unbalanced transaction", vErr.Message)
		assert.Equal(t, "100.00", vErr.Debit.StringFixed(2))
		assert.Equal(t, "99.99", vErr.Credit.StringFixed(2))

		txns, lines := env.countRows(t, companyA)
		assert.Zero(t, txns)
		assert.Zero(t, lines)
		env.audit.AssertCalled(t, "LogError", companyA, "post transaction", err)
	})

	t.Run("single line is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")

		_, err := env.ledger.PostTransaction(ctx, companyA, PostTransactionInput{
			TransactionDate: models.NewDate(2024, time.January, 5),
			Lines:           []PostLine{{AccountID: cash.ID, Side: models.SideDebit, Amount: amount("10")}},
		})
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "insufficient lines", vErr.Message)
	})

	t.Run("line count is checked before references", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.ledger.PostTransaction(ctx, companyA, PostTransactionInput{
			TransactionDate: models.NewDate(2024, time.January, 5),
			Lines:           []PostLine{{AccountID: "missing", Side: models.SideDebit, Amount: amount("10")}},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("too many lines", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		lines := make([]PostLine, 11)
		for i := range lines {
			lines[i] = PostLine{AccountID: cash.ID, Side: models.SideDebit, Amount: amount("1")}
		}
		_, err := env.ledger.PostTransaction(ctx, companyA, PostTransactionInput{TransactionDate: models.NewDate(2024, 1, 5), Lines: lines})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("account of another company is not found", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		foreign := env.account(t, companyB, "4000")

		_, err := env.ledger.PostTransaction(ctx, companyA, saleInput(cash, foreign, "10", "10"))
		var nfErr *NotFoundError
		require.True(t, errors.As(err, &nfErr))
		assert.Equal(t, "account", nfErr.Resource)
		assert.Equal(t, foreign.ID, nfErr.ID)

		txns, _ := env.countRows(t, companyA)
		assert.Zero(t, txns)
	})

	t.Run("missing reference wins over a bad amount", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		_, err := env.ledger.PostTransaction(ctx, companyA, PostTransactionInput{
			TransactionDate: models.NewDate(2024, time.January, 5),
			Lines: []PostLine{
				{AccountID: cash.ID, Side: models.SideDebit, Amount: amount("-1")},
				{AccountID: "missing", Side: models.SideCredit, Amount: amount("1")},
			},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("partner of another company is not found", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")
		foreign := env.partner(t, companyB, "Globex")

		in := saleInput(cash, revenue, "10", "10")
		in.Lines[0].PartnerID = &foreign.ID
		_, err := env.ledger.PostTransaction(ctx, companyA, in)
		var nfErr *NotFoundError
		require.True(t, errors.As(err, &nfErr))
		assert.Equal(t, "partner", nfErr.Resource)
	})

	t.Run("creator of another company is not found", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		in := saleInput(cash, revenue, "10", "10")
		in.CreatedByUserID = strPtr("someone-else")
		_, err := env.ledger.PostTransaction(ctx, companyA, in)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("line validation", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		tests := []struct {
			name   string
			mutate func(in *PostTransactionInput)
			field  string
		}{
			{"zero amount", func(in *PostTransactionInput) { in.Lines[0].Amount = decimal.Zero }, "lines[0].amount"},
			{"negative amount", func(in *PostTransactionInput) { in.Lines[1].Amount = amount("-10") }, "lines[1].amount"},
			{"three decimal places", func(in *PostTransactionInput) { in.Lines[0].Amount = amount("10.005") }, "lines[0].amount"},
			{"amount out of range", func(in *PostTransactionInput) { in.Lines[0].Amount = amount("10000000000000000") }, "lines[0].amount"},
			{"unknown side", func(in *PostTransactionInput) { in.Lines[1].Side = models.Side(0) }, "lines[1].side"},
			{"memo too long", func(in *PostTransactionInput) { in.Lines[0].Memo = strPtr(string(make([]byte, 1001))) }, "lines[0].memo"},
			{"description too long", func(in *PostTransactionInput) { in.Description = strPtr(string(make([]byte, 501))) }, "description"},
			{"missing date", func(in *PostTransactionInput) { in.TransactionDate = models.Date{} }, "transactionDate"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				in := saleInput(cash, revenue, "10", "10")
				tt.mutate(&in)
				_, err := env.ledger.PostTransaction(ctx, companyA, in)
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr), "got %v", err)
				assert.Equal(t, tt.field, vErr.Field)
			})
		}

		txns, _ := env.countRows(t, companyA)
		assert.Zero(t, txns)
	})

	t.Run("exact decimal arithmetic", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		// 0.10 + 0.20 must equal 0.30 exactly.
		txn, err := env.ledger.PostTransaction(ctx, companyA, PostTransactionInput{
			TransactionDate: models.NewDate(2024, time.January, 5),
			Lines: []PostLine{
				{AccountID: cash.ID, Side: models.SideDebit, Amount: amount("0.10")},
				{AccountID: cash.ID, Side: models.SideDebit, Amount: amount("0.20")},
				{AccountID: revenue.ID, Side: models.SideCredit, Amount: amount("0.30")},
			},
		})
		require.NoError(t, err)
		debit, credit := txn.Totals()
		assert.True(t, debit.Equal(credit))
		assert.Equal(t, []int{1, 2, 3}, []int{txn.Lines[0].LineNumber, txn.Lines[1].LineNumber, txn.Lines[2].LineNumber})
	})

	t.Run("cancelled context leaves no trace", func(t *testing.T) {
		env := newTestEnv(t)
		cash := env.account(t, companyA, "1000")
		revenue := env.account(t, companyA, "4000")

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := env.ledger.PostTransaction(cctx, companyA, saleInput(cash, revenue, "10", "10"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrStorage)

		txns, lines := env.countRows(t, companyA)
		assert.Zero(t, txns)
		assert.Zero(t, lines)
	})
}

// failingStore fails every unit of work after fn ran, the way a failed
// commit would.
type failingStore struct {
	store.Store
	err error
}

func (f failingStore) RunInTx(ctx context.Context, companyID string, fn func(ctx context.Context, tx store.Tx) error) error {
	return f.Store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return f.err
	})
}

func TestLedgerService_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, companyA, "1000")
	revenue := env.account(t, companyA, "4000")

	commitErr := errors.New("connection reset")
	ledger := NewLedgerService(failingStore{Store: env.store, err: commitErr}, nil, newPermissiveAudit(), config.LedgerConfig{})

	_, err := ledger.PostTransaction(ctx, companyA, saleInput(cash, revenue, "10", "10"))
	var sErr *StorageError
	require.True(t, errors.As(err, &sErr))
	assert.ErrorIs(t, err, commitErr)

	txns, lines := env.countRows(t, companyA)
	assert.Zero(t, txns)
	assert.Zero(t, lines)
}

func TestLedgerService_ConcurrentPostingAcrossCompanies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cashA := env.account(t, companyA, "1000")
	revenueA := env.account(t, companyA, "4000")
	cashB := env.account(t, companyB, "1000")
	revenueB := env.account(t, companyB, "4000")

	commitErr := errors.New("connection reset")
	failing := NewLedgerService(failingStore{Store: env.store, err: commitErr}, nil, newPermissiveAudit(), config.LedgerConfig{MaxLines: 10, ListPageSize: 2})

	const (
		writers    = 3
		iterations = 20
	)

	var (
		mu        sync.Mutex
		committed = map[string][]int64{}
	)
	record := func(companyID string, txn *models.Transaction) {
		mu.Lock()
		defer mu.Unlock()
		committed[companyID] = append(committed[companyID], txn.ID)
	}

	checkLines := func(txn models.Transaction) {
		debit, credit := txn.Totals()
		assert.True(t, debit.Equal(credit), "transaction %d is unbalanced", txn.ID)
		for i, l := range txn.Lines {
			assert.Equal(t, i+1, l.LineNumber, "transaction %d", txn.ID)
		}
	}

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range iterations {
				if (w+i)%2 == 1 {
					_, err := failing.PostTransaction(ctx, companyA, saleInput(cashA, revenueA, "10", "10"))
					assert.ErrorIs(t, err, commitErr)
					continue
				}
				txn, err := env.ledger.PostTransaction(ctx, companyA, saleInput(cashA, revenueA, "10", "10"))
				if assert.NoError(t, err) {
					record(companyA, txn)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range iterations {
				txn, err := env.ledger.PostTransaction(ctx, companyB, saleInput(cashB, revenueB, "25", "25"))
				if assert.NoError(t, err) {
					record(companyB, txn)
				}
			}
		}()
	}
	for _, companyID := range []string{companyA, companyB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations / 2 {
				for txn, err := range env.ledger.ListTransactions(ctx, companyID, DateRange{}) {
					if !assert.NoError(t, err) {
						break
					}
					assert.Equal(t, companyID, txn.CompanyID)
					checkLines(txn)
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, committed[companyA], writers*iterations/2)
	assert.Len(t, committed[companyB], writers*iterations)
	for companyID, ids := range committed {
		for _, id := range ids {
			txn, err := env.ledger.GetTransaction(ctx, companyID, id)
			require.NoError(t, err)
			require.Len(t, txn.Lines, 2)
			checkLines(*txn)
		}
		txns, lines := env.countRows(t, companyID)
		assert.Equal(t, len(ids), txns)
		assert.Equal(t, 2*len(ids), lines)
	}
}

func TestLedgerService_ListTransactions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, companyA, "1000")
	revenue := env.account(t, companyA, "4000")

	post := func(companyID string, day int) int64 {
		in := saleInput(cash, revenue, "10", "10")
		in.TransactionDate = models.NewDate(2024, time.January, day)
		txn, err := env.ledger.PostTransaction(ctx, companyID, in)
		require.NoError(t, err)
		return txn.ID
	}
	id1 := post(companyA, 9)
	id2 := post(companyA, 3)
	id3 := post(companyA, 9)
	id4 := post(companyA, 1)
	id5 := post(companyA, 20)

	collect := func(r DateRange) []int64 {
		var ids []int64
		for txn, err := range env.ledger.ListTransactions(ctx, companyA, r) {
			require.NoError(t, err)
			assert.Equal(t, companyA, txn.CompanyID)
			ids = append(ids, txn.ID)
		}
		return ids
	}

	t.Run("ordered by date then id across pages", func(t *testing.T) {
		assert.Equal(t, []int64{id4, id2, id1, id3, id5}, collect(DateRange{}))
	})

	t.Run("repeatable", func(t *testing.T) {
		seq := env.ledger.ListTransactions(ctx, companyA, DateRange{})
		var first, second []int64
		for txn, err := range seq {
			require.NoError(t, err)
			first = append(first, txn.ID)
		}
		for txn, err := range seq {
			require.NoError(t, err)
			second = append(second, txn.ID)
		}
		assert.Equal(t, first, second)
	})

	t.Run("date range is inclusive", func(t *testing.T) {
		from := models.NewDate(2024, time.January, 3)
		to := models.NewDate(2024, time.January, 9)
		assert.Equal(t, []int64{id2, id1, id3}, collect(DateRange{From: &from, To: &to}))
	})

	t.Run("early break", func(t *testing.T) {
		var ids []int64
		for txn, err := range env.ledger.ListTransactions(ctx, companyA, DateRange{}) {
			require.NoError(t, err)
			ids = append(ids, txn.ID)
			if len(ids) == 3 {
				break
			}
		}
		assert.Equal(t, []int64{id4, id2, id1}, ids)
	})

	t.Run("scoped to the company", func(t *testing.T) {
		for _, err := range env.ledger.ListTransactions(ctx, companyB, DateRange{}) {
			require.NoError(t, err)
			t.Fatal("company B has no transactions")
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		from := models.NewDate(2024, time.February, 1)
		to := models.NewDate(2024, time.January, 1)
		for _, err := range env.ledger.ListTransactions(ctx, companyA, DateRange{From: &from, To: &to}) {
			assert.ErrorIs(t, err, ErrValidation)
		}
	})

	t.Run("pages", func(t *testing.T) {
		page, err := env.ledger.ListTransactionPage(ctx, companyA, DateRange{}, nil, 2)
		require.NoError(t, err)
		require.Len(t, page.Transactions, 2)
		require.NotNil(t, page.Next)
		assert.Equal(t, id2, page.Next.ID)

		page, err = env.ledger.ListTransactionPage(ctx, companyA, DateRange{}, page.Next, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{id1, id3}, []int64{page.Transactions[0].ID, page.Transactions[1].ID})

		page, err = env.ledger.ListTransactionPage(ctx, companyA, DateRange{}, page.Next, 2)
		require.NoError(t, err)
		require.Len(t, page.Transactions, 1)
		assert.Equal(t, id5, page.Transactions[0].ID)
		assert.Nil(t, page.Next)
	})
}

func TestLedgerService_DeleteTransaction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, companyA, "1000")
	revenue := env.account(t, companyA, "4000")

	txn, err := env.ledger.PostTransaction(ctx, companyA, saleInput(cash, revenue, "10", "10"))
	require.NoError(t, err)

	t.Run("other company cannot delete", func(t *testing.T) {
		err := env.ledger.DeleteTransaction(ctx, companyB, txn.ID)
		var nfErr *NotFoundError
		require.True(t, errors.As(err, &nfErr))
		assert.Equal(t, strconv.FormatInt(txn.ID, 10), nfErr.ID)
	})

	t.Run("delete cascades to lines", func(t *testing.T) {
		require.NoError(t, env.ledger.DeleteTransaction(ctx, companyA, txn.ID))
		txns, lines := env.countRows(t, companyA)
		assert.Zero(t, txns)
		assert.Zero(t, lines)
		env.audit.AssertCalled(t, "LogDeleted", companyA, txn.ID)

		_, err := env.ledger.GetTransaction(ctx, companyA, txn.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("accounts become deletable", func(t *testing.T) {
		assert.NoError(t, env.accounts.DeleteAccount(ctx, companyA, cash.ID))
	})
}
