package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbook/backend/internal/audit"
	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// maxAmount is the first value that no longer fits NUMERIC(18, 2).
var maxAmount = decimal.New(1, 16)

// LedgerService posts, reads and deletes double-entry transactions.
type LedgerService struct {
	store    store.Store
	cache    *cache.Cache
	audit    audit.Recorder
	log      *logrus.Entry
	now      func() time.Time
	maxLines int
	pageSize int
}

func NewLedgerService(st store.Store, c *cache.Cache, auditor audit.Recorder, cfg config.LedgerConfig) *LedgerService {
	s := &LedgerService{
		store:    st,
		cache:    c,
		audit:    auditor,
		log:      logger.Component("ledger"),
		now:      now,
		maxLines: cfg.MaxLines,
		pageSize: cfg.ListPageSize,
	}
	if s.maxLines <= 0 {
		s.maxLines = 1000
	}
	if s.pageSize <= 0 {
		s.pageSize = 100
	}
	return s
}

// PostLine is one proposed entry line. Order is kept as the line number.
type PostLine struct {
	AccountID string
	PartnerID *string
	Side      models.Side
	Amount    decimal.Decimal
	Memo      *string
}

type PostTransactionInput struct {
	TransactionDate models.Date
	Description     *string
	CreatedByUserID *string
	Lines           []PostLine
}

// DateRange bounds a listing by transaction date, both ends inclusive.
type DateRange struct {
	From *models.Date
	To   *models.Date
}

func (r DateRange) validate() error {
	if r.From != nil && !r.From.IsValid() {
		return invalid("from", "is not a valid date")
	}
	if r.To != nil && !r.To.IsValid() {
		return invalid("to", "is not a valid date")
	}
	if r.From != nil && r.To != nil && r.From.Compare(*r.To) > 0 {
		return invalid("from", "must not be after to")
	}
	return nil
}

// TransactionPage is one keyset page. Next is nil on the last page.
type TransactionPage struct {
	Transactions []models.Transaction
	Next         *store.Cursor
}

// PostTransaction validates a proposed transaction against the chart of
// accounts and the partner registry of companyID and persists it with all
// its lines as one unit.
func (s *LedgerService) PostTransaction(ctx context.Context, companyID string, in PostTransactionInput) (*models.Transaction, error) {
	txn, err := s.post(ctx, companyID, in)
	if err != nil {
		s.audit.LogError(companyID, "post transaction", err)
		return nil, err
	}

	debit, _ := txn.Totals()
	s.audit.LogPosted(companyID, txn.ID, len(txn.Lines), debit)
	s.cache.SetTransaction(ctx, txn)
	s.log.WithFields(logrus.Fields{
		"company_id":     companyID,
		"transaction_id": txn.ID,
		"lines":          len(txn.Lines),
	}).Info("Transaction posted")
	return txn, nil
}

func (s *LedgerService) post(ctx context.Context, companyID string, in PostTransactionInput) (*models.Transaction, error) {
	if len(in.Lines) < 2 {
		return nil, &ValidationError{Message: "insufficient lines"}
	}
	if len(in.Lines) > s.maxLines {
		return nil, &ValidationError{Message: fmt.Sprintf("too many lines: at most %d allowed", s.maxLines)}
	}

	var txn *models.Transaction
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		if err := s.resolveReferences(ctx, tx, companyID, in); err != nil {
			return err
		}
		if err := validateLines(in); err != nil {
			return err
		}
		description, err := checkOptionalText("description", in.Description, models.MaxDescriptionLength)
		if err != nil {
			return err
		}
		if !in.TransactionDate.IsValid() {
			return invalid("transactionDate", "is not a valid date")
		}

		debit, credit := totals(in.Lines)
		if !debit.Equal(credit) {
			return &ValidationError{Message: "unbalanced transaction", Debit: &debit, Credit: &credit}
		}

		ts := s.now()
		txn = &models.Transaction{
			CompanyID:       companyID,
			TransactionDate: in.TransactionDate,
			Description:     description,
			CreatedByUserID: in.CreatedByUserID,
			CreatedAt:       ts,
			UpdatedAt:       ts,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		txn.Lines = make([]models.EntryLine, len(in.Lines))
		for i, l := range in.Lines {
			memo, err := checkOptionalText(fmt.Sprintf("lines[%d].memo", i), l.Memo, models.MaxMemoLength)
			if err != nil {
				return err
			}
			txn.Lines[i] = models.EntryLine{
				ID:            uuid.NewString(),
				TransactionID: txn.ID,
				LineNumber:    i + 1,
				AccountID:     l.AccountID,
				PartnerID:     l.PartnerID,
				Side:          l.Side,
				Amount:        l.Amount,
				Memo:          memo,
				CreatedAt:     ts,
				UpdatedAt:     ts,
			}
		}
		return tx.InsertEntryLines(ctx, txn.Lines)
	})
	if err != nil {
		return nil, wrapStorage("post transaction", err)
	}
	return txn, nil
}

// resolveReferences checks that every account, partner and the creating
// user belong to companyID. Repeated ids are looked up once.
func (s *LedgerService) resolveReferences(ctx context.Context, tx store.Tx, companyID string, in PostTransactionInput) error {
	accounts := make(map[string]bool)
	partners := make(map[string]bool)

	for _, l := range in.Lines {
		if !accounts[l.AccountID] {
			_, err := tx.GetAccount(ctx, companyID, l.AccountID)
			if errors.Is(err, store.ErrNotFound) {
				return notFound("account", l.AccountID)
			}
			if err != nil {
				return err
			}
			accounts[l.AccountID] = true
		}

		if l.PartnerID != nil && !partners[*l.PartnerID] {
			if _, err := getPartner(ctx, tx, companyID, *l.PartnerID); err != nil {
				return err
			}
			partners[*l.PartnerID] = true
		}
	}

	if in.CreatedByUserID != nil {
		_, err := tx.GetUser(ctx, companyID, *in.CreatedByUserID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user", *in.CreatedByUserID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func validateLines(in PostTransactionInput) error {
	for i, l := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case !l.Side.Valid():
			return invalid(field+".side", "must be Debit or Credit")
		case l.Amount.Sign() <= 0:
			return invalid(field+".amount", "must be greater than zero")
		case !l.Amount.Equal(l.Amount.Round(models.AmountScale)):
			return invalid(field+".amount", "must have at most 2 decimal places")
		case l.Amount.GreaterThanOrEqual(maxAmount):
			return invalid(field+".amount", "is too large")
		}
		if _, err := checkOptionalText(field+".memo", l.Memo, models.MaxMemoLength); err != nil {
			return err
		}
	}
	return nil
}

func totals(lines []PostLine) (debit, credit decimal.Decimal) {
	for _, l := range lines {
		if l.Side == models.SideDebit {
			debit = debit.Add(l.Amount)
		} else {
			credit = credit.Add(l.Amount)
		}
	}
	return debit, credit
}

// GetTransaction returns a transaction of companyID with its lines in
// line number order.
func (s *LedgerService) GetTransaction(ctx context.Context, companyID string, transactionID int64) (*models.Transaction, error) {
	if txn, ok := s.cache.GetTransaction(ctx, companyID, transactionID); ok {
		return txn, nil
	}

	var txn *models.Transaction
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = tx.GetTransaction(ctx, companyID, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("transaction", strconv.FormatInt(transactionID, 10))
		}
		return err
	})
	if err != nil {
		return nil, wrapStorage("get transaction", err)
	}

	s.cache.SetTransaction(ctx, txn)
	return txn, nil
}

// ListTransactions yields the transactions of companyID ordered by
// (transactionDate, id). Pages are fetched lazily; every iteration of the
// returned sequence starts from the beginning.
func (s *LedgerService) ListTransactions(ctx context.Context, companyID string, r DateRange) iter.Seq2[models.Transaction, error] {
	return func(yield func(models.Transaction, error) bool) {
		if err := r.validate(); err != nil {
			yield(models.Transaction{}, err)
			return
		}

		var after *store.Cursor
		for {
			page, err := s.fetchPage(ctx, companyID, r, after, s.pageSize)
			if err != nil {
				yield(models.Transaction{}, err)
				return
			}
			for _, txn := range page {
				if !yield(txn, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			after = &store.Cursor{Date: last.TransactionDate, ID: last.ID}
		}
	}
}

// ListTransactionPage returns at most limit transactions after the cursor.
func (s *LedgerService) ListTransactionPage(ctx context.Context, companyID string, r DateRange, after *store.Cursor, limit int) (*TransactionPage, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	txns, err := s.fetchPage(ctx, companyID, r, after, limit+1)
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		last := page.Transactions[limit-1]
		page.Next = &store.Cursor{Date: last.TransactionDate, ID: last.ID}
	}
	return page, nil
}

func (s *LedgerService) fetchPage(ctx context.Context, companyID string, r DateRange, after *store.Cursor, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		txns, err = tx.ListTransactions(ctx, companyID, store.TransactionFilter{
			From:  r.From,
			To:    r.To,
			After: after,
			Limit: limit,
		})
		return err
	})
	if err != nil {
		return nil, wrapStorage("list transactions", err)
	}
	return txns, nil
}

// DeleteTransaction removes a transaction and all of its lines.
func (s *LedgerService) DeleteTransaction(ctx context.Context, companyID string, transactionID int64) error {
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		err := tx.DeleteTransaction(ctx, companyID, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("transaction", strconv.FormatInt(transactionID, 10))
		}
		return err
	})
	if err != nil {
		err = wrapStorage("delete transaction", err)
		s.audit.LogError(companyID, "delete transaction", err)
		return err
	}

	s.cache.InvalidateTransaction(ctx, companyID, transactionID)
	s.audit.LogDeleted(companyID, transactionID)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "transaction_id": transactionID}).Info("Transaction deleted")
	return nil
}
