package memory

import (
	"context"
	"sort"

	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
)

func (t *memTx) InsertTransaction(_ context.Context, txn *models.Transaction) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.companies[txn.CompanyID]; !ok {
		return store.ErrForeignKey
	}
	if txn.CreatedByUserID != nil {
		if _, ok := t.s.users[*txn.CreatedByUserID]; !ok {
			return store.ErrForeignKey
		}
	}

	// The sequence is shared by all companies and never moves back, so a
	// rolled back unit leaves a gap like BIGSERIAL does.
	t.s.nextTxnID++
	id := t.s.nextTxnID
	if _, exists := t.s.transactions[id]; exists {
		return store.ErrDuplicate
	}
	txn.ID = id

	header := *txn
	header.Lines = nil
	t.s.transactions[id] = header
	t.record(func() {
		delete(t.s.transactions, id)
	})
	return nil
}

func (t *memTx) InsertEntryLines(_ context.Context, lines []models.EntryLine) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, l := range lines {
		key := lineKey{transactionID: l.TransactionID, lineNumber: l.LineNumber}
		if _, exists := t.s.lines[l.ID]; exists {
			return store.ErrDuplicate
		}
		if _, exists := t.s.lineNumbers[key]; exists {
			return store.ErrDuplicate
		}
		if _, ok := t.s.transactions[l.TransactionID]; !ok {
			return store.ErrForeignKey
		}
		if _, ok := t.s.accounts[l.AccountID]; !ok {
			return store.ErrForeignKey
		}
		if l.PartnerID != nil {
			if _, ok := t.s.partners[*l.PartnerID]; !ok {
				return store.ErrForeignKey
			}
		}

		t.s.lines[l.ID] = l
		t.s.lineNumbers[key] = l.ID
		id := l.ID
		t.record(func() {
			delete(t.s.lines, id)
			delete(t.s.lineNumbers, key)
		})
	}
	return nil
}

// linesOf returns the lines of a transaction ordered by line number. Callers
// hold s.mu.
func (s *Store) linesOf(transactionID int64) []models.EntryLine {
	lines := []models.EntryLine{}
	for _, l := range s.lines {
		if l.TransactionID == transactionID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })
	return lines
}

func (t *memTx) GetTransaction(_ context.Context, companyID string, transactionID int64) (*models.Transaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	txn, ok := t.s.transactions[transactionID]
	if !ok || txn.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	txn.Lines = t.s.linesOf(transactionID)
	return &txn, nil
}

func (t *memTx) ListTransactions(_ context.Context, companyID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	txns := []models.Transaction{}
	for _, txn := range t.s.transactions {
		if txn.CompanyID != companyID {
			continue
		}
		if filter.From != nil && txn.TransactionDate.Compare(*filter.From) < 0 {
			continue
		}
		if filter.To != nil && txn.TransactionDate.Compare(*filter.To) > 0 {
			continue
		}
		if filter.After != nil && !afterCursor(txn, *filter.After) {
			continue
		}
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		if c := txns[i].TransactionDate.Compare(txns[j].TransactionDate); c != 0 {
			return c < 0
		}
		return txns[i].ID < txns[j].ID
	})
	if filter.Limit > 0 && len(txns) > filter.Limit {
		txns = txns[:filter.Limit]
	}
	for i := range txns {
		txns[i].Lines = t.s.linesOf(txns[i].ID)
	}
	return txns, nil
}

func afterCursor(txn models.Transaction, c store.Cursor) bool {
	switch cmp := txn.TransactionDate.Compare(c.Date); {
	case cmp > 0:
		return true
	case cmp < 0:
		return false
	}
	return txn.ID > c.ID
}

func (t *memTx) DeleteTransaction(_ context.Context, companyID string, transactionID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	header, ok := t.s.transactions[transactionID]
	if !ok || header.CompanyID != companyID {
		return store.ErrNotFound
	}

	for _, l := range t.s.linesOf(transactionID) {
		key := lineKey{transactionID: l.TransactionID, lineNumber: l.LineNumber}
		delete(t.s.lines, l.ID)
		delete(t.s.lineNumbers, key)
		line := l
		t.record(func() {
			t.s.lines[line.ID] = line
			t.s.lineNumbers[key] = line.ID
		})
	}
	delete(t.s.transactions, transactionID)
	t.record(func() { t.s.transactions[header.ID] = header })
	return nil
}
