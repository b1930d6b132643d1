// Package memory implements store.Store without a transactional engine.
// Atomicity comes from a single-writer critical section per company and an
// undo log that is replayed when the unit of work fails.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
)

var errClosed = errors.New("memory store: closed")

type lineKey struct {
	transactionID int64
	lineNumber    int
}

type Store struct {
	// mu guards the maps below; companyLocks serializes units of work.
	mu sync.RWMutex

	locksMu      sync.Mutex
	companyLocks map[string]*keyLock

	companies    map[string]models.Company
	users        map[string]models.AppUser
	usersByEmail map[string]string
	accounts     map[string]models.Account
	accountCodes map[string]string
	partners     map[string]models.Partner
	transactions map[int64]models.Transaction
	lines        map[string]models.EntryLine
	lineNumbers  map[lineKey]string
	nextTxnID    int64
	closed       bool
}

func New() *Store {
	return &Store{
		companyLocks: make(map[string]*keyLock),
		companies:    make(map[string]models.Company),
		users:        make(map[string]models.AppUser),
		usersByEmail: make(map[string]string),
		accounts:     make(map[string]models.Account),
		accountCodes: make(map[string]string),
		partners:     make(map[string]models.Partner),
		transactions: make(map[int64]models.Transaction),
		lines:        make(map[string]models.EntryLine),
		lineNumbers:  make(map[lineKey]string),
	}
}

// keyLock is dropped from companyLocks once no unit of work holds or
// waits for it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Store) lock(key string) *keyLock {
	s.locksMu.Lock()
	l, ok := s.companyLocks[key]
	if !ok {
		l = &keyLock{}
		s.companyLocks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store) unlock(key string, l *keyLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.companyLocks, key)
	}
}

func (s *Store) RunInTx(ctx context.Context, companyID string, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.lock(companyID)
	defer s.unlock(companyID, l)

	tx := &memTx{s: s}
	err := fn(ctx, tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

// record registers the inverse of a write. Callers hold s.mu.
func (t *memTx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func codeKey(companyID, code string) string {
	return companyID + "\x00" + code
}

func (t *memTx) LockCompany(_ context.Context, companyID string) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	// The whole unit of work already holds the company lock.
	if _, ok := t.s.companies[companyID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (t *memTx) InsertCompany(_ context.Context, c *models.Company) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, exists := t.s.companies[c.ID]; exists {
		return store.ErrDuplicate
	}
	t.s.companies[c.ID] = *c
	t.record(func() { delete(t.s.companies, c.ID) })
	return nil
}

func (t *memTx) GetCompany(_ context.Context, companyID string) (*models.Company, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	c, ok := t.s.companies[companyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) UpdateCompany(_ context.Context, c *models.Company) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	old, ok := t.s.companies[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	t.s.companies[c.ID] = *c
	t.record(func() { t.s.companies[c.ID] = old })
	return nil
}

func (t *memTx) InsertUser(_ context.Context, u *models.AppUser) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := t.s.users[u.ID]; exists {
		return store.ErrDuplicate
	}
	if _, exists := t.s.usersByEmail[email]; exists {
		return store.ErrDuplicate
	}
	if _, ok := t.s.companies[u.CompanyID]; !ok {
		return store.ErrForeignKey
	}

	row := *u
	row.Email = email
	t.s.users[u.ID] = row
	t.s.usersByEmail[email] = u.ID
	t.record(func() {
		delete(t.s.users, u.ID)
		delete(t.s.usersByEmail, email)
	})
	return nil
}

func (t *memTx) GetUser(_ context.Context, companyID, userID string) (*models.AppUser, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	u, ok := t.s.users[userID]
	if !ok || u.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) GetUserByEmail(_ context.Context, email string) (*models.AppUser, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	id, ok := t.s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := t.s.users[id]
	return &u, nil
}

func (t *memTx) DeleteUser(_ context.Context, companyID, userID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	u, ok := t.s.users[userID]
	if !ok || u.CompanyID != companyID {
		return store.ErrNotFound
	}
	for _, txn := range t.s.transactions {
		if txn.CreatedByUserID != nil && *txn.CreatedByUserID == userID {
			return store.ErrForeignKey
		}
	}

	delete(t.s.users, userID)
	delete(t.s.usersByEmail, u.Email)
	t.record(func() {
		t.s.users[userID] = u
		t.s.usersByEmail[u.Email] = userID
	})
	return nil
}

func (t *memTx) ClearTransactionCreator(_ context.Context, companyID, userID string, at time.Time) ([]int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	ids := []int64{}
	for id, txn := range t.s.transactions {
		if txn.CompanyID != companyID || txn.CreatedByUserID == nil || *txn.CreatedByUserID != userID {
			continue
		}
		old := txn
		txn.CreatedByUserID = nil
		txn.UpdatedAt = at
		t.s.transactions[id] = txn
		t.record(func() { t.s.transactions[old.ID] = old })
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

var _ store.Tx = (*memTx)(nil)
