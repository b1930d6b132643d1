package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
)

func (t *memTx) InsertAccount(_ context.Context, a *models.Account) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := codeKey(a.CompanyID, a.Code)
	if _, exists := t.s.accounts[a.ID]; exists {
		return store.ErrDuplicate
	}
	if _, exists := t.s.accountCodes[key]; exists {
		return store.ErrDuplicate
	}
	if _, ok := t.s.companies[a.CompanyID]; !ok {
		return store.ErrForeignKey
	}
	if a.ParentAccountID != nil {
		if _, ok := t.s.accounts[*a.ParentAccountID]; !ok {
			return store.ErrForeignKey
		}
	}

	t.s.accounts[a.ID] = *a
	t.s.accountCodes[key] = a.ID
	t.record(func() {
		delete(t.s.accounts, a.ID)
		delete(t.s.accountCodes, key)
	})
	return nil
}

func (t *memTx) GetAccount(_ context.Context, companyID, accountID string) (*models.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a, ok := t.s.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) ListAccounts(_ context.Context, companyID string) ([]models.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	accounts := []models.Account{}
	for _, a := range t.s.accounts {
		if a.CompanyID == companyID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *models.Account) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	old, ok := t.s.accounts[a.ID]
	if !ok || old.CompanyID != a.CompanyID {
		return store.ErrNotFound
	}
	oldKey := codeKey(old.CompanyID, old.Code)
	newKey := codeKey(a.CompanyID, a.Code)
	if newKey != oldKey {
		if _, exists := t.s.accountCodes[newKey]; exists {
			return store.ErrDuplicate
		}
	}
	if a.ParentAccountID != nil {
		if _, ok := t.s.accounts[*a.ParentAccountID]; !ok {
			return store.ErrForeignKey
		}
	}

	delete(t.s.accountCodes, oldKey)
	t.s.accountCodes[newKey] = a.ID
	t.s.accounts[a.ID] = *a
	t.record(func() {
		delete(t.s.accountCodes, newKey)
		t.s.accountCodes[oldKey] = old.ID
		t.s.accounts[old.ID] = old
	})
	return nil
}

func (t *memTx) DeleteAccount(_ context.Context, companyID, accountID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	old, ok := t.s.accounts[accountID]
	if !ok || old.CompanyID != companyID {
		return store.ErrNotFound
	}
	for _, a := range t.s.accounts {
		if a.ParentAccountID != nil && *a.ParentAccountID == accountID {
			return store.ErrForeignKey
		}
	}
	for _, l := range t.s.lines {
		if l.AccountID == accountID {
			return store.ErrForeignKey
		}
	}

	key := codeKey(old.CompanyID, old.Code)
	delete(t.s.accounts, accountID)
	delete(t.s.accountCodes, key)
	t.record(func() {
		t.s.accounts[old.ID] = old
		t.s.accountCodes[key] = old.ID
	})
	return nil
}

func (t *memTx) CountChildAccounts(_ context.Context, companyID, accountID string) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	n := 0
	for _, a := range t.s.accounts {
		if a.CompanyID == companyID && a.ParentAccountID != nil && *a.ParentAccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountAccountLines(_ context.Context, companyID, accountID string) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	n := 0
	for _, l := range t.s.lines {
		if l.AccountID != accountID {
			continue
		}
		if txn, ok := t.s.transactions[l.TransactionID]; ok && txn.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertPartner(_ context.Context, p *models.Partner) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, exists := t.s.partners[p.ID]; exists {
		return store.ErrDuplicate
	}
	if _, ok := t.s.companies[p.CompanyID]; !ok {
		return store.ErrForeignKey
	}

	t.s.partners[p.ID] = *p
	t.record(func() { delete(t.s.partners, p.ID) })
	return nil
}

func (t *memTx) GetPartner(_ context.Context, companyID, partnerID string) (*models.Partner, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	p, ok := t.s.partners[partnerID]
	if !ok || p.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) ListPartners(_ context.Context, companyID string, partnerType *models.PartnerType) ([]models.Partner, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	partners := []models.Partner{}
	for _, p := range t.s.partners {
		if p.CompanyID != companyID {
			continue
		}
		if partnerType != nil && p.Type != *partnerType {
			continue
		}
		partners = append(partners, p)
	}
	sort.Slice(partners, func(i, j int) bool {
		if partners[i].Name != partners[j].Name {
			return partners[i].Name < partners[j].Name
		}
		return partners[i].ID < partners[j].ID
	})
	return partners, nil
}

func (t *memTx) UpdatePartner(_ context.Context, p *models.Partner) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	old, ok := t.s.partners[p.ID]
	if !ok || old.CompanyID != p.CompanyID {
		return store.ErrNotFound
	}
	t.s.partners[p.ID] = *p
	t.record(func() { t.s.partners[old.ID] = old })
	return nil
}

func (t *memTx) DeletePartner(_ context.Context, companyID, partnerID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	old, ok := t.s.partners[partnerID]
	if !ok || old.CompanyID != companyID {
		return store.ErrNotFound
	}
	for _, l := range t.s.lines {
		if l.PartnerID != nil && *l.PartnerID == partnerID {
			return store.ErrForeignKey
		}
	}

	delete(t.s.partners, partnerID)
	t.record(func() { t.s.partners[old.ID] = old })
	return nil
}

func (t *memTx) UnlinkPartnerLines(_ context.Context, companyID, partnerID string, at time.Time) ([]int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	touched := make(map[int64]bool)
	for id, l := range t.s.lines {
		if l.PartnerID == nil || *l.PartnerID != partnerID {
			continue
		}
		if txn, ok := t.s.transactions[l.TransactionID]; !ok || txn.CompanyID != companyID {
			continue
		}
		old := l
		l.PartnerID = nil
		l.UpdatedAt = at
		t.s.lines[id] = l
		t.record(func() { t.s.lines[old.ID] = old })
		touched[l.TransactionID] = true
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
