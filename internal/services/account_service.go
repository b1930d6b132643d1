package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/coa"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/sirupsen/logrus"
)

// AccountService is the chart of accounts: a forest of accounts per
// company.
type AccountService struct {
	store store.Store
	cache *cache.Cache
	log   *logrus.Entry
	now   func() time.Time
}

func NewAccountService(st store.Store, c *cache.Cache) *AccountService {
	return &AccountService{
		store: st,
		cache: c,
		log:   logger.Component("accounts"),
		now:   now,
	}
}

// CreateAccountRequest represents the account creation payload
// @Description Account creation request
type CreateAccountRequest struct {
	Code            string  `json:"code" validate:"required,max=50" example:"1000"`
	Name            string  `json:"name" validate:"required,max=200" example:"Cash"`
	ParentAccountID *string `json:"parentAccountId,omitempty" validate:"omitempty,uuid" example:"3f0c9a52-8f7e-4c4e-9f71-2b8f5d0d7c11"`
}

// UpdateAccountRequest represents a partial account update. ClearParent
// turns the account into a root.
// @Description Account update request
type UpdateAccountRequest struct {
	Code            *string `json:"code,omitempty" validate:"omitempty,max=50"`
	Name            *string `json:"name,omitempty" validate:"omitempty,max=200"`
	ParentAccountID *string `json:"parentAccountId,omitempty" validate:"omitempty,uuid"`
	ClearParent     bool    `json:"clearParent,omitempty"`
}

func (s *AccountService) CreateAccount(ctx context.Context, companyID string, req CreateAccountRequest) (*models.Account, error) {
	code, err := checkText("code", req.Code, true, models.MaxAccountCodeLength)
	if err != nil {
		return nil, err
	}
	name, err := checkText("name", req.Name, true, models.MaxAccountNameLength)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	account := &models.Account{
		ID:              uuid.NewString(),
		CompanyID:       companyID,
		Code:            code,
		Name:            name,
		ParentAccountID: req.ParentAccountID,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}

	err = s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		if account.ParentAccountID != nil {
			if _, err := s.getAccount(ctx, tx, companyID, *account.ParentAccountID); err != nil {
				return err
			}
		}
		return insertAccount(ctx, tx, account)
	})
	if err != nil {
		return nil, wrapStorage("create account", err)
	}

	s.cache.SetAccount(ctx, account)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "account_id": account.ID, "code": code}).Info("Account created")
	return account, nil
}

func insertAccount(ctx context.Context, tx store.Tx, a *models.Account) error {
	err := tx.InsertAccount(ctx, a)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return &ConflictError{Message: fmt.Sprintf("account code %s already exists", a.Code)}
	case errors.Is(err, store.ErrForeignKey) && a.ParentAccountID != nil:
		return notFound("account", *a.ParentAccountID)
	}
	return err
}

func (s *AccountService) getAccount(ctx context.Context, tx store.Tx, companyID, accountID string) (*models.Account, error) {
	a, err := tx.GetAccount(ctx, companyID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("account", accountID)
	}
	return a, err
}

// ResolveAccount returns the account only if it belongs to companyID.
func (s *AccountService) ResolveAccount(ctx context.Context, companyID, accountID string) (*models.Account, error) {
	if a, ok := s.cache.GetAccount(ctx, companyID, accountID); ok {
		return a, nil
	}

	var account *models.Account
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		account, err = s.getAccount(ctx, tx, companyID, accountID)
		return err
	})
	if err != nil {
		return nil, wrapStorage("resolve account", err)
	}

	s.cache.SetAccount(ctx, account)
	return account, nil
}

// ListAccounts returns the chart ordered by code.
func (s *AccountService) ListAccounts(ctx context.Context, companyID string) ([]models.Account, error) {
	var accounts []models.Account
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, companyID)
		return err
	})
	if err != nil {
		return nil, wrapStorage("list accounts", err)
	}
	return accounts, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, companyID, accountID string, req UpdateAccountRequest) (*models.Account, error) {
	if req.ClearParent && req.ParentAccountID != nil {
		return nil, invalid("parentAccountId", "cannot be set together with clearParent")
	}

	var code, name *string
	if req.Code != nil {
		v, err := checkText("code", *req.Code, true, models.MaxAccountCodeLength)
		if err != nil {
			return nil, err
		}
		code = &v
	}
	if req.Name != nil {
		v, err := checkText("name", *req.Name, true, models.MaxAccountNameLength)
		if err != nil {
			return nil, err
		}
		name = &v
	}

	var account *models.Account
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		// Two concurrent re-parentings could each pass the cycle check on
		// their own snapshot; the company lock orders them.
		if err := tx.LockCompany(ctx, companyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("company", companyID)
			}
			return err
		}

		var err error
		account, err = s.getAccount(ctx, tx, companyID, accountID)
		if err != nil {
			return err
		}

		if code != nil {
			account.Code = *code
		}
		if name != nil {
			account.Name = *name
		}
		switch {
		case req.ClearParent:
			account.ParentAccountID = nil
		case req.ParentAccountID != nil:
			if err := s.checkParent(ctx, tx, companyID, accountID, *req.ParentAccountID); err != nil {
				return err
			}
			parent := *req.ParentAccountID
			account.ParentAccountID = &parent
		}
		account.UpdatedAt = s.now()

		err = tx.UpdateAccount(ctx, account)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return &ConflictError{Message: fmt.Sprintf("account code %s already exists", account.Code)}
		case errors.Is(err, store.ErrNotFound):
			return notFound("account", accountID)
		case errors.Is(err, store.ErrForeignKey):
			return notFound("account", *account.ParentAccountID)
		}
		return err
	})
	if err != nil {
		return nil, wrapStorage("update account", err)
	}

	s.cache.InvalidateAccount(ctx, companyID, accountID)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "account_id": accountID}).Info("Account updated")
	return account, nil
}

// checkParent walks the ancestor chain of parentID and fails if it reaches
// accountID, which would close a cycle.
func (s *AccountService) checkParent(ctx context.Context, tx store.Tx, companyID, accountID, parentID string) error {
	if parentID == accountID {
		return invalid("parentAccountId", "account cannot be its own parent")
	}

	visited := map[string]bool{}
	current := &parentID
	for current != nil {
		if *current == accountID {
			return invalid("parentAccountId", "parent is a descendant of the account")
		}
		if visited[*current] {
			return fmt.Errorf("account hierarchy of company %s already contains a cycle at %s", companyID, *current)
		}
		visited[*current] = true

		ancestor, err := s.getAccount(ctx, tx, companyID, *current)
		if err != nil {
			return err
		}
		current = ancestor.ParentAccountID
	}
	return nil
}

// DeleteAccount removes a leaf account that no entry line references.
func (s *AccountService) DeleteAccount(ctx context.Context, companyID, accountID string) error {
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockCompany(ctx, companyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("company", companyID)
			}
			return err
		}
		if _, err := s.getAccount(ctx, tx, companyID, accountID); err != nil {
			return err
		}

		children, err := tx.CountChildAccounts(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		if children > 0 {
			return &ConflictError{Message: fmt.Sprintf("account %s has %d child accounts", accountID, children)}
		}

		lines, err := tx.CountAccountLines(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		if lines > 0 {
			return &ConflictError{Message: fmt.Sprintf("account %s is referenced by %d entry lines", accountID, lines)}
		}

		err = tx.DeleteAccount(ctx, companyID, accountID)
		switch {
		case errors.Is(err, store.ErrForeignKey):
			return &ConflictError{Message: fmt.Sprintf("account %s is still referenced", accountID)}
		case errors.Is(err, store.ErrNotFound):
			return notFound("account", accountID)
		}
		return err
	})
	if err != nil {
		return wrapStorage("delete account", err)
	}

	s.cache.InvalidateAccount(ctx, companyID, accountID)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "account_id": accountID}).Info("Account deleted")
	return nil
}

// ApplyTemplate creates every account of tpl in one unit of work.
func (s *AccountService) ApplyTemplate(ctx context.Context, companyID string, tpl *coa.Template) ([]models.Account, error) {
	var created []models.Account
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		created, err = s.applyTemplateTx(ctx, tx, companyID, tpl)
		return err
	})
	if err != nil {
		return nil, wrapStorage("apply chart template", err)
	}

	s.log.WithFields(logrus.Fields{"company_id": companyID, "template": tpl.Name, "accounts": len(created)}).Info("Chart template applied")
	return created, nil
}

func (s *AccountService) applyTemplateTx(ctx context.Context, tx store.Tx, companyID string, tpl *coa.Template) ([]models.Account, error) {
	ts := s.now()
	ids := make(map[string]string)
	created := make([]models.Account, 0, len(tpl.Entries()))

	for _, e := range tpl.Entries() {
		account := models.Account{
			ID:        uuid.NewString(),
			CompanyID: companyID,
			Code:      e.Code,
			Name:      e.Name,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if e.ParentCode != "" {
			parent := ids[e.ParentCode]
			account.ParentAccountID = &parent
		}
		if err := insertAccount(ctx, tx, &account); err != nil {
			return nil, err
		}
		ids[e.Code] = account.ID
		created = append(created, account)
	}
	return created, nil
}
