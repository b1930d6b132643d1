package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/ledgerbook/backend/internal/models"
)

func (t *pgTx) InsertCompany(ctx context.Context, c *models.Company) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO companies (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	return mapError(err)
}

func (t *pgTx) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	var c models.Company
	err := t.tx.GetContext(ctx, &c, `
		SELECT id, name, created_at, updated_at
		FROM companies
		WHERE id = $1`, companyID)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (t *pgTx) UpdateCompany(ctx context.Context, c *models.Company) error {
	return t.execOne(ctx, `
		UPDATE companies
		SET name = $1, updated_at = $2
		WHERE id = $3`,
		c.Name, c.UpdatedAt, c.ID)
}

func (t *pgTx) InsertUser(ctx context.Context, u *models.AppUser) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (id, company_id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.CompanyID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return mapError(err)
}

func (t *pgTx) GetUser(ctx context.Context, companyID, userID string) (*models.AppUser, error) {
	var u models.AppUser
	err := t.tx.GetContext(ctx, &u, `
		SELECT id, company_id, email, password_hash, created_at, updated_at
		FROM users
		WHERE company_id = $1 AND id = $2`, companyID, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (t *pgTx) GetUserByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	var u models.AppUser
	err := t.tx.GetContext(ctx, &u, `
		SELECT id, company_id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (t *pgTx) DeleteUser(ctx context.Context, companyID, userID string) error {
	return t.execOne(ctx, `DELETE FROM users WHERE company_id = $1 AND id = $2`, companyID, userID)
}

func (t *pgTx) ClearTransactionCreator(ctx context.Context, companyID, userID string, at time.Time) ([]int64, error) {
	ids := []int64{}
	err := t.tx.SelectContext(ctx, &ids, `
		UPDATE transactions
		SET created_by_user_id = NULL, updated_at = $1
		WHERE company_id = $2 AND created_by_user_id = $3
		RETURNING id`,
		at, companyID, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}
