package postgres

import (
	"context"
	"time"

	"github.com/ledgerbook/backend/internal/models"
)

const accountColumns = `id, company_id, code, name, parent_account_id, created_at, updated_at`

func (t *pgTx) InsertAccount(ctx context.Context, a *models.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, company_id, code, name, parent_account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.CompanyID, a.Code, a.Name, a.ParentAccountID, a.CreatedAt, a.UpdatedAt)
	return mapError(err)
}

func (t *pgTx) GetAccount(ctx context.Context, companyID, accountID string) (*models.Account, error) {
	var a models.Account
	err := t.tx.GetContext(ctx, &a, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE company_id = $1 AND id = $2`, companyID, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (t *pgTx) ListAccounts(ctx context.Context, companyID string) ([]models.Account, error) {
	accounts := []models.Account{}
	err := t.tx.SelectContext(ctx, &accounts, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE company_id = $1
		ORDER BY code`, companyID)
	if err != nil {
		return nil, mapError(err)
	}
	return accounts, nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	return t.execOne(ctx, `
		UPDATE accounts
		SET code = $1, name = $2, parent_account_id = $3, updated_at = $4
		WHERE company_id = $5 AND id = $6`,
		a.Code, a.Name, a.ParentAccountID, a.UpdatedAt, a.CompanyID, a.ID)
}

func (t *pgTx) DeleteAccount(ctx context.Context, companyID, accountID string) error {
	return t.execOne(ctx, `DELETE FROM accounts WHERE company_id = $1 AND id = $2`, companyID, accountID)
}

func (t *pgTx) CountChildAccounts(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM accounts
		WHERE company_id = $1 AND parent_account_id = $2`, companyID, accountID)
	return n, mapError(err)
}

func (t *pgTx) CountAccountLines(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM entry_lines el
		JOIN transactions t ON t.id = el.transaction_id
		WHERE t.company_id = $1 AND el.account_id = $2`, companyID, accountID)
	return n, mapError(err)
}

const partnerColumns = `id, company_id, partner_type, name, created_at, updated_at`

func (t *pgTx) InsertPartner(ctx context.Context, p *models.Partner) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO partners (id, company_id, partner_type, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.CompanyID, p.Type, p.Name, p.CreatedAt, p.UpdatedAt)
	return mapError(err)
}

func (t *pgTx) GetPartner(ctx context.Context, companyID, partnerID string) (*models.Partner, error) {
	var p models.Partner
	err := t.tx.GetContext(ctx, &p, `
		SELECT `+partnerColumns+`
		FROM partners
		WHERE company_id = $1 AND id = $2`, companyID, partnerID)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (t *pgTx) ListPartners(ctx context.Context, companyID string, partnerType *models.PartnerType) ([]models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE company_id = $1`
	args := []any{companyID}
	if partnerType != nil {
		query += ` AND partner_type = $2`
		args = append(args, *partnerType)
	}
	query += ` ORDER BY name, id`

	partners := []models.Partner{}
	if err := t.tx.SelectContext(ctx, &partners, query, args...); err != nil {
		return nil, mapError(err)
	}
	return partners, nil
}

func (t *pgTx) UpdatePartner(ctx context.Context, p *models.Partner) error {
	return t.execOne(ctx, `
		UPDATE partners
		SET partner_type = $1, name = $2, updated_at = $3
		WHERE company_id = $4 AND id = $5`,
		p.Type, p.Name, p.UpdatedAt, p.CompanyID, p.ID)
}

func (t *pgTx) DeletePartner(ctx context.Context, companyID, partnerID string) error {
	return t.execOne(ctx, `DELETE FROM partners WHERE company_id = $1 AND id = $2`, companyID, partnerID)
}

func (t *pgTx) UnlinkPartnerLines(ctx context.Context, companyID, partnerID string, at time.Time) ([]int64, error) {
	ids := []int64{}
	err := t.tx.SelectContext(ctx, &ids, `
		WITH unlinked AS (
			UPDATE entry_lines
			SET partner_id = NULL, updated_at = $1
			WHERE partner_id = $2
			  AND transaction_id IN (SELECT id FROM transactions WHERE company_id = $3)
			RETURNING transaction_id
		)
		SELECT DISTINCT transaction_id FROM unlinked ORDER BY transaction_id`,
		at, partnerID, companyID)
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}
