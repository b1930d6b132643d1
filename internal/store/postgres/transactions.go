package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
)

const transactionColumns = `id, company_id, transaction_date, description, created_by_user_id, created_at, updated_at`

const lineColumns = `id, transaction_id, line_number, account_id, partner_id, side, amount, memo, created_at, updated_at`

func (t *pgTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (company_id, transaction_date, description, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		txn.CompanyID, txn.TransactionDate, txn.Description, txn.CreatedByUserID, txn.CreatedAt, txn.UpdatedAt).
		Scan(&txn.ID)
	return mapError(err)
}

func (t *pgTx) InsertEntryLines(ctx context.Context, lines []models.EntryLine) error {
	for _, l := range lines {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO entry_lines (`+lineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			l.ID, l.TransactionID, l.LineNumber, l.AccountID, l.PartnerID, l.Side, l.Amount, l.Memo, l.CreatedAt, l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", l.LineNumber, mapError(err))
		}
	}
	return nil
}

func (t *pgTx) GetTransaction(ctx context.Context, companyID string, transactionID int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := t.tx.GetContext(ctx, &txn, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE company_id = $1 AND id = $2`, companyID, transactionID)
	if err != nil {
		return nil, mapError(err)
	}

	lines := []models.EntryLine{}
	err = t.tx.SelectContext(ctx, &lines, `
		SELECT `+lineColumns+`
		FROM entry_lines
		WHERE transaction_id = $1
		ORDER BY line_number`, transactionID)
	if err != nil {
		return nil, mapError(err)
	}
	txn.Lines = lines
	return &txn, nil
}

func (t *pgTx) ListTransactions(ctx context.Context, companyID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	var b strings.Builder
	args := []any{companyID}
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE company_id = $1`)

	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&b, ` AND transaction_date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&b, ` AND transaction_date <= $%d`, len(args))
	}
	if filter.After != nil {
		args = append(args, filter.After.Date, filter.After.ID)
		fmt.Fprintf(&b, ` AND (transaction_date, id) > ($%d, $%d)`, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY transaction_date, id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	txns := []models.Transaction{}
	if err := t.tx.SelectContext(ctx, &txns, b.String(), args...); err != nil {
		return nil, mapError(err)
	}
	if len(txns) == 0 {
		return txns, nil
	}

	ids := make([]int64, len(txns))
	index := make(map[int64]int, len(txns))
	for i, txn := range txns {
		ids[i] = txn.ID
		index[txn.ID] = i
		txns[i].Lines = []models.EntryLine{}
	}

	lines := []models.EntryLine{}
	err := t.tx.SelectContext(ctx, &lines, `
		SELECT `+lineColumns+`
		FROM entry_lines
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, line_number`, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	for _, l := range lines {
		i := index[l.TransactionID]
		txns[i].Lines = append(txns[i].Lines, l)
	}
	return txns, nil
}

func (t *pgTx) DeleteTransaction(ctx context.Context, companyID string, transactionID int64) error {
	var id int64
	err := t.tx.QueryRowxContext(ctx, `
		SELECT id FROM transactions
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`, companyID, transactionID).Scan(&id)
	if err != nil {
		return mapError(err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM entry_lines WHERE transaction_id = $1`, transactionID); err != nil {
		return mapError(err)
	}
	return t.execOne(ctx, `DELETE FROM transactions WHERE company_id = $1 AND id = $2`, companyID, transactionID)
}
