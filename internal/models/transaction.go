package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is persisted as a smallint: 1 = Debit, 2 = Credit.
type Side int16

const (
	SideDebit  Side = 1
	SideCredit Side = 2
)

const (
	MaxDescriptionLength = 500
	MaxMemoLength        = 1000
	// AmountScale is the number of decimal places kept for amounts.
	AmountScale = 2
)

// Transaction is a posted double-entry transaction. Lines are ordered by
// LineNumber.
type Transaction struct {
	ID              int64       `json:"id" db:"id"`
	CompanyID       string      `json:"companyId" db:"company_id"`
	TransactionDate Date        `json:"transactionDate" db:"transaction_date"`
	Description     *string     `json:"description,omitempty" db:"description"`
	CreatedByUserID *string     `json:"createdByUserId,omitempty" db:"created_by_user_id"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
	Lines           []EntryLine `json:"lines" db:"-"`
}

// EntryLine is one debit or credit of a transaction.
type EntryLine struct {
	ID            string          `json:"id" db:"id"`
	TransactionID int64           `json:"transactionId" db:"transaction_id"`
	LineNumber    int             `json:"lineNumber" db:"line_number"`
	AccountID     string          `json:"accountId" db:"account_id"`
	PartnerID     *string         `json:"partnerId,omitempty" db:"partner_id"`
	Side          Side            `json:"side" db:"side"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Memo          *string         `json:"memo,omitempty" db:"memo"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Totals returns the debit and credit sums of the lines.
func (t *Transaction) Totals() (debit, credit decimal.Decimal) {
	for _, l := range t.Lines {
		switch l.Side {
		case SideDebit:
			debit = debit.Add(l.Amount)
		case SideCredit:
			credit = credit.Add(l.Amount)
		}
	}
	return debit, credit
}

func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

func (s Side) String() string {
	switch s {
	case SideDebit:
		return "Debit"
	case SideCredit:
		return "Credit"
	}
	return fmt.Sprintf("Side(%d)", int16(s))
}

// ParseSide accepts the names case-insensitively.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit":
		return SideDebit, true
	case "credit":
		return SideCredit, true
	}
	return 0, false
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", int16(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, ok := ParseSide(string(b))
	if !ok {
		return fmt.Errorf("invalid side %q", string(b))
	}
	*s = v
	return nil
}

// Value implements driver.Valuer for Side
func (s Side) Value() (driver.Value, error) {
	return int64(s), nil
}

// Scan implements sql.Scanner for Side
func (s *Side) Scan(value any) error {
	n, err := scanSmallint(value)
	if err != nil {
		return fmt.Errorf("side: %w", err)
	}
	*s = Side(n)
	return nil
}

func scanSmallint(value any) (int16, error) {
	switch v := value.(type) {
	case int64:
		return int16(v), nil
	case int32:
		return int16(v), nil
	case int16:
		return v, nil
	case int:
		return int16(v), nil
	case []byte:
		var n int16
		_, err := fmt.Sscan(string(v), &n)
		return n, err
	case string:
		var n int16
		_, err := fmt.Sscan(v, &n)
		return n, err
	}
	return 0, fmt.Errorf("unsupported type %T", value)
}
