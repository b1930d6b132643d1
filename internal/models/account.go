package models

import "time"

// Account is a node in a company's chart of accounts.
type Account struct {
	ID              string    `json:"id" db:"id"`
	CompanyID       string    `json:"companyId" db:"company_id"`
	Code            string    `json:"code" db:"code"`
	Name            string    `json:"name" db:"name"`
	ParentAccountID *string   `json:"parentAccountId,omitempty" db:"parent_account_id"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	MaxAccountCodeLength = 50
	MaxAccountNameLength = 200
)
