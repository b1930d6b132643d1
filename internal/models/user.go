package models

import "time"

// AppUser is a login identity belonging to exactly one company.
type AppUser struct {
	ID           string    `json:"id" db:"id"`
	CompanyID    string    `json:"companyId" db:"company_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
