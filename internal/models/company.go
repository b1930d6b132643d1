package models

import "time"

// Company is the tenant root. Every other record carries its id.
type Company struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	MaxCompanyNameLength = 200
)
