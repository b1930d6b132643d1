package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// PartnerType is persisted as a smallint: 1 = Customer, 2 = Vendor.
type PartnerType int16

const (
	PartnerTypeCustomer PartnerType = 1
	PartnerTypeVendor   PartnerType = 2
)

const MaxPartnerNameLength = 200

// Partner is a named counterparty of a company.
type Partner struct {
	ID        string      `json:"id" db:"id"`
	CompanyID string      `json:"companyId" db:"company_id"`
	Type      PartnerType `json:"type" db:"partner_type"`
	Name      string      `json:"name" db:"name"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

func (t PartnerType) Valid() bool {
	return t == PartnerTypeCustomer || t == PartnerTypeVendor
}

func (t PartnerType) String() string {
	switch t {
	case PartnerTypeCustomer:
		return "Customer"
	case PartnerTypeVendor:
		return "Vendor"
	}
	return fmt.Sprintf("PartnerType(%d)", int16(t))
}

// ParsePartnerType accepts the names case-insensitively.
func ParsePartnerType(s string) (PartnerType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return PartnerTypeCustomer, true
	case "vendor":
		return PartnerTypeVendor, true
	}
	return 0, false
}

func (t PartnerType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid partner type %d", int16(t))
	}
	return []byte(t.String()), nil
}

func (t *PartnerType) UnmarshalText(b []byte) error {
	v, ok := ParsePartnerType(string(b))
	if !ok {
		return fmt.Errorf("invalid partner type %q", string(b))
	}
	*t = v
	return nil
}

// Value implements driver.Valuer for PartnerType
func (t PartnerType) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan implements sql.Scanner for PartnerType
func (t *PartnerType) Scan(value any) error {
	n, err := scanSmallint(value)
	if err != nil {
		return fmt.Errorf("partner type: %w", err)
	}
	*t = PartnerType(n)
	return nil
}
