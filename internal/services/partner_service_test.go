package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerbook/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartnerService_CreatePartner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	p, err := env.partners.CreatePartner(ctx, companyA, CreatePartnerRequest{Type: models.PartnerTypeVendor, Name: " Initech "})
	require.NoError(t, err)
	assert.Equal(t, "Initech", p.Name)
	assert.Equal(t, models.PartnerTypeVendor, p.Type)

	tests := []struct {
		name  string
		req   CreatePartnerRequest
		field string
	}{
		{"invalid type", CreatePartnerRequest{Type: models.PartnerType(3), Name: "X"}, "type"},
		{"missing type", CreatePartnerRequest{Name: "X"}, "type"},
		{"blank name", CreatePartnerRequest{Type: models.PartnerTypeCustomer, Name: " "}, "name"},
		{"long name", CreatePartnerRequest{Type: models.PartnerTypeCustomer, Name: string(make([]rune, 201))}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.partners.CreatePartner(ctx, companyA, tt.req)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPartnerService_ResolveAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	zed := env.partner(t, companyA, "Zed")
	acme := env.partner(t, companyA, "Acme")
	vendor, err := env.partners.CreatePartner(ctx, companyA, CreatePartnerRequest{Type: models.PartnerTypeVendor, Name: "Mid"})
	require.NoError(t, err)

	_, err = env.partners.ResolvePartner(ctx, companyB, zed.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := env.partners.ListPartners(ctx, companyA, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{acme.ID, vendor.ID, zed.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	customer := models.PartnerTypeCustomer
	customers, err := env.partners.ListPartners(ctx, companyA, &customer)
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}

func TestPartnerService_UpdatePartner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.partner(t, companyA, "Globex")

	later := fixedNow.Add(time.Minute)
	env.partners.now = func() time.Time { return later }

	vendor := models.PartnerTypeVendor
	updated, err := env.partners.UpdatePartner(ctx, companyA, p.ID, UpdatePartnerRequest{Type: &vendor, Name: strPtr("Globex Corp")})
	require.NoError(t, err)
	assert.Equal(t, models.PartnerTypeVendor, updated.Type)
	assert.Equal(t, "Globex Corp", updated.Name)
	assert.Equal(t, fixedNow, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)

	_, err = env.partners.UpdatePartner(ctx, companyB, p.ID, UpdatePartnerRequest{Name: strPtr("Stolen")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartnerService_DeletePartner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, companyA, "1000")
	revenue := env.account(t, companyA, "4000")
	p := env.partner(t, companyA, "Globex")

	in := saleInput(cash, revenue, "25.00", "25.00")
	in.Lines[0].PartnerID = &p.ID
	txn, err := env.ledger.PostTransaction(ctx, companyA, in)
	require.NoError(t, err)

	assert.ErrorIs(t, env.partners.DeletePartner(ctx, companyB, p.ID), ErrNotFound)
	require.NoError(t, env.partners.DeletePartner(ctx, companyA, p.ID))

	_, err = env.partners.ResolvePartner(ctx, companyA, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := env.ledger.GetTransaction(ctx, companyA, txn.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.Nil(t, stored.Lines[0].PartnerID)
	assert.Equal(t, fixedNow, stored.Lines[0].CreatedAt)
	assert.True(t, stored.Lines[0].Amount.Equal(amount("25")))
}
