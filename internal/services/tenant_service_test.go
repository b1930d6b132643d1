package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	company, err := env.tenants.GetCompany(ctx, companyA)
	require.NoError(t, err)
	assert.Equal(t, companyA, company.ID)

	_, err = env.tenants.GetCompany(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	later := fixedNow.Add(24 * time.Hour)
	env.tenants.now = func() time.Time { return later }

	renamed, err := env.tenants.RenameCompany(ctx, companyA, "  Acme Holdings ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", renamed.Name)
	assert.Equal(t, fixedNow, renamed.CreatedAt)
	assert.Equal(t, later, renamed.UpdatedAt)

	_, err = env.tenants.RenameCompany(ctx, companyA, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tenants.RenameCompany(ctx, companyA, string(make([]rune, 201)))
	assert.ErrorIs(t, err, ErrValidation)
}
