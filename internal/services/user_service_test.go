package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RemoveUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, companyA, "1000")
	revenue := env.account(t, companyA, "4000")

	in := saleInput(cash, revenue, "10", "10")
	in.CreatedByUserID = strPtr(userA)
	txn, err := env.ledger.PostTransaction(ctx, companyA, in)
	require.NoError(t, err)

	assert.ErrorIs(t, env.users.RemoveUser(ctx, companyB, userA), ErrNotFound)
	require.NoError(t, env.users.RemoveUser(ctx, companyA, userA))

	stored, err := env.ledger.GetTransaction(ctx, companyA, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CreatedByUserID)
	assert.Len(t, stored.Lines, 2)

	assert.ErrorIs(t, env.users.RemoveUser(ctx, companyA, userA), ErrNotFound)
}
