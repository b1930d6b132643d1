package audit

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger(t *testing.T) {
	l, hook := test.NewNullLogger()
	a := NewAuditLoggerWith(l)

	t.Run("posted", func(t *testing.T) {
		hook.Reset()
		a.LogPosted("company1", 42, 2, decimal.NewFromInt(100))

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		assert.Equal(t, true, entry.Data["audit"])
		assert.Equal(t, EventPosted, entry.Data["event_type"])
		assert.Equal(t, int64(42), entry.Data["transaction_id"])
		assert.Equal(t, "100.00", entry.Data["total"])
	})

	t.Run("deleted", func(t *testing.T) {
		hook.Reset()
		a.LogDeleted("company1", 42)

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, EventDeleted, entry.Data["event_type"])
		assert.Equal(t, "company1", entry.Data["company_id"])
	})

	t.Run("error", func(t *testing.T) {
		hook.Reset()
		a.LogError("company1", "post", errors.New("unbalanced transaction"))

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "FAILED", entry.Data["status"])
		assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "unbalanced transaction")
	})
}
