// Package audit records ledger writes as structured log events.
package audit

import (
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	EventPosted  = "TRANSACTION_POSTED"
	EventDeleted = "TRANSACTION_DELETED"
	EventError   = "ERROR"
)

// Recorder is implemented by AuditLogger and by test doubles.
type Recorder interface {
	LogPosted(companyID string, transactionID int64, lines int, total decimal.Decimal)
	LogDeleted(companyID string, transactionID int64)
	LogError(companyID, operation string, err error)
}

type AuditLogger struct {
	entry *logrus.Entry
}

func NewAuditLogger() *AuditLogger {
	return NewAuditLoggerWith(logger.Get())
}

// NewAuditLoggerWith writes to l instead of the process logger.
func NewAuditLoggerWith(l *logrus.Logger) *AuditLogger {
	return &AuditLogger{entry: l.WithField("audit", true)}
}

func (a *AuditLogger) LogPosted(companyID string, transactionID int64, lines int, total decimal.Decimal) {
	a.entry.WithFields(logrus.Fields{
		"event_type":     EventPosted,
		"company_id":     companyID,
		"transaction_id": transactionID,
		"lines":          lines,
		"total":          total.StringFixed(2),
		"status":         "SUCCESS",
	}).Info("AUDIT")
}

func (a *AuditLogger) LogDeleted(companyID string, transactionID int64) {
	a.entry.WithFields(logrus.Fields{
		"event_type":     EventDeleted,
		"company_id":     companyID,
		"transaction_id": transactionID,
		"status":         "SUCCESS",
	}).Info("AUDIT")
}

func (a *AuditLogger) LogError(companyID, operation string, err error) {
	a.entry.WithFields(logrus.Fields{
		"event_type": EventError,
		"company_id": companyID,
		"operation":  operation,
		"status":     "FAILED",
	}).WithError(err).Warn("AUDIT")
}

var _ Recorder = (*AuditLogger)(nil)
