package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kinds of failure a caller can act on. Every domain error matches exactly
// one of them through errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage error")
)

// ValidationError reports malformed or rule-violating input. Debit and
// Credit are set for unbalanced transactions.
type ValidationError struct {
	Message string
	Field   string
	Debit   *decimal.Decimal
	Credit  *decimal.Decimal
}

func (e *ValidationError) Error() string {
	switch {
	case e.Debit != nil && e.Credit != nil:
		return fmt.Sprintf("%s: debit %s, credit %s", e.Message, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing or cross-tenant reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a uniqueness violation or a delete blocked by
// references.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StorageError wraps a failure of the store. The unit of work it happened
// in left no state behind, so the whole operation may be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// wrapStorage passes domain errors through and wraps everything else.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
