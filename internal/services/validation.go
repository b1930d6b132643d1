package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/ledgerbook/backend/internal/logger"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper. Field names in
// errors are taken from the json tag.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	writeErrorResponse(w, statusCode, errorResp)
}

// SendServiceError maps a service error onto its HTTP status.
func SendServiceError(w http.ResponseWriter, err error) {
	var (
		vErr  *ValidationError
		nfErr *NotFoundError
		cErr  *ConflictError
	)

	switch {
	case errors.As(err, &vErr):
		resp := ErrorResponse{Error: vErr.Message}
		if vErr.Field != "" || vErr.Debit != nil {
			resp.Details = make(map[string]string)
		}
		if vErr.Field != "" {
			resp.Details["field"] = vErr.Field
		}
		if vErr.Debit != nil && vErr.Credit != nil {
			resp.Details["debitTotal"] = vErr.Debit.StringFixed(2)
			resp.Details["creditTotal"] = vErr.Credit.StringFixed(2)
		}
		writeErrorResponse(w, http.StatusBadRequest, resp)
	case errors.As(err, &nfErr):
		writeErrorResponse(w, http.StatusNotFound, ErrorResponse{Error: nfErr.Error()})
	case errors.As(err, &cErr):
		writeErrorResponse(w, http.StatusConflict, ErrorResponse{Error: cErr.Message})
	case errors.Is(err, ErrInvalidCredentials):
		writeErrorResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials"})
	default:
		logger.Get().WithError(err).Error("Request failed")
		writeErrorResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "An Internal Error Occurred"})
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// checkText trims s and enforces a required flag and a rune limit.
func checkText(field, s string, required bool, max int) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return s, nil
}

// checkOptionalText is checkText for nullable columns. Blank becomes nil.
func checkOptionalText(field string, s *string, max int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v, err := checkText(field, *s, false, max)
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}
